package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"support_chat/internal/domain"
	apperrors "support_chat/pkg/errors"
	"support_chat/pkg/logger"
)

type MessageRepository interface {
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*domain.Message, error)
	// Create сохраняет сообщение и возвращает обновленное обращение
	Create(ctx context.Context, msg *domain.Message) (*domain.Conversation, error)
	MarkRead(ctx context.Context, conversationID uuid.UUID, senderType domain.SenderRole) ([]*domain.Message, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

const messageColumns = `id, conversation_id, sender_id, sender_type, content, is_read, created_at`

func scanMessage(row pgx.Row) (*domain.Message, error) {
	msg := &domain.Message{}
	err := row.Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.SenderType,
		&msg.Content, &msg.IsRead, &msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func collectMessages(rows pgx.Rows) ([]*domain.Message, error) {
	defer rows.Close()

	messages := make([]*domain.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err == nil {
		var messages []*domain.Message
		messages, err = collectMessages(rows)
		if err == nil {
			return messages, nil
		}
	}

	r.log.Error("Failed to list messages", "error", err, "conversation_id", conversationID)
	return nil, storeReadError("list messages", err)
}

// attachMessages заполняет Messages у обращений одним запросом (по возрастанию времени)
func attachMessages(ctx context.Context, q querier, convs []*domain.Conversation) error {
	if len(convs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(convs))
	byID := make(map[uuid.UUID]*domain.Conversation, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID.String())
		byID[c.ID] = c
		c.Messages = make([]*domain.Message, 0)
	}

	rows, err := q.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ANY($1::uuid[])
		ORDER BY created_at ASC, id ASC
	`, ids)
	if err != nil {
		return err
	}

	messages, err := collectMessages(rows)
	if err != nil {
		return err
	}
	for _, m := range messages {
		if c, ok := byID[m.ConversationID]; ok {
			c.Messages = append(c.Messages, m)
		}
	}
	return nil
}

// Create: вставка сообщения, сдвиг updated_at и перевод waiting -> active в одной транзакции
func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) (*domain.Conversation, error) {
	var conv *domain.Conversation
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO messages (conversation_id, sender_id, sender_type, content, is_read)
			VALUES ($1, $2, $3, $4, FALSE)
			RETURNING id, is_read, created_at
		`, msg.ConversationID, msg.SenderID, msg.SenderType, msg.Content).Scan(&msg.ID, &msg.IsRead, &msg.CreatedAt)
		if err != nil {
			return err
		}

		conv, err = scanConversation(tx.QueryRow(ctx, `
			UPDATE conversations c
			SET updated_at = GREATEST(c.updated_at, $2),
			    status = CASE WHEN c.status = $3 THEN $4 ELSE c.status END
			WHERE c.id = $1
			RETURNING `+conversationColumns,
			msg.ConversationID, msg.CreatedAt, domain.StatusWaiting, domain.StatusActive))
		return err
	})
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return nil, apperrors.ErrConversationNotFound
		}
		r.log.Error("Failed to create message", "error", err, "conversation_id", msg.ConversationID)
		return nil, storeWriteError("create message", err)
	}

	return conv, nil
}

// MarkRead отмечает прочитанными непрочитанные сообщения автора senderType
func (r *messageRepository) MarkRead(ctx context.Context, conversationID uuid.UUID, senderType domain.SenderRole) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE messages
		SET is_read = TRUE
		WHERE conversation_id = $1 AND sender_type = $2 AND is_read = FALSE
		RETURNING `+messageColumns,
		conversationID, senderType)
	if err == nil {
		var changed []*domain.Message
		changed, err = collectMessages(rows)
		if err == nil {
			return changed, nil
		}
	}

	r.log.Error("Failed to mark messages read", "error", err, "conversation_id", conversationID)
	return nil, storeWriteError("mark read", err)
}

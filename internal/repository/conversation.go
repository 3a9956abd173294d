package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"support_chat/internal/domain"
	apperrors "support_chat/pkg/errors"
	"support_chat/pkg/logger"
)

type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	ListForCustomer(ctx context.Context, customerID string) ([]*domain.Conversation, error)
	ListAll(ctx context.Context) ([]*domain.Conversation, error)
	AssignAgent(ctx context.Context, id, agentID uuid.UUID) (*domain.Conversation, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.ConversationStatus) (*domain.Conversation, error)
	IsParticipant(ctx context.Context, id uuid.UUID, identity, role string) (bool, error)
}

type conversationRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewConversationRepository(db *pgxpool.Pool, log logger.Logger) ConversationRepository {
	return &conversationRepository{db: db, log: log}
}

const conversationColumns = `c.id, c.name, c.customer_id, c.status, c.agent_id, c.created_at, c.updated_at`

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	conv := &domain.Conversation{}
	err := row.Scan(
		&conv.ID, &conv.Name, &conv.CustomerID, &conv.Status, &conv.AgentID,
		&conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// Create вставляет обращение и участника-клиента в одной транзакции
func (r *conversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO conversations (name, customer_id, status)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at
		`, conv.Name, conv.CustomerID, conv.Status).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, identity, role, joined_at)
			VALUES ($1, $2, $3, $4)
		`, conv.ID, conv.CustomerID, domain.ParticipantRoleCustomer, conv.CreatedAt)
		return err
	})
	if err != nil {
		r.log.Error("Failed to create conversation", "error", err, "customer_id", conv.CustomerID)
		return storeWriteError("create conversation", err)
	}

	return nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	conv, err := scanConversation(r.db.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations c WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		r.log.Error("Failed to get conversation", "error", err, "conversation_id", id)
		return nil, storeReadError("get conversation", err)
	}
	return conv, nil
}

// ListForCustomer выбирает обращения через таблицу участников, новые сверху
func (r *conversationRepository) ListForCustomer(ctx context.Context, customerID string) ([]*domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.identity = $1 AND p.role = $2
		ORDER BY c.updated_at DESC, c.id
	`
	convs, err := r.list(ctx, query, customerID, domain.ParticipantRoleCustomer)
	if err != nil {
		r.log.Error("Failed to list customer conversations", "error", err, "customer_id", customerID)
		return nil, storeReadError("list conversations", err)
	}
	return convs, nil
}

func (r *conversationRepository) ListAll(ctx context.Context) ([]*domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations c
		ORDER BY c.updated_at DESC, c.id
	`
	convs, err := r.list(ctx, query)
	if err != nil {
		r.log.Error("Failed to list conversations", "error", err)
		return nil, storeReadError("list conversations", err)
	}
	return convs, nil
}

// list выбирает обращения и подгружает сообщения одним запросом
func (r *conversationRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Conversation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	convs := make([]*domain.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := attachMessages(ctx, r.db, convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// AssignAgent всегда переводит обращение в active и обновляет updated_at
func (r *conversationRepository) AssignAgent(ctx context.Context, id, agentID uuid.UUID) (*domain.Conversation, error) {
	var conv *domain.Conversation
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		conv, err = scanConversation(tx.QueryRow(ctx, `
			UPDATE conversations c
			SET agent_id = $2, status = $3, updated_at = now()
			WHERE c.id = $1
			RETURNING `+conversationColumns,
			id, agentID, domain.StatusActive))
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, identity, role)
			VALUES ($1, $2, $3)
			ON CONFLICT (conversation_id, identity, role) DO NOTHING
		`, id, agentID.String(), domain.ParticipantRoleAgent)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		if pgErrorCode(err) == pgForeignKeyViolation {
			return nil, apperrors.ErrAgentNotFound
		}
		r.log.Error("Failed to assign agent", "error", err, "conversation_id", id, "agent_id", agentID)
		return nil, storeWriteError("assign agent", err)
	}

	return conv, nil
}

// SetStatus проверяет переход по таблице под блокировкой строки
func (r *conversationRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.ConversationStatus) (*domain.Conversation, error) {
	var conv *domain.Conversation
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var current domain.ConversationStatus
		err := tx.QueryRow(ctx, `SELECT status FROM conversations WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if err != nil {
			return err
		}
		if !domain.CanTransition(current, status) {
			return fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidStatusTransition, current, status)
		}

		conv, err = scanConversation(tx.QueryRow(ctx, `
			UPDATE conversations c
			SET status = $2, updated_at = now()
			WHERE c.id = $1
			RETURNING `+conversationColumns,
			id, status))
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.ErrConversationNotFound
		case errors.Is(err, apperrors.ErrInvalidStatusTransition):
			return nil, err
		}
		r.log.Error("Failed to set conversation status", "error", err, "conversation_id", id, "status", status)
		return nil, storeWriteError("set status", err)
	}

	return conv, nil
}

func (r *conversationRepository) IsParticipant(ctx context.Context, id uuid.UUID, identity, role string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND identity = $2 AND role = $3
		)
	`, id, identity, role).Scan(&exists)
	if err != nil {
		r.log.Error("Failed to check participant", "error", err, "conversation_id", id)
		return false, storeReadError("check participant", err)
	}
	return exists, nil
}

package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"support_chat/internal/domain"
	apperrors "support_chat/pkg/errors"
	"support_chat/pkg/logger"
)

type AgentRepository interface {
	Create(ctx context.Context, agent *domain.Agent) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error)
	GetByEmail(ctx context.Context, email string) (*domain.Agent, error)
	List(ctx context.Context) ([]*domain.Agent, error)
	SetOnline(ctx context.Context, id uuid.UUID, online bool) error
	CreateSession(ctx context.Context, session *domain.AgentSession) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.AgentSession, error)
	// RevokeSession возвращает ErrInvalidToken, если сессия уже отозвана
	RevokeSession(ctx context.Context, sessionID uuid.UUID, reason string) error
}

type agentRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewAgentRepository(db *pgxpool.Pool, log logger.Logger) AgentRepository {
	return &agentRepository{db: db, log: log}
}

// NormalizeEmail приводит email к виду, в котором он хранится
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *agentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	agent.Email = NormalizeEmail(agent.Email)

	err := r.db.QueryRow(ctx, `
		INSERT INTO agents (name, email, password_hash, is_online)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, agent.Name, agent.Email, agent.PasswordHash, agent.IsOnline).Scan(&agent.ID, &agent.CreatedAt)
	if err != nil {
		// 23505 = unique_violation по email
		if pgErrorCode(err) == pgUniqueViolation {
			r.log.Warn("Agent already exists", "email", agent.Email)
			return apperrors.ErrAgentAlreadyExists
		}
		r.log.Error("Failed to create agent", "error", err, "email", agent.Email)
		return storeWriteError("create agent", err)
	}

	return nil
}

const agentColumns = `id, name, email, password_hash, is_online, created_at`

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	agent := &domain.Agent{}
	err := row.Scan(&agent.ID, &agent.Name, &agent.Email, &agent.PasswordHash, &agent.IsOnline, &agent.CreatedAt)
	if err != nil {
		return nil, err
	}
	return agent, nil
}

func (r *agentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	agent, err := scanAgent(r.db.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAgentNotFound
		}
		r.log.Error("Failed to get agent by ID", "error", err, "agent_id", id)
		return nil, storeReadError("get agent", err)
	}
	return agent, nil
}

func (r *agentRepository) GetByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	email = NormalizeEmail(email)

	agent, err := scanAgent(r.db.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAgentNotFound
		}
		r.log.Error("Failed to get agent by email", "error", err, "email", email)
		return nil, storeReadError("get agent", err)
	}
	return agent, nil
}

// List - все агенты, новые сверху
func (r *agentRepository) List(ctx context.Context) ([]*domain.Agent, error) {
	rows, err := r.db.Query(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY created_at DESC`)
	if err != nil {
		r.log.Error("Failed to list agents", "error", err)
		return nil, storeReadError("list agents", err)
	}
	defer rows.Close()

	agents := make([]*domain.Agent, 0)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			r.log.Error("Failed to scan agent", "error", err)
			return nil, storeReadError("scan agent", err)
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, storeReadError("list agents", err)
	}

	return agents, nil
}

func (r *agentRepository) SetOnline(ctx context.Context, id uuid.UUID, online bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE agents SET is_online = $2 WHERE id = $1`, id, online)
	if err != nil {
		r.log.Error("Failed to update agent presence", "error", err, "agent_id", id)
		return storeWriteError("set online", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrAgentNotFound
	}
	return nil
}

func (r *agentRepository) CreateSession(ctx context.Context, session *domain.AgentSession) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO agent_sessions (id, agent_id, refresh_token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, session.ID, session.AgentID, session.RefreshTokenHash, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		r.log.Error("Failed to create session", "error", err, "agent_id", session.AgentID)
		return storeWriteError("create session", err)
	}
	return nil
}

// GetSessionByTokenHash возвращает только действующую сессию
func (r *agentRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.AgentSession, error) {
	session := &domain.AgentSession{}
	err := r.db.QueryRow(ctx, `
		SELECT id, agent_id, refresh_token_hash, created_at, expires_at, revoked_at, revoked_reason
		FROM agent_sessions
		WHERE refresh_token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`, tokenHash).Scan(
		&session.ID, &session.AgentID, &session.RefreshTokenHash,
		&session.CreatedAt, &session.ExpiresAt, &session.RevokedAt, &session.RevokedReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrInvalidToken
		}
		r.log.Error("Failed to get session", "error", err)
		return nil, storeReadError("get session", err)
	}
	return session, nil
}

func (r *agentRepository) RevokeSession(ctx context.Context, sessionID uuid.UUID, reason string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE agent_sessions
		SET revoked_at = NOW(), revoked_reason = $2
		WHERE id = $1 AND revoked_at IS NULL
	`, sessionID, reason)
	if err != nil {
		r.log.Error("Failed to revoke session", "error", err, "session_id", sessionID)
		return storeWriteError("revoke session", err)
	}
	// Сессию уже отозвал параллельный запрос с тем же токеном
	if tag.RowsAffected() != 1 {
		return apperrors.ErrInvalidToken
	}
	return nil
}

package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"support_chat/internal/config"
	"support_chat/internal/domain"
	"support_chat/internal/repository"
	apperrors "support_chat/pkg/errors"
	"support_chat/pkg/jwt"
	"support_chat/pkg/logger"
)

const minPasswordLength = 8

type AgentAuthService interface {
	Register(ctx context.Context, name, email, password string) (*domain.Agent, error)
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	ValidateAccessToken(tokenString string) (*jwt.AccessClaims, error)
	ListAgents(ctx context.Context) ([]*domain.Agent, error)
}

type LoginResponse struct {
	Agent        *domain.Agent `json:"agent"`
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type agentAuthService struct {
	agentRepo repository.AgentRepository
	audit     AuditService
	jwtCfg    config.JWTConfig
	log       logger.Logger
}

func NewAgentAuthService(agentRepo repository.AgentRepository, audit AuditService, jwtCfg config.JWTConfig, log logger.Logger) AgentAuthService {
	return &agentAuthService{
		agentRepo: agentRepo,
		audit:     audit,
		jwtCfg:    jwtCfg,
		log:       log,
	}
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", apperrors.ErrValidation, msg)
}

func (s *agentAuthService) Register(ctx context.Context, name, email, password string) (*domain.Agent, error) {
	name = strings.TrimSpace(name)
	email = repository.NormalizeEmail(email)

	switch {
	case name == "":
		return nil, validationError("name is required")
	case len(name) > 100:
		return nil, validationError("name is too long (max 100 characters)")
	case email == "":
		return nil, validationError("email is required")
	case !strings.Contains(email, "@") || len(email) > 255:
		return nil, validationError("invalid email format")
	case len(password) < minPasswordLength:
		return nil, validationError("password must be at least 8 characters")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error("Failed to hash password", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	agent := &domain.Agent{
		Name:         name,
		Email:        email,
		PasswordHash: string(passwordHash),
	}
	if err := s.agentRepo.Create(ctx, agent); err != nil {
		return nil, err
	}

	s.log.Info("Agent registered", "agent_id", agent.ID, "email", email)
	s.audit.LogEvent(ctx, agent.ID.String(), domain.ActorRoleSystem, nil, domain.EventTypeAgentRegistered,
		map[string]interface{}{"email": email})

	agent.PasswordHash = ""
	return agent, nil
}

func (s *agentAuthService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	agent, err := s.agentRepo.GetByEmail(ctx, email)
	if err != nil {
		// Не раскрываем, существует ли агент
		if errors.Is(err, apperrors.ErrAgentNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(agent.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	tokens, err := s.issueTokens(ctx, agent)
	if err != nil {
		return nil, err
	}

	if err := s.agentRepo.SetOnline(ctx, agent.ID, true); err != nil {
		s.log.Warn("Failed to mark agent online", "error", err, "agent_id", agent.ID)
	} else {
		agent.IsOnline = true
	}
	s.audit.LogEvent(ctx, agent.ID.String(), domain.ActorRoleAgent, nil, domain.EventTypeAgentLoggedIn, nil)

	agent.PasswordHash = ""
	return &LoginResponse{
		Agent:        agent,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, nil
}

// Refresh выдает новую пару токенов, старая сессия отзывается
func (s *agentAuthService) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	claims, err := jwt.ValidateRefreshToken(refreshToken, s.jwtCfg.RefreshSecret)
	if err != nil {
		return nil, err
	}

	agentID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	session, err := s.agentRepo.GetSessionByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if session.AgentID != agentID {
		return nil, apperrors.ErrInvalidToken
	}

	agent, err := s.agentRepo.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrAgentNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, err
	}

	// Новая пара выдается только тому, кто отозвал старую сессию
	if err := s.agentRepo.RevokeSession(ctx, session.ID, "refreshed"); err != nil {
		s.log.Warn("Failed to revoke old session", "error", err, "session_id", session.ID)
		return nil, err
	}

	return s.issueTokens(ctx, agent)
}

func (s *agentAuthService) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.agentRepo.GetSessionByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		return err
	}

	if err := s.agentRepo.RevokeSession(ctx, session.ID, "logout"); err != nil {
		return err
	}
	if err := s.agentRepo.SetOnline(ctx, session.AgentID, false); err != nil {
		s.log.Warn("Failed to mark agent offline", "error", err, "agent_id", session.AgentID)
	}

	s.audit.LogEvent(ctx, session.AgentID.String(), domain.ActorRoleAgent, nil, domain.EventTypeAgentLoggedOut, nil)
	return nil
}

func (s *agentAuthService) ValidateAccessToken(tokenString string) (*jwt.AccessClaims, error) {
	return jwt.ValidateToken(tokenString, s.jwtCfg.AccessSecret)
}

func (s *agentAuthService) ListAgents(ctx context.Context) ([]*domain.Agent, error) {
	agents, err := s.agentRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range agents {
		a.PasswordHash = ""
	}
	return agents, nil
}

func (s *agentAuthService) issueTokens(ctx context.Context, agent *domain.Agent) (*TokenResponse, error) {
	accessToken, err := jwt.GenerateAccessToken(agent.ID, agent.Email, s.jwtCfg.Issuer, s.jwtCfg.AccessSecret, s.jwtCfg.AccessTTL)
	if err != nil {
		s.log.Error("Failed to generate access token", "error", err)
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, err := jwt.GenerateRefreshToken(agent.ID, s.jwtCfg.Issuer, s.jwtCfg.RefreshSecret, s.jwtCfg.RefreshTTL)
	if err != nil {
		s.log.Error("Failed to generate refresh token", "error", err)
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := time.Now()
	session := &domain.AgentSession{
		ID:               uuid.New(),
		AgentID:          agent.ID,
		RefreshTokenHash: hashToken(refreshToken),
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.jwtCfg.RefreshTTL),
	}
	if err := s.agentRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

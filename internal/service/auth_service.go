package service

import (
	"context"
	"log"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/whazzaudio/api/internal/auth"
	"github.com/whazzaudio/api/internal/config"
	"github.com/whazzaudio/api/internal/model"
	"github.com/whazzaudio/api/internal/store"
)

// AuthService handles registration, login and token refresh.
type AuthService struct {
	cfg    *config.Config
	users  *store.UserStore
	guests *store.GuestStore
	issuer *auth.TokenIssuer
}

func NewAuthService(cfg *config.Config, users *store.UserStore, guests *store.GuestStore, issuer *auth.TokenIssuer) *AuthService {
	return &AuthService{
		cfg:    cfg,
		users:  users,
		guests: guests,
		issuer: issuer,
	}
}

// Register creates an account. If the caller held a guest session, the
// session is marked as converted.
func (s *AuthService) Register(ctx context.Context, p model.Principal, req *model.RegisterRequest) (*model.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:          req.Email,
		Username:       req.Username,
		HashedPassword: string(hashed),
		IsActive:       true,
		CreatedAt:      time.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if p.Type == model.PrincipalGuest {
		if err := s.guests.MarkConverted(ctx, p.GuestID, user.ID); err != nil {
			log.Printf("Failed to mark guest %s as converted: %v", p.GuestID, err)
		}
	}
	return user, nil
}

// Login verifies credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err == store.ErrNotFound {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return s.issueTokens(user.ID)
}

// Refresh exchanges a valid refresh token for a new token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.issuer.Verify(refreshToken)
	if err != nil || claims.Type != auth.TokenTypeRefresh {
		return nil, auth.ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return s.issueTokens(user.ID)
}

func (s *AuthService) issueTokens(userID int64) (*model.TokenResponse, error) {
	subject := strconv.FormatInt(userID, 10)

	access, err := s.issuer.IssueAccess(subject, s.cfg.JWT.AccessExpiration)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.IssueRefresh(subject, s.cfg.JWT.RefreshExpiration)
	if err != nil {
		return nil, err
	}

	return &model.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.cfg.JWT.AccessExpiration.Seconds()),
	}, nil
}

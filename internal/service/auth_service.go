package service

import (
	"context"
	"fmt"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"
	"github.com/VCalixtoR/gestaomt-back/internal/config"
	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService interface {
	Login(ctx context.Context, mail, password string) (*dto.LoginResponse, error)
	// Refresh issues a new token and invalidates the previous one.
	Refresh(ctx context.Context, userID int64) (*dto.LoginResponse, error)
	Logout(ctx context.Context, userID int64) error
	// CheckSession accepts a token only while it is the user's latest one.
	CheckSession(ctx context.Context, userID, issuedAt int64) error
}

type authService struct {
	users  repository.UserRepository
	tokens repository.AuthTokenRepository
	events EventService
	cfg    *config.Config
	now    func() time.Time
}

func NewAuthService(users repository.UserRepository, tokens repository.AuthTokenRepository, events EventService, cfg *config.Config) AuthService {
	return &authService{users: users, tokens: tokens, events: events, cfg: cfg, now: time.Now}
}

func (s *authService) Login(ctx context.Context, mail, password string) (*dto.LoginResponse, error) {
	user, err := s.users.FindByMail(ctx, mail)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.Unauthorizedf("Usuario no encontrado")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apierror.Unauthorizedf("Credenciales invalidas")
	}
	if !user.EntryAllowed {
		return nil, apierror.Unauthorizedf("Usuario sin permiso de ingreso")
	}
	return s.issue(ctx, user, true)
}

func (s *authService) Refresh(ctx context.Context, userID int64) (*dto.LoginResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.Unauthorizedf("Usuario no encontrado")
		}
		return nil, err
	}
	if !user.EntryAllowed {
		return nil, apierror.Unauthorizedf("Usuario sin permiso de ingreso")
	}
	return s.issue(ctx, user, false)
}

func (s *authService) Logout(ctx context.Context, userID int64) error {
	return s.tokens.Delete(ctx, userID)
}

func (s *authService) CheckSession(ctx context.Context, userID, issuedAt int64) error {
	tok, err := s.tokens.Find(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return apierror.Unauthorizedf("Token revocado")
		}
		return err
	}
	if tok.IssuedAt != issuedAt {
		return apierror.Unauthorizedf("Sesion reemplazada por un nuevo ingreso")
	}
	return nil
}

// issue signs a token and makes it the user's only valid one.
func (s *authService) issue(ctx context.Context, user *model.User, login bool) (*dto.LoginResponse, error) {
	now := s.now()
	issuedAt := now.UnixNano()
	ttl := time.Duration(s.cfg.JWTExpirationHours) * time.Hour

	claims := jwt.MapClaims{
		"user_id":   user.ID,
		"issued_at": issuedAt,
		"type":      user.Type,
		"exp":       now.Add(ttl).Unix(),
		"iat":       now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, err
	}

	err = runTx(ctx, s.tokens.DB(), func(tx *gorm.DB) error {
		if err := s.tokens.ReplaceTx(tx, user.ID, issuedAt); err != nil {
			return err
		}
		if !login {
			return nil
		}
		return s.events.RecordTx(ctx, tx, EventLogin, user.ID, fmt.Sprintf("Ingreso de %s", user.Mail))
	})
	if err != nil {
		return nil, txFailure("Error al registrar la sesion", err)
	}

	return &dto.LoginResponse{
		Token:     signed,
		TokenType: "bearer",
		ExpiresIn: s.cfg.JWTExpirationHours * 3600,
		User:      userToResponse(user),
	}, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Dayvhiid/Simple-E-commerce-API/common/errors"
	"github.com/Dayvhiid/Simple-E-commerce-API/common/logger"
	"github.com/Dayvhiid/Simple-E-commerce-API/models"
	"github.com/Dayvhiid/Simple-E-commerce-API/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type TokenIssuer interface {
	GenerateAccessToken(userID, email string) (string, error)
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token string             `json:"token"`
	User  models.UserSummary `json:"user"`
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
}

type authServiceImpl struct {
	users  repository.UserRepo
	tokens TokenIssuer
	logger *zap.Logger
}

func NewAuthService(users repository.UserRepo, tokens TokenIssuer, logger *zap.Logger) AuthService {
	return &authServiceImpl{users: users, tokens: tokens, logger: logger}
}

func (s *authServiceImpl) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("hash password: %w", err))
	}

	user := &models.User{
		Name:      in.Name,
		Email:     in.Email,
		Password:  string(hashed),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, apperrors.Conflict("User already exists")
		}
		return nil, apperrors.Internal(fmt.Errorf("create user: %w", err))
	}

	logger.WithRequest(ctx, s.logger).Info("User registered", zap.String("user_id", user.ID.Hex()))
	return s.issue(user)
}

func (s *authServiceImpl) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, apperrors.Internal(fmt.Errorf("find user: %w", err))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}
	return s.issue(user)
}

func (s *authServiceImpl) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.GenerateAccessToken(user.ID.Hex(), user.Email)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("sign token: %w", err))
	}
	return &AuthResult{Token: token, User: user.Summary()}, nil
}

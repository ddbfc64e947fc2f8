package auth

import (
	"context"
	"errors"

	"tractor-service/internal/model"
	pkgAuth "tractor-service/pkg/auth"
	appErr "tractor-service/pkg/errors"
	"tractor-service/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type LoginResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

func (s *Service) Register(ctx context.Context, username, password, nickname string) (model.User, error) {
	var existing model.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	if err == nil {
		return model.User{}, appErr.ErrUserExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, err
	}
	if nickname == "" {
		nickname = username
	}
	user := model.User{
		Username:     username,
		PasswordHash: string(hash),
		Nickname:     nickname,
		Status:       "normal",
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return model.User{}, err
	}
	logger.Log.Info("user registered", zap.Int64("userID", user.ID), zap.String("username", username))
	return user, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LoginResult{}, appErr.ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, appErr.ErrInvalidCredentials
	}

	token, err := pkgAuth.GenerateToken(user.ID)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, User: user}, nil
}

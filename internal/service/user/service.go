package user

import (
	"context"
	"errors"

	"tractor-service/internal/model"
	appErr "tractor-service/pkg/errors"

	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type Profile struct {
	ID           int64  `json:"id,string"`
	Username     string `json:"username"`
	Nickname     string `json:"nickname"`
	Avatar       string `json:"avatar"`
	ActiveRoomID *int64 `json:"activeRoomId,omitempty"`
	ActiveSeat   *int   `json:"activeSeat,omitempty"`
}

func (s *Service) GetProfile(ctx context.Context, userID int64) (Profile, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Profile{}, appErr.ErrUserNotFound
		}
		return Profile{}, err
	}
	return Profile{
		ID:           user.ID,
		Username:     user.Username,
		Nickname:     user.Nickname,
		Avatar:       user.Avatar,
		ActiveRoomID: user.ActiveRoomID,
		ActiveSeat:   user.ActiveSeat,
	}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, nickname, avatar string) (Profile, error) {
	updates := map[string]interface{}{}
	if nickname != "" {
		updates["nickname"] = nickname
	}
	if avatar != "" {
		updates["avatar"] = avatar
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.User{}).
			Where("id = ?", userID).
			Updates(updates).Error; err != nil {
			return Profile{}, err
		}
	}
	return s.GetProfile(ctx, userID)
}

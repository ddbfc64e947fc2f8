package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"tractor-service/internal/model"
	appErr "tractor-service/pkg/errors"
	"tractor-service/pkg/logger"
	"tractor-service/pkg/utils/random"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	seatCount      = 6
	codeLength     = 6
	codeReserveTTL = 24 * time.Hour
	presenceTTL    = 2 * time.Hour
)

type Service struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{db: db, rdb: rdb}
}

type seatEntry struct {
	UserID int64  `json:"userId,string"`
	Name   string `json:"name"`
}

type JoinResult struct {
	Room      model.Room `json:"room"`
	SeatIndex int        `json:"seatIndex"`
	TeamID    int        `json:"teamId"`
}

// Create opens a waiting room with a fresh join code. The code's redis
// reservation is advisory; the unique index on rooms.code is authoritative.
func (s *Service) Create(ctx context.Context, name string) (model.Room, error) {
	code, err := s.reserveCode(ctx)
	if err != nil {
		return model.Room{}, err
	}

	room := model.Room{
		Code:      code,
		Name:      name,
		Status:    "waiting",
		SeatCount: seatCount,
		SeatsJSON: []byte("{}"),
	}
	if err := s.db.WithContext(ctx).Create(&room).Error; err != nil {
		return model.Room{}, err
	}
	logger.Log.Info("room created", zap.Int64("roomID", room.ID), zap.String("code", code))
	return room, nil
}

func (s *Service) reserveCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code := random.Code(codeLength)
		if s.rdb == nil {
			return code, nil
		}
		ok, err := s.rdb.SetNX(ctx, buildCodeKey(code), 1, codeReserveTTL).Result()
		if err != nil {
			logger.Log.Warn("room code reservation failed, falling back to db uniqueness", zap.Error(err))
			return code, nil
		}
		if ok {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not reserve a unique room code")
}

// Join seats a user at the requested index. Teams follow seat mod 3.
func (s *Service) Join(ctx context.Context, roomID, userID int64, seatIndex int, name string) (JoinResult, error) {
	if seatIndex < 0 || seatIndex >= seatCount {
		return JoinResult{}, fmt.Errorf("%w: seat %d", appErr.ErrSeatTaken, seatIndex)
	}

	var result JoinResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room model.Room
		if err := tx.First(&room, roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErr.ErrRoomNotFound
			}
			return err
		}
		if room.Status != "waiting" {
			return appErr.ErrRoomNotWaiting
		}

		seats, err := decodeSeats(room.SeatsJSON)
		if err != nil {
			return err
		}
		if len(seats) >= seatCount {
			return appErr.ErrRoomFull
		}
		key := strconv.Itoa(seatIndex)
		if _, taken := seats[key]; taken {
			return appErr.ErrSeatTaken
		}
		for _, occ := range seats {
			if occ.UserID == userID {
				return appErr.ErrSeatTaken
			}
		}

		seats[key] = seatEntry{UserID: userID, Name: name}
		raw, err := json.Marshal(seats)
		if err != nil {
			return err
		}
		if err := tx.Model(&room).Update("seats_json", raw).Error; err != nil {
			return err
		}

		if err := tx.Model(&model.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"active_room_id": roomID,
			"active_seat":    seatIndex,
		}).Error; err != nil {
			return err
		}

		room.SeatsJSON = raw
		result = JoinResult{Room: room, SeatIndex: seatIndex, TeamID: seatIndex % 3}
		return nil
	})
	if err != nil {
		return JoinResult{}, err
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, buildPresenceKey(roomID, userID), seatIndex, presenceTTL).Err(); err != nil {
			logger.Log.Warn("failed to record room presence", zap.Int64("roomID", roomID), zap.Error(err))
		}
	}
	return result, nil
}

// Leave frees a waiting room seat. Seats are locked once play starts.
func (s *Service) Leave(ctx context.Context, roomID, userID int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room model.Room
		if err := tx.First(&room, roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErr.ErrRoomNotFound
			}
			return err
		}
		if room.Status != "waiting" {
			return appErr.ErrRoomNotWaiting
		}

		seats, err := decodeSeats(room.SeatsJSON)
		if err != nil {
			return err
		}
		found := false
		for key, occ := range seats {
			if occ.UserID == userID {
				delete(seats, key)
				found = true
				break
			}
		}
		if !found {
			return appErr.ErrRoomAccessDenied
		}

		raw, err := json.Marshal(seats)
		if err != nil {
			return err
		}
		if err := tx.Model(&room).Update("seats_json", raw).Error; err != nil {
			return err
		}
		return tx.Model(&model.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"active_room_id": nil,
			"active_seat":    nil,
		}).Error
	})
	if err != nil {
		return err
	}

	if s.rdb != nil {
		s.rdb.Del(ctx, buildPresenceKey(roomID, userID))
	}
	return nil
}

func (s *Service) Get(ctx context.Context, roomID int64) (model.Room, error) {
	var room model.Room
	if err := s.db.WithContext(ctx).First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Room{}, appErr.ErrRoomNotFound
		}
		return model.Room{}, err
	}
	return room, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (model.Room, error) {
	var room model.Room
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Room{}, appErr.ErrRoomNotFound
		}
		return model.Room{}, err
	}
	return room, nil
}

func (s *Service) List(ctx context.Context, status string) ([]model.Room, error) {
	var rooms []model.Room
	q := s.db.WithContext(ctx).Order("id DESC").Limit(50)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

// ValidateAccess checks that the user holds a seat in the room before a
// websocket upgrade.
func (s *Service) ValidateAccess(ctx context.Context, userID, roomID int64) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}
	seats, err := decodeSeats(room.SeatsJSON)
	if err != nil {
		return err
	}
	for _, occ := range seats {
		if occ.UserID == userID {
			return nil
		}
	}
	return appErr.ErrRoomAccessDenied
}

// Start launches the background sweep that closes waiting rooms nobody
// touched for a day.
func (s *Service) Start(ctx context.Context) error {
	go s.sweepLoop(ctx)
	return nil
}

func (s *Service) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-24 * time.Hour)
			res := s.db.WithContext(ctx).Model(&model.Room{}).
				Where("status = ? AND updated_at < ?", "waiting", cutoff).
				Update("status", "closed")
			if res.Error != nil {
				logger.Log.Warn("room sweep failed", zap.Error(res.Error))
				continue
			}
			if res.RowsAffected > 0 {
				logger.Log.Info("closed stale rooms", zap.Int64("count", res.RowsAffected))
			}
		}
	}
}

func decodeSeats(raw []byte) (map[string]seatEntry, error) {
	seats := make(map[string]seatEntry)
	if len(raw) == 0 {
		return seats, nil
	}
	if err := json.Unmarshal(raw, &seats); err != nil {
		return nil, err
	}
	return seats, nil
}

func buildCodeKey(code string) string {
	return fmt.Sprintf("room:code:%s", code)
}

func buildPresenceKey(roomID, userID int64) string {
	return fmt.Sprintf("room:presence:%d:%d", roomID, userID)
}

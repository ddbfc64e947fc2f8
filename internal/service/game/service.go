package game

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"tractor-service/internal/model"
	appErr "tractor-service/pkg/errors"
	"tractor-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service manages per-room runtimes and persists round outcomes.
type Service struct {
	db       *gorm.DB
	cfg      RuntimeConfig
	runtimes sync.Map // roomID -> *RoomRuntime
}

func NewService(db *gorm.DB, cfg RuntimeConfig) *Service {
	return &Service{db: db, cfg: cfg}
}

// GetRuntime returns the live runtime for a room, creating it from the
// persisted seat map on first use. The room must be fully seated.
func (s *Service) GetRuntime(ctx context.Context, roomID int64) (*RoomRuntime, error) {
	if v, ok := s.runtimes.Load(roomID); ok {
		return v.(*RoomRuntime), nil
	}

	var room model.Room
	if err := s.db.WithContext(ctx).First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrRoomNotFound
		}
		return nil, err
	}

	rt, err := newRoomRuntime(room, s.cfg, s.handleRoundFinished)
	if err != nil {
		return nil, err
	}
	rt.onGameStarted = s.handleGameStarted
	actual, _ := s.runtimes.LoadOrStore(roomID, rt)
	return actual.(*RoomRuntime), nil
}

// DropRuntime removes a room's runtime, e.g. when the room is closed.
func (s *Service) DropRuntime(roomID int64) {
	s.runtimes.Delete(roomID)
}

// handleGameStarted locks the room's seats once the first deal begins.
func (s *Service) handleGameStarted(rt *RoomRuntime) {
	if err := s.db.Model(&model.Room{}).
		Where("id = ?", rt.roomID).
		Update("status", "playing").Error; err != nil {
		logger.Log.Error("failed to mark room playing", zap.Int64("roomID", rt.roomID), zap.Error(err))
	}
}

func (s *Service) handleRoundFinished(rt *RoomRuntime) {
	roomID, roundNo, level, mainSuit, dealerSeat, scores := rt.Summary()

	log := model.RoundLog{
		RoomID:     roomID,
		RoundNo:    roundNo,
		Level:      int(level),
		MainSuit:   string(mainSuit),
		DealerSeat: dealerSeat,
		ScoresJSON: mustJSON(scores),
		CreatedAt:  time.Now(),
	}
	if err := s.db.Create(&log).Error; err != nil {
		logger.Log.Error("failed to persist round log",
			zap.Int64("roomID", roomID),
			zap.Int("roundNo", roundNo),
			zap.Error(err),
		)
		return
	}
	logger.Log.Info("round finished",
		zap.Int64("roomID", roomID),
		zap.Int("roundNo", roundNo),
		zap.Any("scores", scores),
	)
}

func mustJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return datatypes.JSON("{}")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}

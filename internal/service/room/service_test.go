package room_test

import (
	"context"
	"errors"
	"testing"

	"tractor-service/internal/model"
	"tractor-service/internal/service/room"
	appErr "tractor-service/pkg/errors"
	"tractor-service/pkg/logger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newRoomService(t *testing.T) (*gorm.DB, *room.Service) {
	t.Helper()

	logger.InitLogger("test")

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Room{}); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}

	return db, room.NewService(db, nil)
}

func seedUser(t *testing.T, db *gorm.DB, username string) model.User {
	t.Helper()
	user := model.User{Username: username, PasswordHash: "x", Nickname: username}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	_, svc := newRoomService(t)

	created, err := svc.Create(ctx, "friday table")
	if err != nil {
		t.Fatalf("create room failed: %v", err)
	}
	if created.ID == 0 || created.Status != "waiting" || created.SeatCount != 6 {
		t.Fatalf("unexpected room: %+v", created)
	}
	if len(created.Code) != 6 {
		t.Fatalf("expected 6-char code, got %q", created.Code)
	}

	byCode, err := svc.GetByCode(ctx, created.Code)
	if err != nil || byCode.ID != created.ID {
		t.Fatalf("lookup by code failed: %v", err)
	}
}

func TestJoinAndLeave(t *testing.T) {
	ctx := context.Background()
	db, svc := newRoomService(t)

	created, err := svc.Create(ctx, "join test")
	if err != nil {
		t.Fatalf("create room failed: %v", err)
	}
	u1 := seedUser(t, db, "join_u1")
	u2 := seedUser(t, db, "join_u2")

	res, err := svc.Join(ctx, created.ID, u1.ID, 0, u1.Nickname)
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if res.SeatIndex != 0 || res.TeamID != 0 {
		t.Fatalf("unexpected join result: %+v", res)
	}

	if _, err := svc.Join(ctx, created.ID, u2.ID, 0, u2.Nickname); !errors.Is(err, appErr.ErrSeatTaken) {
		t.Fatalf("expected ErrSeatTaken for occupied seat, got %v", err)
	}
	if _, err := svc.Join(ctx, created.ID, u1.ID, 1, u1.Nickname); !errors.Is(err, appErr.ErrSeatTaken) {
		t.Fatalf("expected ErrSeatTaken for double join, got %v", err)
	}

	if res, err := svc.Join(ctx, created.ID, u2.ID, 4, u2.Nickname); err != nil || res.TeamID != 1 {
		t.Fatalf("seat 4 should land on team 1: %+v %v", res, err)
	}

	if err := svc.ValidateAccess(ctx, u1.ID, created.ID); err != nil {
		t.Fatalf("seated user denied access: %v", err)
	}

	if err := svc.Leave(ctx, created.ID, u1.ID); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if err := svc.ValidateAccess(ctx, u1.ID, created.ID); !errors.Is(err, appErr.ErrRoomAccessDenied) {
		t.Fatalf("expected ErrRoomAccessDenied after leave, got %v", err)
	}
	if err := svc.Leave(ctx, created.ID, u1.ID); !errors.Is(err, appErr.ErrRoomAccessDenied) {
		t.Fatalf("expected ErrRoomAccessDenied for non-member leave, got %v", err)
	}
}

func TestJoinStartedRoomRejected(t *testing.T) {
	ctx := context.Background()
	db, svc := newRoomService(t)

	created, err := svc.Create(ctx, "started")
	if err != nil {
		t.Fatalf("create room failed: %v", err)
	}
	if err := db.Model(&model.Room{}).Where("id = ?", created.ID).Update("status", "playing").Error; err != nil {
		t.Fatalf("mark playing: %v", err)
	}

	u := seedUser(t, db, "late_joiner")
	if _, err := svc.Join(ctx, created.ID, u.ID, 0, u.Nickname); !errors.Is(err, appErr.ErrRoomNotWaiting) {
		t.Fatalf("expected ErrRoomNotWaiting, got %v", err)
	}
}

func TestJoinMissingRoom(t *testing.T) {
	ctx := context.Background()
	_, svc := newRoomService(t)

	if _, err := svc.Join(ctx, 99999, 1, 0, "ghost"); !errors.Is(err, appErr.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := svc.Get(ctx, 99999); !errors.Is(err, appErr.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

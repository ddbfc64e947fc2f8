package model

import (
	"time"

	"gorm.io/datatypes"
)

type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	Nickname     string
	Avatar       string
	ActiveRoomID *int64
	ActiveSeat   *int
	Status       string `gorm:"default:normal;not null"` // normal/banned
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Code      string `gorm:"unique;not null;size:16"`
	Name      string
	Status    string         `gorm:"default:waiting;not null"` // waiting/playing/closed
	SeatCount int            `gorm:"default:6"`
	SeatsJSON datatypes.JSON `gorm:"type:jsonb"` // "0".."5" -> {userId, name}
	CreatedAt time.Time
	UpdatedAt time.Time
}

type RoundLog struct {
	ID         int64 `gorm:"primaryKey;autoIncrement"`
	RoomID     int64 `gorm:"index"`
	RoundNo    int
	Level      int
	MainSuit   string
	DealerSeat int
	ScoresJSON datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time
}

package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatTurn struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId string    `gorm:"type:varchar(64);not null;index"`
	Role      string    `gorm:"type:varchar(20);not null"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (ChatTurn) TableName() string {
	return "chat_turns"
}

package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChatTurn is one archived conversation message of a reading session
type ChatTurn struct {
	Id        uuid.UUID
	SessionId string
	Role      string
	Text      string
	CreatedAt time.Time
}

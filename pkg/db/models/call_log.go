package models

import (
	"time"

	"github.com/google/uuid"
)

// CallLog records one inbound call handled by the voice agent. Rows are
// written by the agent callback and only read by this service.
type CallLog struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PracticeID    uuid.UUID  `gorm:"column:practice_id;type:uuid;not null;index"`
	CallSID       *string    `gorm:"column:call_sid;unique"`
	CallerNumber  *string    `gorm:"column:caller_number"`
	StartedAt     time.Time  `gorm:"column:started_at;not null;index"`
	EndedAt       *time.Time `gorm:"column:ended_at"`
	DurationSecs  *int       `gorm:"column:duration_secs"`
	Outcome       *string    `gorm:"column:outcome"`
	ReservationID *uuid.UUID `gorm:"column:reservation_id;type:uuid"`
	Transcript    *string    `gorm:"column:transcript"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
}

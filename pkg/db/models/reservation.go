package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tabletalk-ai/tabletalk-backend/pkg/enums"
)

// Reservation is a table booking taken by the voice agent or the dashboard.
type Reservation struct {
	ID         uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PracticeID uuid.UUID               `gorm:"column:practice_id;type:uuid;not null;index"`
	GuestName  string                  `gorm:"column:guest_name;not null"`
	GuestPhone *string                 `gorm:"column:guest_phone"`
	PartySize  int                     `gorm:"column:party_size;not null"`
	Date       time.Time               `gorm:"column:date;type:date;not null;index"`
	Time       string                  `gorm:"column:time;not null"`
	Status     enums.ReservationStatus `gorm:"column:status;type:reservation_status;not null;default:'pending'"`
	Notes      *string                 `gorm:"column:notes"`
	Source     string                  `gorm:"column:source;not null;default:'phone'"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/enums"
)

// ListQuery configures reservation list queries.
type ListQuery struct {
	PracticeID uuid.UUID
	DateFrom   *time.Time
	DateTo     *time.Time
	Status     *enums.ReservationStatus
	Limit      int
	Offset     int
}

// Repository handles reservation persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reservation *models.Reservation) error
	Update(ctx context.Context, reservation *models.Reservation) error
	Delete(ctx context.Context, practiceID, id uuid.UUID) (int64, error)
	FindByID(ctx context.Context, practiceID, id uuid.UUID) (*models.Reservation, error)
	List(ctx context.Context, query ListQuery) ([]models.Reservation, error)
	CountActiveBetween(ctx context.Context, practiceID uuid.UUID, from, to time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reservation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) Update(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Save(reservation).Error
}

func (r *repository) Delete(ctx context.Context, practiceID, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("practice_id = ? AND id = ?", practiceID, id).
		Delete(&models.Reservation{})
	return res.RowsAffected, res.Error
}

func (r *repository) FindByID(ctx context.Context, practiceID, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).
		Where("practice_id = ? AND id = ?", practiceID, id).
		First(&reservation).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.Reservation, error) {
	limit := query.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("practice_id = ?", query.PracticeID)
	if query.DateFrom != nil {
		q = q.Where("date >= ?", *query.DateFrom)
	}
	if query.DateTo != nil {
		q = q.Where("date < ?", *query.DateTo)
	}
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	}

	var reservations []models.Reservation
	if err := q.Order("date ASC, time ASC, created_at ASC").
		Limit(limit).
		Offset(query.Offset).
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// CountActiveBetween counts confirmed and completed reservations with a date
// in the half-open range [from, to).
func (r *repository) CountActiveBetween(ctx context.Context, practiceID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("practice_id = ?", practiceID).
		Where("status IN ?", []enums.ReservationStatus{
			enums.ReservationStatusConfirmed,
			enums.ReservationStatusCompleted,
		}).
		Where("date >= ? AND date < ?", from, to).
		Count(&count).Error
	return count, err
}

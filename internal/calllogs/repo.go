package calllogs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
)

// ListQuery configures call log list queries.
type ListQuery struct {
	PracticeID uuid.UUID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// Repository handles call log persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, log *models.CallLog) error
	FindByCallSID(ctx context.Context, callSID string) (*models.CallLog, error)
	List(ctx context.Context, query ListQuery) ([]models.CallLog, error)
	CountBetween(ctx context.Context, practiceID uuid.UUID, from, to time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a call log repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, log *models.CallLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *repository) FindByCallSID(ctx context.Context, callSID string) (*models.CallLog, error) {
	if callSID == "" {
		return nil, nil
	}
	var log models.CallLog
	if err := r.db.WithContext(ctx).
		Where("call_sid = ?", callSID).
		First(&log).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.CallLog, error) {
	limit := query.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := r.db.WithContext(ctx).
		Model(&models.CallLog{}).
		Where("practice_id = ?", query.PracticeID)
	if query.From != nil {
		q = q.Where("started_at >= ?", *query.From)
	}
	if query.To != nil {
		q = q.Where("started_at < ?", *query.To)
	}

	var logs []models.CallLog
	if err := q.Order("started_at DESC").
		Limit(limit).
		Offset(query.Offset).
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// CountBetween counts calls started in the half-open range [from, to).
func (r *repository) CountBetween(ctx context.Context, practiceID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CallLog{}).
		Where("practice_id = ?", practiceID).
		Where("started_at >= ? AND started_at < ?", from, to).
		Count(&count).Error
	return count, err
}

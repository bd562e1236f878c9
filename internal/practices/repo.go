package practices

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tabletalk-ai/tabletalk-backend/pkg/db/models"
)

// Repository handles practice persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, practice *models.Practice) error
	Upsert(ctx context.Context, practice *models.Practice) error
	Update(ctx context.Context, practice *models.Practice) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Practice, error)
	FindByUserID(ctx context.Context, userID string) (*models.Practice, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*models.Practice, error)
	UpdateFieldsByID(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error)
	UpdateFieldsByUserID(ctx context.Context, userID string, fields map[string]any) (int64, error)
	UpdateFieldsByStripeCustomerID(ctx context.Context, customerID string, fields map[string]any) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a practice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, practice *models.Practice) error {
	return r.db.WithContext(ctx).Create(practice).Error
}

// Upsert inserts the practice or, when a row for the user already exists,
// refreshes the onboarding-editable columns on it.
func (r *repository) Upsert(ctx context.Context, practice *models.Practice) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "email", "phone", "opening_time", "closing_time",
				"max_capacity", "closed_days", "onboarding_completed", "updated_at",
			}),
		}).
		Create(practice).Error
}

func (r *repository) Update(ctx context.Context, practice *models.Practice) error {
	return r.db.WithContext(ctx).Save(practice).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Practice, error) {
	var practice models.Practice
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&practice).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &practice, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID string) (*models.Practice, error) {
	if userID == "" {
		return nil, nil
	}
	var practice models.Practice
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&practice).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &practice, nil
}

func (r *repository) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.Practice, error) {
	if customerID == "" {
		return nil, nil
	}
	var practice models.Practice
	if err := r.db.WithContext(ctx).
		Where("stripe_customer_id = ?", customerID).
		First(&practice).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &practice, nil
}

func (r *repository) UpdateFieldsByID(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Practice{}).
		Where("id = ?", id).
		Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateFieldsByUserID(ctx context.Context, userID string, fields map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Practice{}).
		Where("user_id = ?", userID).
		Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateFieldsByStripeCustomerID(ctx context.Context, customerID string, fields map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Practice{}).
		Where("stripe_customer_id = ?", customerID).
		Updates(fields)
	return res.RowsAffected, res.Error
}

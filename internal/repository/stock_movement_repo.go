package repository

import (
	"context"

	"trinity/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StockMovementRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, m *model.StockMovement) error
	ListByReference(ctx context.Context, referenceID uuid.UUID) ([]model.StockMovement, error)
}

type stockMovementRepo struct{ db *gorm.DB }

func NewStockMovementRepository(db *gorm.DB) StockMovementRepository {
	return &stockMovementRepo{db: db}
}

func (r *stockMovementRepo) CreateTx(ctx context.Context, tx *gorm.DB, m *model.StockMovement) error {
	return tx.WithContext(ctx).Create(m).Error
}

func (r *stockMovementRepo) ListByReference(ctx context.Context, referenceID uuid.UUID) ([]model.StockMovement, error) {
	var out []model.StockMovement
	err := r.db.WithContext(ctx).
		Where("reference_id = ?", referenceID).
		Order("product_id ASC").
		Find(&out).Error
	return out, err
}

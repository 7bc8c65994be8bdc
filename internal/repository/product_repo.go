package repository

import (
	"context"

	"trinity/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository is the catalog accessor. Catalog CRUD is owned by
// another service; here products are read and their stock decremented.
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)

	// LockForUpdateTx returns the rows for ids locked FOR UPDATE, ordered by
	// ascending id. Missing ids are simply absent from the result.
	LockForUpdateTx(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]model.Product, error)
	SetStockTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, stock int) error

	// Create is used by seeding and integration tests.
	Create(ctx context.Context, p *model.Product) error
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *productRepo) LockForUpdateTx(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	if len(ids) == 0 {
		return products, nil
	}
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) SetStockTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, stock int) error {
	res := tx.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"quantity_in_stock": stock, "updated_at": gorm.Expr("NOW()")})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productRepo) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

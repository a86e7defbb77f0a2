package dao

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"tradepilot/internal/server/model"
)

type PriceDao interface {
	AddSample(ctx context.Context, token string, price float64, at time.Time, source string) error
	// PriceAt returns the latest sample observed at or before at.
	PriceAt(ctx context.Context, token string, at time.Time) (float64, bool, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

type priceDAO struct {
	db *gorm.DB
}

func NewPriceDao(db *gorm.DB) PriceDao {
	return &priceDAO{db: db}
}

func (d *priceDAO) AddSample(ctx context.Context, token string, price float64, at time.Time, source string) error {
	return d.db.WithContext(ctx).Create(&model.PriceSample{
		Token:      strings.ToUpper(token),
		Price:      price,
		ObservedAt: at.UTC(),
		Source:     source,
	}).Error
}

func (d *priceDAO) PriceAt(ctx context.Context, token string, at time.Time) (float64, bool, error) {
	var sample model.PriceSample
	err := d.db.WithContext(ctx).
		Where("token = ? AND observed_at <= ?", strings.ToUpper(token), at.UTC()).
		Order("observed_at DESC").
		Take(&sample).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return sample.Price, true, nil
}

func (d *priceDAO) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := d.db.WithContext(ctx).Where("observed_at < ?", before.UTC()).Delete(&model.PriceSample{})
	return res.RowsAffected, res.Error
}

package model

import "time"

// PriceSample is one observed token price.
type PriceSample struct {
	ID         uint      `gorm:"primaryKey"`
	Token      string    `gorm:"type:varchar(32);not null;index:idx_token_observed"`
	Price      float64   `gorm:"not null"`
	ObservedAt time.Time `gorm:"not null;index:idx_token_observed"`
	Source     string    `gorm:"type:varchar(32)"`
}

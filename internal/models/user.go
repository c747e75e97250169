package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents application user. Cash is the simulated balance,
// mutated only by registration (initial grant) and committed trades.
type User struct {
	ID           uint            `gorm:"primaryKey"`
	Username     string          `gorm:"size:64;uniqueIndex;not null"`
	PasswordHash string          `gorm:"size:255;not null"`
	Cash         decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade actions recorded in the ledger.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// Transaction is a single row of the append-only trade ledger.
// Rows are never updated or deleted; holdings and cash history are
// derived from them.
type Transaction struct {
	ID             uint            `gorm:"primaryKey"`
	UserID         uint            `gorm:"index;not null"`
	Symbol         string          `gorm:"size:16;index;not null"`
	Shares         int64           `gorm:"not null"` // always positive; sign comes from Action
	Price          decimal.Decimal `gorm:"type:decimal(20,2);not null"` // execution price per share
	Action         string          `gorm:"size:8;not null"`             // BUY / SELL
	TransactAmount decimal.Decimal `gorm:"type:decimal(20,2);not null"` // shares * price
	CreatedAt      time.Time       `gorm:"index"`

	User User `gorm:"constraint:OnDelete:CASCADE"`
}

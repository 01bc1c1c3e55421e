package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	SKU               string    `db:"sku" json:"sku"`
	Stock             int       `db:"stock" json:"stock"`
	LowStockThreshold int       `db:"low_stock_threshold" json:"low_stock_threshold"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// LowStockProduct is a product at or below its effective replenishment threshold.
type LowStockProduct struct {
	ID                string
	Name              string
	SKU               string
	Stock             int
	LowStockThreshold int
	StockShortage     int
}

type MovementType string

const (
	MovementInbound    MovementType = "inbound"
	MovementSale       MovementType = "sale"
	MovementAdjustment MovementType = "adjustment"
	MovementDisposal   MovementType = "disposal"
	MovementRefund     MovementType = "refund"
)

const (
	ReferenceOrder  = "order"
	ReferenceRefund = "refund"
)

// Movement is an append-only ledger row. BalanceAfter always equals
// BalanceBefore + Quantity.
type Movement struct {
	ID            string           `json:"id"`
	ProductID     string           `json:"product_id"`
	Type          MovementType     `json:"type"`
	Quantity      int              `json:"quantity"`
	BalanceBefore int              `json:"balance_before"`
	BalanceAfter  int              `json:"balance_after"`
	ReferenceType string           `json:"reference_type,omitempty"`
	ReferenceID   string           `json:"reference_id,omitempty"`
	Note          string           `json:"note,omitempty"`
	UnitCost      *decimal.Decimal `json:"unit_cost,omitempty"`
	CreatedBy     string           `json:"created_by,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

func NewMovement(productID string, kind MovementType, before, after int, actorID string) Movement {
	return Movement{
		ID:            uuid.NewString(),
		ProductID:     productID,
		Type:          kind,
		Quantity:      after - before,
		BalanceBefore: before,
		BalanceAfter:  after,
		CreatedBy:     actorID,
		CreatedAt:     time.Now(),
	}
}

func (m Movement) WithReference(refType, refID string) Movement {
	if refID == "" {
		return m
	}
	m.ReferenceType = refType
	m.ReferenceID = refID
	return m
}

func (m Movement) WithNote(note string) Movement {
	m.Note = note
	return m
}

func (m Movement) WithUnitCost(cost decimal.Decimal) Movement {
	m.UnitCost = &cost
	return m
}

// Balanced reports whether the row satisfies after = before + delta.
func (m Movement) Balanced() bool {
	return m.BalanceAfter == m.BalanceBefore+m.Quantity
}

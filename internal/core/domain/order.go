package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID          string      `db:"id" json:"id"`
	OrderNumber string      `db:"order_number" json:"order_number"`
	CustomerID  string      `db:"customer_id" json:"customer_id"`
	ProductID   string      `db:"product_id" json:"product_id"`
	PCCC        string      `db:"pccc" json:"pccc"`
	Quantity    int         `db:"quantity" json:"quantity"`
	Status      OrderStatus `db:"status" json:"status"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// ParsedOrderNumber is the decomposition of a "YYMMDD-NNN" order number.
type ParsedOrderNumber struct {
	Year       int
	Month      int
	Day        int
	Sequence   int
	DateString string
	FullDate   time.Time
}

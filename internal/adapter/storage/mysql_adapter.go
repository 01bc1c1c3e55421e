package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/rl1809/oms-inventory/internal/core/domain"
	"github.com/rl1809/oms-inventory/internal/port"
)

const mysqlDuplicateEntry = 1062

var _ port.Store = (*MySQLAdapter)(nil)

type MySQLAdapter struct {
	db *sqlx.DB
}

func NewMySQLAdapter(db *sqlx.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

type stockBalance struct {
	previous int
	current  int
}

type movementRow struct {
	ID            string              `db:"id"`
	ProductID     string              `db:"product_id"`
	Type          domain.MovementType `db:"movement_type"`
	Quantity      int                 `db:"quantity"`
	BalanceBefore int                 `db:"balance_before"`
	BalanceAfter  int                 `db:"balance_after"`
	ReferenceType sql.NullString      `db:"reference_type"`
	ReferenceID   sql.NullString      `db:"reference_id"`
	Note          string              `db:"note"`
	UnitCost      decimal.NullDecimal `db:"unit_cost"`
	CreatedBy     string              `db:"created_by"`
	CreatedAt     time.Time           `db:"created_at"`
}

func newMovementRow(m domain.Movement) movementRow {
	row := movementRow{
		ID:            m.ID,
		ProductID:     m.ProductID,
		Type:          m.Type,
		Quantity:      m.Quantity,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		ReferenceType: sql.NullString{String: m.ReferenceType, Valid: m.ReferenceType != ""},
		ReferenceID:   sql.NullString{String: m.ReferenceID, Valid: m.ReferenceID != ""},
		Note:          m.Note,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
	}
	if m.UnitCost != nil {
		row.UnitCost = decimal.NewNullDecimal(*m.UnitCost)
	}
	return row
}

func (r movementRow) toDomain() domain.Movement {
	m := domain.Movement{
		ID:            r.ID,
		ProductID:     r.ProductID,
		Type:          r.Type,
		Quantity:      r.Quantity,
		BalanceBefore: r.BalanceBefore,
		BalanceAfter:  r.BalanceAfter,
		ReferenceType: r.ReferenceType.String,
		ReferenceID:   r.ReferenceID.String,
		Note:          r.Note,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt,
	}
	if r.UnitCost.Valid {
		cost := r.UnitCost.Decimal
		m.UnitCost = &cost
	}
	return m
}

const insertMovementQuery = `
	INSERT INTO inventory_movements
		(id, product_id, movement_type, quantity, balance_before, balance_after,
		 reference_type, reference_id, note, unit_cost, created_by, created_at)
	VALUES
		(:id, :product_id, :movement_type, :quantity, :balance_before, :balance_after,
		 :reference_type, :reference_id, :note, :unit_cost, :created_by, :created_at)`

func (m *MySQLAdapter) SaveProduct(ctx context.Context, p domain.Product) error {
	_, err := m.db.NamedExecContext(ctx, `
		INSERT INTO products (id, name, sku, stock, low_stock_threshold, is_active, updated_at)
		VALUES (:id, :name, :sku, :stock, :low_stock_threshold, :is_active, NOW(6))
		ON DUPLICATE KEY UPDATE
			name = VALUES(name), sku = VALUES(sku), stock = VALUES(stock),
			low_stock_threshold = VALUES(low_stock_threshold), is_active = VALUES(is_active),
			updated_at = NOW(6)`, p)
	if err != nil {
		return fmt.Errorf("save product %s: %w", p.ID, err)
	}
	return nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := m.db.GetContext(ctx, &p, `
		SELECT id, name, sku, stock, low_stock_threshold, is_active, updated_at
		FROM products WHERE id = ?`, productID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ProductNotFoundError{ProductID: productID}
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) UpdateProductStock(ctx context.Context, productID string, stock int) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products SET stock = ?, updated_at = NOW(6) WHERE id = ?`,
		stock, productID,
	)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}

	// MySQL reports zero affected rows when the value is unchanged, so only a
	// missing row is an error.
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := m.GetProduct(ctx, productID); err != nil {
			return err
		}
	}
	return nil
}

func (m *MySQLAdapter) IncrementStock(ctx context.Context, productID string, delta int) (int, int, error) {
	bal, err := txClosure(ctx, m.db, func(ctx context.Context, tx *sqlx.Tx) (stockBalance, error) {
		previous, err := lockStock(ctx, tx, productID)
		if err != nil {
			return stockBalance{}, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET stock = stock + ?, updated_at = NOW(6) WHERE id = ?`,
			delta, productID,
		); err != nil {
			return stockBalance{}, fmt.Errorf("increment stock: %w", err)
		}
		return stockBalance{previous: previous, current: previous + delta}, nil
	})
	if err != nil {
		return 0, 0, err
	}
	return bal.previous, bal.current, nil
}

func (m *MySQLAdapter) AtomicDeduct(ctx context.Context, req port.AtomicDeductRequest) (int, int, error) {
	bal, err := txClosure(ctx, m.db, func(ctx context.Context, tx *sqlx.Tx) (stockBalance, error) {
		previous, err := lockStock(ctx, tx, req.ProductID)
		if err != nil {
			return stockBalance{}, err
		}
		if previous < req.Quantity {
			return stockBalance{previous: previous, current: previous}, &domain.InsufficientStockError{
				ProductID: req.ProductID,
				Requested: req.Quantity,
				Available: previous,
			}
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - ?, updated_at = NOW(6)
			WHERE id = ? AND stock >= ?`,
			req.Quantity, req.ProductID, req.Quantity,
		)
		if err != nil {
			return stockBalance{}, fmt.Errorf("deduct stock: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return stockBalance{}, &domain.InsufficientStockError{
				ProductID: req.ProductID,
				Requested: req.Quantity,
				Available: previous,
			}
		}

		current := previous - req.Quantity
		mv := domain.NewMovement(req.ProductID, req.MovementType, previous, current, req.ActorID).
			WithReference(req.ReferenceType, req.ReferenceID).
			WithNote(req.Note)
		if _, err := tx.NamedExecContext(ctx, insertMovementQuery, newMovementRow(mv)); err != nil {
			return stockBalance{}, fmt.Errorf("insert movement: %w", err)
		}

		return stockBalance{previous: previous, current: current}, nil
	})
	if err != nil {
		return bal.previous, bal.current, err
	}
	return bal.previous, bal.current, nil
}

func (m *MySQLAdapter) ListLowStockProducts(ctx context.Context, thresholdOverride *int) ([]domain.Product, error) {
	var products []domain.Product
	err := m.db.SelectContext(ctx, &products, `
		SELECT id, name, sku, stock, low_stock_threshold, is_active, updated_at
		FROM products
		WHERE is_active = TRUE AND stock <= COALESCE(?, low_stock_threshold)
		ORDER BY stock ASC, id ASC`, thresholdOverride)
	if err != nil {
		return nil, fmt.Errorf("query low stock: %w", err)
	}
	return products, nil
}

func (m *MySQLAdapter) InsertMovement(ctx context.Context, movement domain.Movement) error {
	if _, err := m.db.NamedExecContext(ctx, insertMovementQuery, newMovementRow(movement)); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListMovements(ctx context.Context, productID string) ([]domain.Movement, error) {
	var rows []movementRow
	err := m.db.SelectContext(ctx, &rows, `
		SELECT id, product_id, movement_type, quantity, balance_before, balance_after,
		       reference_type, reference_id, note, unit_cost, created_by, created_at
		FROM inventory_movements
		WHERE product_id = ?
		ORDER BY seq ASC`, productID)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}

	movements := make([]domain.Movement, len(rows))
	for i, row := range rows {
		movements[i] = row.toDomain()
	}
	return movements, nil
}

func (m *MySQLAdapter) MaxOrderNumberForDate(ctx context.Context, dateString string) (string, bool, error) {
	var number string
	err := m.db.GetContext(ctx, &number, `
		SELECT order_number FROM orders
		WHERE order_number LIKE ?
		ORDER BY order_number DESC
		LIMIT 1`, dateString+"-%")

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query max order number: %w", err)
	}
	return number, true, nil
}

func (m *MySQLAdapter) InsertOrder(ctx context.Context, order domain.Order) error {
	_, err := m.db.NamedExecContext(ctx, `
		INSERT INTO orders (id, order_number, customer_id, product_id, pccc, quantity, status, created_at, updated_at)
		VALUES (:id, :order_number, :customer_id, :product_id, :pccc, :quantity, :status, :created_at, :updated_at)`,
		order,
	)
	if isDuplicateEntry(err) {
		return fmt.Errorf("insert order %s: %w", order.OrderNumber, domain.ErrDuplicateOrderNumber)
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		INSERT IGNORE INTO idempotency_keys (idempotency_key, created_at) VALUES (?, NOW(6))`, key)
	if err != nil {
		return false, fmt.Errorf("set idempotency: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

func (m *MySQLAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE idempotency_key = ?`, key); err != nil {
		return fmt.Errorf("release idempotency: %w", err)
	}
	return nil
}

func lockStock(ctx context.Context, tx *sqlx.Tx, productID string) (int, error) {
	var stock int
	err := tx.GetContext(ctx, &stock, `SELECT stock FROM products WHERE id = ? FOR UPDATE`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &domain.ProductNotFoundError{ProductID: productID}
	}
	if err != nil {
		return 0, fmt.Errorf("lock product: %w", err)
	}
	return stock, nil
}

func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return false
}

func txClosure[T any](ctx context.Context, db *sqlx.DB, fn func(ctx context.Context, tx *sqlx.Tx) (T, error)) (res T, err error) {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return res, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}

		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("tx failed: %w, rollback failed: %v", err, rbErr)
			}
			return
		}

		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("commit tx: %w", err)
		}
	}()

	return fn(ctx, tx)
}

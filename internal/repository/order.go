package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oluwaseun-a/po-tracker/constants"
	"github.com/oluwaseun-a/po-tracker/internal/entity"
)

// Pool is the subset of pgxpool.Pool the repository needs.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type OrderRepository interface {
	// Save upserts by PO number. The PO number itself is immutable; replays
	// of the same order bump the revision and refresh the mutable fields.
	Save(ctx context.Context, po *entity.PurchaseOrder) error
	GetByNumber(ctx context.Context, poNumber string) (*entity.PurchaseOrder, error)
	List(ctx context.Context, fromDate, toDate *time.Time) ([]*entity.PurchaseOrder, error)
	// UpdateStatus appends a history entry and bumps the revision.
	UpdateStatus(ctx context.Context, poNumber string, status constants.POStatus, user, notes string) error
}

type orderRepository struct {
	pool   Pool
	logger *slog.Logger
}

func NewOrderRepository(pool Pool, logger *slog.Logger) OrderRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &orderRepository{pool: pool, logger: logger}
}

func (r *orderRepository) Save(ctx context.Context, po *entity.PurchaseOrder) error {
	buyer, err := json.Marshal(po.Buyer)
	if err != nil {
		return fmt.Errorf("marshal buyer: %w", err)
	}
	delivery, err := json.Marshal(po.Delivery)
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}
	items, err := json.Marshal(po.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	weights, err := json.Marshal(po.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	history, err := json.Marshal(po.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO purchase_orders
			(id, po_number, status, order_date, buyer, delivery, items, weights, total, revision, notes, history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		ON CONFLICT (po_number) DO UPDATE SET
			status     = EXCLUDED.status,
			order_date = EXCLUDED.order_date,
			buyer      = EXCLUDED.buyer,
			delivery   = EXCLUDED.delivery,
			items      = EXCLUDED.items,
			weights    = EXCLUDED.weights,
			total      = EXCLUDED.total,
			revision   = purchase_orders.revision + 1,
			notes      = EXCLUDED.notes,
			history    = purchase_orders.history || EXCLUDED.history,
			updated_at = now()`,
		po.ID, po.PONumber, string(po.Status), nullableTime(po.OrderDate),
		buyer, delivery, items, weights, po.Total, po.Revision, po.Notes, history,
	)
	if err != nil {
		r.logger.Error("repository.order.save_failed", "po_number", po.PONumber, "error", err)
		return fmt.Errorf("save order %q: %w", po.PONumber, err)
	}
	r.logger.Info("repository.order.saved", "po_number", po.PONumber, "total", po.Total)
	return nil
}

func (r *orderRepository) GetByNumber(ctx context.Context, poNumber string) (*entity.PurchaseOrder, error) {
	row := r.pool.QueryRow(ctx, selectOrder+` WHERE po_number = $1`, poNumber)
	return scanOrder(row)
}

func (r *orderRepository) List(ctx context.Context, fromDate, toDate *time.Time) ([]*entity.PurchaseOrder, error) {
	q := selectOrder + ` WHERE 1=1`
	args := []any{}
	if fromDate != nil {
		args = append(args, *fromDate)
		q += fmt.Sprintf(" AND order_date >= $%d", len(args))
	}
	if toDate != nil {
		args = append(args, *toDate)
		q += fmt.Sprintf(" AND order_date <= $%d", len(args))
	}
	q += ` ORDER BY order_date, po_number`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.Error("repository.order.list_failed", "error", err)
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []*entity.PurchaseOrder
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

func (r *orderRepository) UpdateStatus(ctx context.Context, poNumber string, status constants.POStatus, user, notes string) error {
	if _, ok := constants.CanonicalStatus(string(status)); !ok {
		return fmt.Errorf("unknown status %q", status)
	}
	change, err := json.Marshal([]entity.StatusChange{{
		Status:    status,
		Timestamp: time.Now().UTC(),
		User:      user,
		Notes:     notes,
	}})
	if err != nil {
		return fmt.Errorf("marshal status change: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE purchase_orders SET
			status     = $2,
			history    = history || $3::jsonb,
			revision   = revision + 1,
			updated_at = now()
		WHERE po_number = $1`,
		poNumber, string(status), change,
	)
	if err != nil {
		r.logger.Error("repository.order.update_status_failed", "po_number", poNumber, "error", err)
		return fmt.Errorf("update status for %q: %w", poNumber, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %q not found", poNumber)
	}
	r.logger.Info("repository.order.status_updated", "po_number", poNumber, "status", string(status))
	return nil
}

const selectOrder = `
	SELECT id, po_number, status, order_date, buyer, delivery, items, weights,
	       total, revision, notes, history, created_at, updated_at
	FROM purchase_orders`

func scanOrder(row pgx.Row) (*entity.PurchaseOrder, error) {
	var (
		po        entity.PurchaseOrder
		status    string
		orderDate *time.Time
		buyer     []byte
		delivery  []byte
		items     []byte
		weights   []byte
		history   []byte
	)
	if err := row.Scan(&po.ID, &po.PONumber, &status, &orderDate, &buyer, &delivery,
		&items, &weights, &po.Total, &po.Revision, &po.Notes, &history,
		&po.CreatedAt, &po.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	po.Status = constants.POStatus(status)
	if orderDate != nil {
		po.OrderDate = *orderDate
	}
	for _, col := range []struct {
		raw []byte
		dst any
	}{
		{buyer, &po.Buyer},
		{delivery, &po.Delivery},
		{items, &po.Items},
		{weights, &po.Weights},
		{history, &po.History},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("decode order column: %w", err)
		}
	}
	return &po, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

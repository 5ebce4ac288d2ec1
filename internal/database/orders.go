package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, customer_name, phone_number, service_kind, category,
	raw_quantity, price, status, received_at, completed_at, note`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.CustomerName,
		&o.PhoneNumber,
		&o.ServiceKind,
		&o.Category,
		&o.RawQuantity,
		&o.Price,
		&o.Status,
		&o.ReceivedAt,
		&o.CompletedAt,
		&o.Note,
	)
	return o, err
}

const createOrder = `
INSERT INTO orders (
	customer_name, phone_number, service_kind, category,
	raw_quantity, price, status, received_at, note
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	CustomerName string
	PhoneNumber  pgtype.Text
	ServiceKind  string
	Category     string
	RawQuantity  float64
	Price        int64
	Status       string
	ReceivedAt   time.Time
	Note         pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.CustomerName,
		arg.PhoneNumber,
		arg.ServiceKind,
		arg.Category,
		arg.RawQuantity,
		arg.Price,
		arg.Status,
		arg.ReceivedAt,
		arg.Note,
	)
	return scanOrder(row)
}

const getOrder = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

// GetOrderForUpdate locks the row for the rest of the transaction so a
// concurrent update cannot interleave with the read-modify-write cycle.
const getOrderForUpdate = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrders = `SELECT ` + orderColumns + ` FROM orders ORDER BY received_at DESC`

func (q *Queries) ListOrders(ctx context.Context) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const updateOrder = `
UPDATE orders SET
	customer_name = $2,
	phone_number = $3,
	service_kind = $4,
	category = $5,
	raw_quantity = $6,
	price = $7,
	status = $8,
	completed_at = $9,
	note = $10
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderParams struct {
	ID           uuid.UUID
	CustomerName string
	PhoneNumber  pgtype.Text
	ServiceKind  string
	Category     string
	RawQuantity  float64
	Price        int64
	Status       string
	CompletedAt  pgtype.Timestamptz
	Note         pgtype.Text
}

func (q *Queries) UpdateOrder(ctx context.Context, arg UpdateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrder,
		arg.ID,
		arg.CustomerName,
		arg.PhoneNumber,
		arg.ServiceKind,
		arg.Category,
		arg.RawQuantity,
		arg.Price,
		arg.Status,
		arg.CompletedAt,
		arg.Note,
	)
	return scanOrder(row)
}

const deleteOrder = `DELETE FROM orders WHERE id = $1 RETURNING id`

func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteOrder, id).Scan(&deleted)
	return deleted, err
}

const deleteOldCompletedOrders = `
DELETE FROM orders
WHERE status = $1 AND completed_at IS NOT NULL AND completed_at < $2`

type DeleteOldCompletedOrdersParams struct {
	Status string
	Cutoff time.Time
}

func (q *Queries) DeleteOldCompletedOrders(ctx context.Context, arg DeleteOldCompletedOrdersParams) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteOldCompletedOrders, arg.Status, arg.Cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

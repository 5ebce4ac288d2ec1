package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/laundryku/api/internal/database"
	"github.com/laundryku/api/internal/enum"
	"github.com/laundryku/api/internal/pricing"
)

// Errors returned by the order service.
var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrCustomerNameRequired = errors.New("customer_name is required")
	ErrInvalidQuantity      = errors.New("raw_quantity must be > 0")
	ErrInvalidStatus        = errors.New("invalid status")
)

// retentionPeriod is how long completed orders are kept before the sweep
// removes them.
const retentionPeriod = 7 * 24 * time.Hour

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to mutate orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	DeleteOldCompletedOrders(ctx context.Context, arg database.DeleteOldCompletedOrdersParams) (int64, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the input for creating an order.
type CreateOrderRequest struct {
	CustomerName string
	PhoneNumber  string
	ServiceKind  string
	Category     string
	RawQuantity  float64
	Note         string
}

// UpdateOrderRequest is a partial update. Nil fields are left untouched.
type UpdateOrderRequest struct {
	CustomerName *string
	PhoneNumber  *string
	ServiceKind  *string
	Category     *string
	RawQuantity  *float64
	Status       *string
	Note         *string
}

// OrderService handles order business logic: pricing, the status lifecycle,
// and atomic persistence.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	prices   pricing.Table

	// now is the clock used for received_at/completed_at stamps.
	now func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, prices pricing.Table) *OrderService {
	return &OrderService{
		pool:     pool,
		newStore: newStore,
		prices:   prices,
		now:      time.Now,
	}
}

// CreateOrder validates the input, prices the job, and inserts the order in
// a single transaction. New orders always start in_progress with no
// completion timestamp.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (database.Order, error) {
	if req.CustomerName == "" {
		return database.Order{}, ErrCustomerNameRequired
	}
	if req.RawQuantity <= 0 {
		return database.Order{}, ErrInvalidQuantity
	}

	quote, err := s.prices.Quote(req.ServiceKind, req.Category, req.RawQuantity)
	if err != nil {
		return database.Order{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		CustomerName: req.CustomerName,
		PhoneNumber:  textOrNull(req.PhoneNumber),
		ServiceKind:  req.ServiceKind,
		Category:     req.Category,
		RawQuantity:  req.RawQuantity,
		Price:        quote.Price,
		Status:       enum.StatusInProgress,
		ReceivedAt:   s.now(),
		Note:         textOrNull(req.Note),
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("create order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// UpdateOrder applies a partial update to an order atomically. The price is
// recomputed only when a pricing input (service kind, category, or raw
// quantity) actually changes value; a status change into or out of completed
// stamps or clears completed_at. Any validation failure rejects the whole
// update before commit.
func (s *OrderService) UpdateOrder(ctx context.Context, id uuid.UUID, req UpdateOrderRequest) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	repriceNeeded := false

	if req.CustomerName != nil {
		if *req.CustomerName == "" {
			return database.Order{}, ErrCustomerNameRequired
		}
		order.CustomerName = *req.CustomerName
	}
	if req.PhoneNumber != nil {
		order.PhoneNumber = textOrNull(*req.PhoneNumber)
	}
	if req.ServiceKind != nil && *req.ServiceKind != order.ServiceKind {
		order.ServiceKind = *req.ServiceKind
		repriceNeeded = true
	}
	if req.Category != nil && *req.Category != order.Category {
		order.Category = *req.Category
		repriceNeeded = true
	}
	if req.RawQuantity != nil {
		if *req.RawQuantity <= 0 {
			return database.Order{}, ErrInvalidQuantity
		}
		if *req.RawQuantity != order.RawQuantity {
			order.RawQuantity = *req.RawQuantity
			repriceNeeded = true
		}
	}

	if repriceNeeded {
		quote, err := s.prices.Quote(order.ServiceKind, order.Category, order.RawQuantity)
		if err != nil {
			return database.Order{}, err
		}
		order.Price = quote.Price
	}

	if req.Status != nil {
		newStatus := *req.Status
		if !isValidStatus(newStatus) {
			return database.Order{}, ErrInvalidStatus
		}
		// Entering completed stamps the pickup time; leaving it (an order
		// marked completed by mistake) clears the stamp again.
		if newStatus == enum.StatusCompleted && order.Status != enum.StatusCompleted {
			order.CompletedAt = pgtype.Timestamptz{Time: s.now(), Valid: true}
		} else if order.Status == enum.StatusCompleted && newStatus != enum.StatusCompleted {
			order.CompletedAt = pgtype.Timestamptz{}
		}
		order.Status = newStatus
	}

	if req.Note != nil {
		order.Note = textOrNull(*req.Note)
	}

	updated, err := store.UpdateOrder(ctx, database.UpdateOrderParams{
		ID:           order.ID,
		CustomerName: order.CustomerName,
		PhoneNumber:  order.PhoneNumber,
		ServiceKind:  order.ServiceKind,
		Category:     order.Category,
		RawQuantity:  order.RawQuantity,
		Price:        order.Price,
		Status:       order.Status,
		CompletedAt:  order.CompletedAt,
		Note:         order.Note,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("update order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

// DeleteOrder removes an order. Deleting an already-deleted order reports
// ErrOrderNotFound; repeated deletes are not idempotent.
func (s *OrderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := s.newStore(tx).DeleteOrder(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("delete order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// SweepOldCompletedOrders deletes completed orders whose completion stamp is
// older than the retention period, and reports how many were removed.
func (s *OrderService) SweepOldCompletedOrders(ctx context.Context, now time.Time) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	count, err := s.newStore(tx).DeleteOldCompletedOrders(ctx, database.DeleteOldCompletedOrdersParams{
		Status: enum.StatusCompleted,
		Cutoff: now.Add(-retentionPeriod),
	})
	if err != nil {
		return 0, fmt.Errorf("delete old completed orders: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return count, nil
}

// --- Helpers ---

func isValidStatus(s string) bool {
	switch s {
	case enum.StatusInProgress, enum.StatusReadyForPickup, enum.StatusCompleted:
		return true
	}
	return false
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

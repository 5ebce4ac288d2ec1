package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Order is one laundry job. Price is derived from the pricing inputs and is
// never written independently of them; CompletedAt is set iff Status is
// completed.
type Order struct {
	ID           uuid.UUID
	CustomerName string
	PhoneNumber  pgtype.Text
	ServiceKind  string
	Category     string
	RawQuantity  float64
	Price        int64
	Status       string
	ReceivedAt   time.Time
	CompletedAt  pgtype.Timestamptz
	Note         pgtype.Text
}

type User struct {
	ID             uuid.UUID
	Username       string
	HashedPassword string
	Role           string
}

// Package repository provides database operations for subscriptions.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/subscription-tracker/pkg/money"
)

// ErrNotFound is returned when a subscription does not exist for the user.
var ErrNotFound = errors.New("subscription not found")

// Frequency is how often a subscription bills.
type Frequency string

const (
	FrequencyOneOff  Frequency = "one-off"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// ParseFrequency validates a frequency name.
func ParseFrequency(s string) (Frequency, bool) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case FrequencyOneOff, FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return f, true
	}
	return "", false
}

// Subscription is a persisted recurring charge owned by one user.
type Subscription struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Name         string     `json:"name"`
	AmountMinor  int64      `json:"amount_minor"`
	CurrencyCode string     `json:"currency"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	Frequency    Frequency  `json:"frequency"`
	Category     string     `json:"category"`
	Tags         []string   `json:"tags"`
	Cancelled    bool       `json:"cancelled"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	// ScreenshotFileID references a stored upload.
	ScreenshotFileID *string `json:"screenshot_file_id,omitempty"`
	// NotDuplicate excludes the record from duplicate detection.
	NotDuplicate bool      `json:"not_duplicate"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Amount returns the charge as Money.
func (s *Subscription) Amount() *money.Money {
	return money.New(s.AmountMinor, s.CurrencyCode)
}

// DBTX is the subset of pgxpool.Pool used by the repository.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SubscriptionRepository defines the interface for subscription persistence
type SubscriptionRepository interface {
	// InsertMany stores all subscriptions or none.
	InsertMany(ctx context.Context, subs []*Subscription) error
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*Subscription, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	SetCancelled(ctx context.Context, userID, id uuid.UUID, cancelled bool, at *time.Time) error
	MarkNotDuplicate(ctx context.Context, userID, id uuid.UUID) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

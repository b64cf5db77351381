package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const subscriptionColumns = `id, user_id, name, amount_minor, currency_code, start_date, frequency,
	category, tags, cancelled, cancelled_at, notes, screenshot_file_id, not_duplicate,
	created_at, updated_at`

// PostgresSubscriptionRepository implements SubscriptionRepository using PostgreSQL
type PostgresSubscriptionRepository struct {
	db DBTX
}

// NewPostgresSubscriptionRepository creates a new PostgreSQL subscription repository
func NewPostgresSubscriptionRepository(db DBTX) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db}
}

// InsertMany inserts subscriptions in one transaction
func (r *PostgresSubscriptionRepository) InsertMany(ctx context.Context, subs []*Subscription) error {
	if len(subs) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO subscriptions (id, user_id, name, amount_minor, currency_code, start_date, frequency,
			category, tags, cancelled, notes, screenshot_file_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	for _, sub := range subs {
		if sub.ID == uuid.Nil {
			sub.ID = uuid.New()
		}
		if sub.Tags == nil {
			sub.Tags = []string{}
		}
		err := tx.QueryRow(ctx, query,
			sub.ID,
			sub.UserID,
			sub.Name,
			sub.AmountMinor,
			sub.CurrencyCode,
			sub.StartDate,
			sub.Frequency,
			sub.Category,
			sub.Tags,
			sub.Cancelled,
			sub.Notes,
			sub.ScreenshotFileID,
		).Scan(&sub.CreatedAt, &sub.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert subscription %q: %w", sub.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit subscriptions: %w", err)
	}
	return nil
}

// ListByUserID retrieves all subscriptions for a user, oldest first
func (r *PostgresSubscriptionRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]*Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

// GetByID retrieves a subscription by ID
func (r *PostgresSubscriptionRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE id = $1 AND user_id = $2`

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// Update replaces the editable fields of a subscription
func (r *PostgresSubscriptionRepository) Update(ctx context.Context, sub *Subscription) error {
	query := `
		UPDATE subscriptions
		SET name = $3, amount_minor = $4, currency_code = $5, start_date = $6, frequency = $7,
			category = $8, tags = $9, notes = $10, screenshot_file_id = $11, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		sub.ID,
		sub.UserID,
		sub.Name,
		sub.AmountMinor,
		sub.CurrencyCode,
		sub.StartDate,
		sub.Frequency,
		sub.Category,
		sub.Tags,
		sub.Notes,
		sub.ScreenshotFileID,
	).Scan(&sub.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

// SetCancelled sets or clears the cancelled flag
func (r *PostgresSubscriptionRepository) SetCancelled(ctx context.Context, userID, id uuid.UUID, cancelled bool, at *time.Time) error {
	query := `
		UPDATE subscriptions
		SET cancelled = $3, cancelled_at = $4, updated_at = now()
		WHERE id = $1 AND user_id = $2`

	result, err := r.db.Exec(ctx, query, id, userID, cancelled, at)
	if err != nil {
		return fmt.Errorf("failed to update cancelled flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkNotDuplicate excludes a subscription from duplicate detection
func (r *PostgresSubscriptionRepository) MarkNotDuplicate(ctx context.Context, userID, id uuid.UUID) error {
	query := `UPDATE subscriptions SET not_duplicate = TRUE, updated_at = now() WHERE id = $1 AND user_id = $2`

	result, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark not duplicate: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a subscription
func (r *PostgresSubscriptionRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	query := `DELETE FROM subscriptions WHERE id = $1 AND user_id = $2`

	result, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	sub := &Subscription{}
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Name,
		&sub.AmountMinor,
		&sub.CurrencyCode,
		&sub.StartDate,
		&sub.Frequency,
		&sub.Category,
		&sub.Tags,
		&sub.Cancelled,
		&sub.CancelledAt,
		&sub.Notes,
		&sub.ScreenshotFileID,
		&sub.NotDuplicate,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

package normalizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/parser"
)

// ErrOverrideNotFound is returned when an override does not exist for the user.
var ErrOverrideNotFound = errors.New("merchant override not found")

// ErrInvalidOverride is returned when an override fails validation.
var ErrInvalidOverride = errors.New("invalid merchant override")

// MatchType controls how an override pattern is compared with a description.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchContains MatchType = "contains"
)

// MerchantOverride is a user's correction for a merchant name or category.
type MerchantOverride struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	MatchPattern  string     `json:"match_pattern"`
	MatchType     MatchType  `json:"match_type"`
	MerchantName  string     `json:"merchant_name"`
	Category      *string    `json:"category,omitempty"`
	MatchCount    int        `json:"match_count"`
	LastMatchedAt *time.Time `json:"last_matched_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Matches reports whether the override applies to a transaction. Exact
// patterns compare against the cleaned merchant name or the full description;
// contains patterns search the description.
func (o MerchantOverride) Matches(tx parser.Transaction) bool {
	pattern := strings.TrimSpace(o.MatchPattern)
	if pattern == "" {
		return false
	}
	switch o.MatchType {
	case MatchExact:
		return strings.EqualFold(tx.Merchant, pattern) || strings.EqualFold(tx.Description, pattern)
	case MatchContains:
		return strings.Contains(strings.ToUpper(tx.Description), strings.ToUpper(pattern))
	}
	return false
}

// ApplyOverrides rewrites merchant and category on every transaction matched
// by an override. The first matching override wins. It returns the IDs of the
// overrides that matched at least once.
func ApplyOverrides(txs []parser.Transaction, overrides []MerchantOverride) []uuid.UUID {
	if len(overrides) == 0 {
		return nil
	}

	seen := make(map[uuid.UUID]bool)
	var matched []uuid.UUID
	for i := range txs {
		for _, o := range overrides {
			if !o.Matches(txs[i]) {
				continue
			}
			if o.MerchantName != "" {
				txs[i].Merchant = o.MerchantName
			}
			if o.Category != nil && *o.Category != "" {
				txs[i].Category = *o.Category
			}
			if !seen[o.ID] {
				seen[o.ID] = true
				matched = append(matched, o.ID)
			}
			break
		}
	}
	return matched
}

// DBTX is the subset of pgxpool.Pool used by the override store.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OverrideStore manages user merchant overrides in the database
type OverrideStore struct {
	db DBTX
}

// NewOverrideStore creates a new override store
func NewOverrideStore(db DBTX) *OverrideStore {
	return &OverrideStore{db: db}
}

// SaveOverride creates or updates a user's merchant override
func (s *OverrideStore) SaveOverride(ctx context.Context, override MerchantOverride) (*MerchantOverride, error) {
	if override.MatchType == "" {
		override.MatchType = MatchContains
	}
	if override.MatchType != MatchExact && override.MatchType != MatchContains {
		return nil, fmt.Errorf("%w: unknown match type %q", ErrInvalidOverride, override.MatchType)
	}
	override.MatchPattern = strings.ToUpper(strings.TrimSpace(override.MatchPattern))
	if override.MatchPattern == "" {
		return nil, fmt.Errorf("%w: match pattern is required", ErrInvalidOverride)
	}
	override.MerchantName = strings.TrimSpace(override.MerchantName)
	if override.MerchantName == "" {
		return nil, fmt.Errorf("%w: merchant name is required", ErrInvalidOverride)
	}

	query := `
		INSERT INTO user_merchant_overrides (
			user_id, match_pattern, match_type, merchant_name, category
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, match_pattern) DO UPDATE SET
			match_type = EXCLUDED.match_type,
			merchant_name = EXCLUDED.merchant_name,
			category = EXCLUDED.category,
			updated_at = now()
		RETURNING id, user_id, match_pattern, match_type, merchant_name, category,
			match_count, last_matched_at, created_at, updated_at
	`

	row := s.db.QueryRow(ctx, query,
		override.UserID,
		override.MatchPattern,
		override.MatchType,
		override.MerchantName,
		override.Category,
	)
	result, err := scanOverride(row)
	if err != nil {
		return nil, fmt.Errorf("failed to save merchant override: %w", err)
	}
	return result, nil
}

// ListForUser returns all overrides for a user, most used first.
func (s *OverrideStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]MerchantOverride, error) {
	query := `
		SELECT id, user_id, match_pattern, match_type, merchant_name, category,
			match_count, last_matched_at, created_at, updated_at
		FROM user_merchant_overrides
		WHERE user_id = $1
		ORDER BY match_count DESC, updated_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list merchant overrides: %w", err)
	}
	defer rows.Close()

	overrides := make([]MerchantOverride, 0)
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan merchant override: %w", err)
		}
		overrides = append(overrides, *o)
	}
	return overrides, rows.Err()
}

// RecordMatches bumps the match counters of the given overrides.
func (s *OverrideStore) RecordMatches(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE user_merchant_overrides
		SET match_count = match_count + 1, last_matched_at = now()
		WHERE id = ANY($1)
	`
	if _, err := s.db.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("failed to record override matches: %w", err)
	}
	return nil
}

// DeleteOverride removes an override
func (s *OverrideStore) DeleteOverride(ctx context.Context, userID, overrideID uuid.UUID) error {
	query := `DELETE FROM user_merchant_overrides WHERE id = $1 AND user_id = $2`
	result, err := s.db.Exec(ctx, query, overrideID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete merchant override: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOverrideNotFound
	}
	return nil
}

func scanOverride(row pgx.Row) (*MerchantOverride, error) {
	var o MerchantOverride
	err := row.Scan(
		&o.ID, &o.UserID, &o.MatchPattern, &o.MatchType,
		&o.MerchantName, &o.Category,
		&o.MatchCount, &o.LastMatchedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

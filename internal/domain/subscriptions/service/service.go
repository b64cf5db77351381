// Package service provides business logic for subscription management:
// importing detected charges, duplicate checks, search and summaries.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/recurrence"
	"github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/billing"
	"github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/dedupe"
	"github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/repository"
	"github.com/FACorreiaa/subscription-tracker/pkg/metrics"
	"github.com/FACorreiaa/subscription-tracker/pkg/money"
)

// ErrInvalidInput marks a request the caller must fix.
var ErrInvalidInput = errors.New("invalid input")

// DefaultTag is assumed for subscriptions without tags.
const DefaultTag = "Personal"

// SortOption orders a subscription list.
type SortOption string

const (
	SortNone         SortOption = ""
	SortAlphabetical SortOption = "alphabetical"
	SortValueHigh    SortOption = "value-high"
	SortValueLow     SortOption = "value-low"
)

// ParseSortOption validates a sort option name.
func ParseSortOption(s string) (SortOption, error) {
	switch o := SortOption(strings.ToLower(strings.TrimSpace(s))); o {
	case SortNone, SortAlphabetical, SortValueHigh, SortValueLow:
		return o, nil
	}
	return SortNone, fmt.Errorf("%w: unknown sort option %q", ErrInvalidInput, s)
}

// ListOptions narrows and orders a subscription list.
type ListOptions struct {
	Query    string
	Tags     []string
	Sort     SortOption
	Currency string
}

// ImportSelection is a detected charge the user chose to keep, with optional
// edits.
type ImportSelection struct {
	Detected recurrence.DetectedSubscription `json:"detected"`
	// Name and Frequency override the detected values when set.
	Name             string               `json:"name,omitempty"`
	Frequency        repository.Frequency `json:"frequency,omitempty"`
	Tags             []string             `json:"tags,omitempty"`
	Notes            string               `json:"notes,omitempty"`
	ScreenshotFileID *string              `json:"screenshot_file_id,omitempty"`
}

// UpdateInput edits a stored subscription. Nil fields keep their value.
type UpdateInput struct {
	Name             *string          `json:"name"`
	Amount           *decimal.Decimal `json:"amount"`
	Currency         *string          `json:"currency"`
	StartDate        *string          `json:"start_date"`
	Frequency        *string          `json:"frequency"`
	Category         *string          `json:"category"`
	Tags             []string         `json:"tags"`
	Notes            *string          `json:"notes"`
	ScreenshotFileID *string          `json:"screenshot_file_id"`
}

// Summary is the dashboard view of a user's subscriptions.
type Summary struct {
	Currency     string                    `json:"currency"`
	TotalMonthly decimal.Decimal           `json:"total_monthly"`
	Display      string                    `json:"total_monthly_display"`
	ActiveCount  int                       `json:"active_count"`
	Skipped      []uuid.UUID               `json:"skipped,omitempty"`
	Upcoming     []billing.UpcomingPayment `json:"upcoming"`
}

// Service provides subscription management business logic
type Service struct {
	repo            repository.SubscriptionRepository
	converter       *money.Converter
	detector        *dedupe.Detector
	displayCurrency string
	metrics         *metrics.Metrics
	logger          *slog.Logger
	now             func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithDuplicatePolicy selects the duplicate rule. The default is fuzzy.
func WithDuplicatePolicy(policy dedupe.Policy) Option {
	return func(s *Service) {
		s.detector = dedupe.NewDetector(policy, s.converter, dedupe.WithClock(s.clock))
	}
}

// WithDisplayCurrency sets the currency used when a request names none.
func WithDisplayCurrency(code string) Option {
	return func(s *Service) {
		if code != "" {
			s.displayCurrency = strings.ToUpper(code)
		}
	}
}

// WithMetrics records duplicate counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the clock used for dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new subscriptions service
func NewService(repo repository.SubscriptionRepository, converter *money.Converter, logger *slog.Logger, opts ...Option) *Service {
	if converter == nil {
		converter = money.DefaultConverter()
	}
	s := &Service{
		repo:            repo,
		converter:       converter,
		displayCurrency: money.USD,
		logger:          logger,
		now:             time.Now,
	}
	s.detector = dedupe.NewDetector(dedupe.PolicyFuzzy, converter, dedupe.WithClock(s.clock))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now()
}

// currency resolves and validates a requested display currency.
func (s *Service) currency(code string) (string, error) {
	if code == "" {
		return s.displayCurrency, nil
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if !s.converter.Supports(code) {
		return "", fmt.Errorf("%w: unsupported currency %q", ErrInvalidInput, code)
	}
	return code, nil
}

// ImportDetected turns selected detections into subscriptions and stores
// them all at once. The start date is the most recent charge in the
// detection's group.
func (s *Service) ImportDetected(ctx context.Context, userID uuid.UUID, selections []ImportSelection) ([]*repository.Subscription, error) {
	if len(selections) == 0 {
		return nil, fmt.Errorf("%w: nothing selected", ErrInvalidInput)
	}

	subs := make([]*repository.Subscription, 0, len(selections))
	for i, sel := range selections {
		sub, err := fromSelection(userID, sel)
		if err != nil {
			return nil, fmt.Errorf("selection %d: %w", i, err)
		}
		subs = append(subs, sub)
	}

	if err := s.repo.InsertMany(ctx, subs); err != nil {
		return nil, fmt.Errorf("failed to import subscriptions: %w", err)
	}

	s.logger.Info("imported detected subscriptions",
		slog.String("user_id", userID.String()),
		slog.Int("count", len(subs)),
	)
	return subs, nil
}

func fromSelection(userID uuid.UUID, sel ImportSelection) (*repository.Subscription, error) {
	d := sel.Detected

	name := strings.TrimSpace(sel.Name)
	if name == "" {
		name = strings.TrimSpace(d.Name)
	}
	if name == "" {
		name = strings.TrimSpace(d.Description)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	amount := averageCharge(d)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	currency := strings.ToUpper(d.Currency)
	if currency == "" {
		currency = money.USD
	}

	frequency := sel.Frequency
	if frequency == "" {
		frequency = repository.Frequency(d.Frequency)
	}
	if frequency == "" {
		frequency = repository.FrequencyMonthly
	}
	parsed, ok := repository.ParseFrequency(string(frequency))
	if !ok {
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, frequency)
	}

	var start *time.Time
	if latest := latestCharge(d); !latest.IsZero() {
		start = &latest
	}
	return &repository.Subscription{
		ID:               uuid.New(),
		UserID:           userID,
		Name:             name,
		AmountMinor:      money.NewFromDecimal(amount, currency).Amount(),
		CurrencyCode:     currency,
		StartDate:        start,
		Frequency:        parsed,
		Category:         d.Category,
		Tags:             sel.Tags,
		Notes:            strings.TrimSpace(sel.Notes),
		ScreenshotFileID: sel.ScreenshotFileID,
	}, nil
}

// averageCharge is the mean of the group's charges, or the detection's own
// amount when it carries no group.
func averageCharge(d recurrence.DetectedSubscription) decimal.Decimal {
	if len(d.Transactions) == 0 {
		return d.Amount
	}
	sum := decimal.Zero
	for _, tx := range d.Transactions {
		sum = sum.Add(tx.Amount)
	}
	return sum.Div(decimal.NewFromInt(int64(len(d.Transactions)))).Round(2)
}

func latestCharge(d recurrence.DetectedSubscription) time.Time {
	latest := d.Date.Time
	for _, tx := range d.Transactions {
		if tx.Date.After(latest) {
			latest = tx.Date.Time
		}
	}
	return latest
}

// List returns a user's subscriptions, filtered and sorted.
func (s *Service) List(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]*repository.Subscription, error) {
	currency, err := s.currency(opts.Currency)
	if err != nil {
		return nil, err
	}

	subs, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	subs = FilterByTags(subs, opts.Tags)
	subs = Filter(subs, opts.Query)
	return Sort(subs, opts.Sort, currency, s.converter), nil
}

// FindDuplicates returns the user's subscriptions that duplicate another
// one, in list order.
func (s *Service) FindDuplicates(ctx context.Context, userID uuid.UUID, currency string) ([]*repository.Subscription, error) {
	currency, err := s.currency(currency)
	if err != nil {
		return nil, err
	}

	subs, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	ids := s.detector.Find(subs, currency)
	out := make([]*repository.Subscription, 0, len(ids))
	for _, sub := range subs {
		if _, ok := ids[sub.ID]; ok {
			out = append(out, sub)
		}
	}

	if s.metrics != nil {
		s.metrics.DuplicatesFound.Add(float64(len(out)))
	}
	return out, nil
}

// Update applies an edit to a stored subscription and returns the result.
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, in UpdateInput) (*repository.Subscription, error) {
	sub, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		sub.Name = name
	}
	if in.Currency != nil {
		code := strings.ToUpper(strings.TrimSpace(*in.Currency))
		if !s.converter.Supports(code) {
			return nil, fmt.Errorf("%w: unsupported currency %q", ErrInvalidInput, *in.Currency)
		}
		if code != sub.CurrencyCode && in.Amount == nil {
			in.Amount = ptr(sub.Amount().ToDecimal())
		}
		sub.CurrencyCode = code
	}
	if in.Amount != nil {
		if !in.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
		}
		sub.AmountMinor = money.NewFromDecimal(*in.Amount, sub.CurrencyCode).Amount()
	}
	if in.Frequency != nil {
		f, ok := repository.ParseFrequency(*in.Frequency)
		if !ok {
			return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, *in.Frequency)
		}
		sub.Frequency = f
	}
	if in.StartDate != nil {
		if strings.TrimSpace(*in.StartDate) == "" {
			sub.StartDate = nil
		} else {
			start, err := time.Parse(time.DateOnly, strings.TrimSpace(*in.StartDate))
			if err != nil {
				return nil, fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrInvalidInput)
			}
			sub.StartDate = &start
		}
	}
	if in.Category != nil {
		sub.Category = strings.TrimSpace(*in.Category)
	}
	if in.Tags != nil {
		sub.Tags = in.Tags
	}
	if in.Notes != nil {
		sub.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.ScreenshotFileID != nil {
		sub.ScreenshotFileID = in.ScreenshotFileID
		if *in.ScreenshotFileID == "" {
			sub.ScreenshotFileID = nil
		}
	}

	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}
	return sub, nil
}

func ptr[T any](v T) *T { return &v }

// MarkNotDuplicate excludes a subscription from future duplicate checks.
func (s *Service) MarkNotDuplicate(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.MarkNotDuplicate(ctx, userID, id); err != nil {
		return fmt.Errorf("failed to mark subscription: %w", err)
	}
	return nil
}

// ToggleCancelled flips a subscription between active and cancelled.
func (s *Service) ToggleCancelled(ctx context.Context, userID, id uuid.UUID) (*repository.Subscription, error) {
	sub, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	cancelled := !sub.Cancelled
	var at *time.Time
	if cancelled {
		now := s.now().UTC()
		at = &now
	}

	if err := s.repo.SetCancelled(ctx, userID, id, cancelled, at); err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}

	sub.Cancelled = cancelled
	sub.CancelledAt = at
	return sub, nil
}

// Delete removes a subscription.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

// Summary totals the monthly cost of active subscriptions and lists
// upcoming payments.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID, currency string) (*Summary, error) {
	currency, err := s.currency(currency)
	if err != nil {
		return nil, err
	}

	subs, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	total := billing.TotalMonthly(subs, currency, s.converter)
	active := 0
	for _, sub := range subs {
		if !sub.Cancelled {
			active++
		}
	}

	monthly := money.NewFromDecimal(total.Amount, currency)
	return &Summary{
		Currency:     currency,
		TotalMonthly: monthly.ToDecimal(),
		Display:      monthly.Display(),
		ActiveCount:  active,
		Skipped:      total.Skipped,
		Upcoming:     billing.UpcomingPayments(subs, s.now()),
	}, nil
}

// Filter keeps subscriptions whose name, notes, currency or frequency
// contain query, or whose name fuzzily matches it. An empty query keeps all.
func Filter(subs []*repository.Subscription, query string) []*repository.Subscription {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return subs
	}

	out := make([]*repository.Subscription, 0, len(subs))
	for _, sub := range subs {
		if strings.Contains(strings.ToLower(sub.Name), query) ||
			strings.Contains(strings.ToLower(sub.Notes), query) ||
			strings.Contains(strings.ToLower(sub.CurrencyCode), query) ||
			strings.Contains(string(sub.Frequency), query) ||
			fuzzy.MatchNormalizedFold(query, sub.Name) {
			out = append(out, sub)
		}
	}
	return out
}

// FilterByTags keeps subscriptions carrying any of tags. Untagged
// subscriptions count as DefaultTag. No tags keeps all.
func FilterByTags(subs []*repository.Subscription, tags []string) []*repository.Subscription {
	if len(tags) == 0 {
		return subs
	}

	wanted := make(map[string]bool, len(tags))
	for _, t := range tags {
		wanted[strings.ToLower(strings.TrimSpace(t))] = true
	}

	out := make([]*repository.Subscription, 0, len(subs))
	for _, sub := range subs {
		subTags := sub.Tags
		if len(subTags) == 0 {
			subTags = []string{DefaultTag}
		}
		for _, t := range subTags {
			if wanted[strings.ToLower(t)] {
				out = append(out, sub)
				break
			}
		}
	}
	return out
}

// Sort returns a sorted copy. Value sorts compare monthly equivalents in
// currency; subscriptions that cannot be converted count as zero.
func Sort(subs []*repository.Subscription, option SortOption, currency string, conv billing.Converter) []*repository.Subscription {
	sorted := make([]*repository.Subscription, len(subs))
	copy(sorted, subs)

	switch option {
	case SortAlphabetical:
		sort.SliceStable(sorted, func(i, j int) bool {
			return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
		})
	case SortValueHigh, SortValueLow:
		values := make(map[uuid.UUID]decimal.Decimal, len(sorted))
		for _, sub := range sorted {
			v, err := billing.MonthlyValue(sub, currency, conv)
			if err != nil {
				v = decimal.Zero
			}
			values[sub.ID] = v
		}
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := values[sorted[i].ID], values[sorted[j].ID]
			if option == SortValueHigh {
				return a.GreaterThan(b)
			}
			return a.LessThan(b)
		})
	}
	return sorted
}

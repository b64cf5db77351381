// Package service provides the statement import orchestration: it turns an
// uploaded PDF into normalised transactions and subscription candidates.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/extractor"
	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/normalizer"
	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/parser"
	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/recurrence"
	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/sniffer"
	"github.com/FACorreiaa/subscription-tracker/pkg/metrics"
	"github.com/FACorreiaa/subscription-tracker/pkg/storage"
)

const tracerName = "github.com/FACorreiaa/subscription-tracker/internal/domain/import/service"

// Outcome summarises what a parse produced.
type Outcome string

const (
	OutcomeOK              Outcome = "ok"
	OutcomeNoTransactions  Outcome = "no_transactions"
	OutcomeNoSubscriptions Outcome = "no_subscriptions"
)

const (
	MessageNoTransactions  = "no transactions found, file may be image-based"
	MessageNoSubscriptions = "transactions found, but none looked like subscriptions"
)

// Options tune a single parse.
type Options struct {
	// Format forces a layout; FormatUnknown detects it.
	Format parser.Format
	// StatementYear fixes the year for layouts that omit it; zero infers it.
	StatementYear int
	// Overrides are the user's merchant corrections, applied after
	// normalisation.
	Overrides []normalizer.MerchantOverride
}

// Result is the outcome of running a statement through the pipeline.
type Result struct {
	Format        parser.Format                     `json:"format"`
	Fingerprint   string                            `json:"fingerprint,omitempty"`
	StatementYear int                               `json:"statement_year,omitempty"`
	Transactions  []parser.Transaction              `json:"transactions"`
	Detected      []recurrence.DetectedSubscription `json:"detected"`
	Outcome       Outcome                           `json:"outcome"`
	Message       string                            `json:"message,omitempty"`
	RowsTotal     int                               `json:"rows_total"`
	SkippedRows   int                               `json:"skipped_rows"`
	// FileID references the stored upload, when storage is configured.
	FileID *uuid.UUID `json:"file_id,omitempty"`

	matchedOverrides []uuid.UUID
}

// RecurringCount is the number of detected charges flagged as recurring.
func (r *Result) RecurringCount() int {
	n := 0
	for _, d := range r.Detected {
		if d.IsRecurring {
			n++
		}
	}
	return n
}

func emptyResult(outcome Outcome, message string) *Result {
	return &Result{
		Format:       parser.FormatUnknown,
		Transactions: []parser.Transaction{},
		Detected:     []recurrence.DetectedSubscription{},
		Outcome:      outcome,
		Message:      message,
	}
}

// OverrideStore loads and records a user's merchant overrides.
type OverrideStore interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]normalizer.MerchantOverride, error)
	RecordMatches(ctx context.Context, ids []uuid.UUID) error
}

// StatementUpload is one statement submitted by a user.
type StatementUpload struct {
	Filename string
	DataURL  string
	Options  Options
}

// ImportService orchestrates statement parsing. It holds no per-request
// state and is safe for concurrent use.
type ImportService struct {
	extractor      *extractor.Extractor
	normalizer     *normalizer.Normalizer
	overrides      OverrideStore   // Optional: nil if overrides are not available
	files          storage.Storage // Optional: nil if uploads are not kept
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	logger         *slog.Logger
	maxUploadBytes int64
	now            func() time.Time
}

// NewImportService creates a new import service
func NewImportService(ext *extractor.Extractor, logger *slog.Logger) *ImportService {
	if ext == nil {
		ext = extractor.NewExtractor(nil)
	}
	return &ImportService{
		extractor:  ext,
		normalizer: normalizer.NewNormalizer(),
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
		now:        time.Now,
	}
}

// WithOverrideStore applies each user's merchant overrides during import.
func (s *ImportService) WithOverrideStore(store OverrideStore) *ImportService {
	s.overrides = store
	return s
}

// WithStorage keeps uploaded statements so they can be attached later.
func (s *ImportService) WithStorage(files storage.Storage) *ImportService {
	s.files = files
	return s
}

// WithMetrics records pipeline metrics.
func (s *ImportService) WithMetrics(m *metrics.Metrics) *ImportService {
	s.metrics = m
	return s
}

// WithTracerProvider replaces the global tracer provider.
func (s *ImportService) WithTracerProvider(tp trace.TracerProvider) *ImportService {
	s.tracer = tp.Tracer(tracerName)
	return s
}

// WithMaxUploadBytes bounds decoded uploads; zero means unlimited.
func (s *ImportService) WithMaxUploadBytes(n int64) *ImportService {
	s.maxUploadBytes = n
	return s
}

// WithClock sets the clock used to infer statement years.
func (s *ImportService) WithClock(now func() time.Time) *ImportService {
	if now != nil {
		s.now = now
	}
	return s
}

// ImportStatement parses a user's upload with their overrides applied and,
// when storage is configured, keeps the file and returns its ID.
func (s *ImportService) ImportStatement(ctx context.Context, userID uuid.UUID, up StatementUpload) (*Result, error) {
	opts := up.Options
	if s.overrides != nil {
		overrides, err := s.overrides.ListForUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load merchant overrides: %w", err)
		}
		opts.Overrides = overrides
	}

	decoded, err := decodeDataURL(up.DataURL, s.maxUploadBytes)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		return nil, malformed(err)
	}

	result, err := s.parseUpload(ctx, decoded, opts)
	if err != nil {
		return nil, err
	}

	if s.overrides != nil && len(result.matchedOverrides) > 0 {
		if err := s.overrides.RecordMatches(ctx, result.matchedOverrides); err != nil {
			s.logger.Warn("failed to record override matches", slog.Any("error", err))
		}
	}

	if s.files != nil {
		name := up.Filename
		if name == "" {
			name = "statement"
		}
		info, err := s.files.Upload(ctx, userID, name, decoded.MediaType, bytes.NewReader(decoded.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to store statement: %w", err)
		}
		result.FileID = &info.ID
	}

	s.logger.Info("statement imported",
		slog.String("user_id", userID.String()),
		slog.String("format", string(result.Format)),
		slog.Int("transactions", len(result.Transactions)),
		slog.Int("recurring", result.RecurringCount()),
		slog.String("outcome", string(result.Outcome)),
	)
	return result, nil
}

// ParseDataURL decodes a base64 data URL and parses it. Image uploads have
// no text layer and return OutcomeNoTransactions.
func (s *ImportService) ParseDataURL(ctx context.Context, dataURL string, opts Options) (*Result, error) {
	decoded, err := decodeDataURL(dataURL, s.maxUploadBytes)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		return nil, malformed(err)
	}
	return s.parseUpload(ctx, decoded, opts)
}

func (s *ImportService) parseUpload(ctx context.Context, up upload, opts Options) (*Result, error) {
	switch {
	case up.isImage():
		result := emptyResult(OutcomeNoTransactions, MessageNoTransactions)
		s.record(result)
		return result, nil
	case up.isPDF():
		return s.ParsePDF(ctx, up.Data, opts)
	}
	return nil, malformed(fmt.Errorf("unsupported content type %q", up.MediaType))
}

// ParsePDF runs the full pipeline over PDF bytes: extract rows, detect the
// layout, parse rows, normalise merchants, then detect recurring charges.
func (s *ImportService) ParsePDF(ctx context.Context, data []byte, opts Options) (result *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "import.ParsePDF", trace.WithAttributes(
		attribute.Int("pdf.bytes", len(data)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.String("statement.format", string(result.Format)),
				attribute.Int("statement.transactions", len(result.Transactions)),
				attribute.String("statement.outcome", string(result.Outcome)),
			)
		}
		span.End()
	}()

	rows, err := s.extract(ctx, data)
	if err != nil {
		return nil, err
	}

	detection := s.detect(ctx, rows)
	format := opts.Format
	if format == "" || format == parser.FormatUnknown {
		format = detection.Format
	}

	parsed := s.parse(ctx, rows, format, opts.StatementYear)
	matched := s.normalize(ctx, parsed.Transactions, opts.Overrides)
	detected := s.detectRecurrence(ctx, parsed.Transactions)

	result = &Result{
		Format:           parsed.Format,
		Fingerprint:      detection.Fingerprint,
		StatementYear:    parsed.StatementYear,
		Transactions:     parsed.Transactions,
		Detected:         detected,
		Outcome:          OutcomeOK,
		RowsTotal:        parsed.TotalRows,
		SkippedRows:      parsed.SkippedRows,
		matchedOverrides: matched,
	}
	if result.Transactions == nil {
		result.Transactions = []parser.Transaction{}
	}

	switch {
	case len(result.Transactions) == 0:
		result.Outcome = OutcomeNoTransactions
		result.Message = MessageNoTransactions
	case result.RecurringCount() == 0:
		result.Outcome = OutcomeNoSubscriptions
		result.Message = MessageNoSubscriptions
	}

	s.record(result)
	s.logger.Debug("statement parsed",
		slog.String("format", string(result.Format)),
		slog.Int("rows", result.RowsTotal),
		slog.Int("skipped_rows", result.SkippedRows),
		slog.Int("transactions", len(result.Transactions)),
		slog.Int("recurring", result.RecurringCount()),
	)
	return result, nil
}

func (s *ImportService) extract(ctx context.Context, data []byte) ([]extractor.Row, error) {
	ctx, span := s.tracer.Start(ctx, "import.extract")
	defer span.End()
	start := time.Now()
	defer s.observe("extract", start)

	rows, err := s.extractor.Extract(ctx, data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, malformed(err)
	}
	span.SetAttributes(attribute.Int("rows", len(rows)))
	return rows, nil
}

func (s *ImportService) detect(ctx context.Context, rows []extractor.Row) sniffer.Detection {
	_, span := s.tracer.Start(ctx, "import.detect")
	defer span.End()
	start := time.Now()
	defer s.observe("detect", start)

	d := sniffer.Detect(rows)
	span.SetAttributes(attribute.String("format", string(d.Format)))
	return d
}

func (s *ImportService) parse(ctx context.Context, rows []extractor.Row, format parser.Format, year int) *parser.Result {
	_, span := s.tracer.Start(ctx, "import.parse")
	defer span.End()
	start := time.Now()
	defer s.observe("parse", start)

	opts := []parser.Option{parser.WithClock(s.now)}
	if year > 0 {
		opts = append(opts, parser.WithStatementYear(year))
	}
	res := parser.NewRegistry(opts...).Parse(rows, format)
	span.SetAttributes(
		attribute.String("format", string(res.Format)),
		attribute.Int("transactions", len(res.Transactions)),
		attribute.Int("skipped_rows", res.SkippedRows),
	)
	return res
}

func (s *ImportService) normalize(ctx context.Context, txs []parser.Transaction, overrides []normalizer.MerchantOverride) []uuid.UUID {
	_, span := s.tracer.Start(ctx, "import.normalize")
	defer span.End()
	start := time.Now()
	defer s.observe("normalize", start)

	s.normalizer.Apply(txs)
	return normalizer.ApplyOverrides(txs, overrides)
}

func (s *ImportService) detectRecurrence(ctx context.Context, txs []parser.Transaction) []recurrence.DetectedSubscription {
	_, span := s.tracer.Start(ctx, "import.recurrence")
	defer span.End()
	start := time.Now()
	defer s.observe("recurrence", start)

	return recurrence.Detect(txs)
}

func (s *ImportService) observe(stage string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveStage(stage, start)
	}
}

func (s *ImportService) record(r *Result) {
	if s.metrics == nil {
		return
	}
	format := string(r.Format)
	s.metrics.StatementsParsed.WithLabelValues(format, string(r.Outcome)).Inc()
	s.metrics.TransactionsParsed.WithLabelValues(format).Add(float64(len(r.Transactions)))
	s.metrics.RowsSkipped.WithLabelValues(format).Add(float64(r.SkippedRows))
}

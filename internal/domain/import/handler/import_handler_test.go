package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/normalizer"
	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/subscription-tracker/internal/domain/import/service"
	"github.com/FACorreiaa/subscription-tracker/pkg/interceptors"
	"github.com/FACorreiaa/subscription-tracker/pkg/storage"
)

type fakeImporter struct {
	got    importservice.StatementUpload
	result *importservice.Result
	err    error
}

func (f *fakeImporter) ImportStatement(_ context.Context, _ uuid.UUID, up importservice.StatementUpload) (*importservice.Result, error) {
	f.got = up
	return f.result, f.err
}

type fakeOverrides struct {
	saved     []normalizer.MerchantOverride
	deleteErr error
}

func (f *fakeOverrides) ListForUser(context.Context, uuid.UUID) ([]normalizer.MerchantOverride, error) {
	return f.saved, nil
}

func (f *fakeOverrides) SaveOverride(_ context.Context, o normalizer.MerchantOverride) (*normalizer.MerchantOverride, error) {
	if o.MerchantName == "" {
		return nil, normalizer.ErrInvalidOverride
	}
	o.ID = uuid.New()
	f.saved = append(f.saved, o)
	return &o, nil
}

func (f *fakeOverrides) DeleteOverride(context.Context, uuid.UUID, uuid.UUID) error {
	return f.deleteErr
}

func newTestMux(t *testing.T, importer StatementImporter, overrides OverrideManager, files storage.Storage, maxBody int64) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	NewImportHandler(importer, overrides, files, maxBody, logger).RegisterRoutes(mux)
	return interceptors.UserID(mux)
}

func doRequest(h http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set(interceptors.UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestParseStatement(t *testing.T) {
	userID := uuid.NewString()

	t.Run("returns the parse result", func(t *testing.T) {
		importer := &fakeImporter{result: &importservice.Result{
			Format:       parser.FormatA,
			Transactions: []parser.Transaction{},
			Outcome:      importservice.OutcomeNoSubscriptions,
		}}
		h := newTestMux(t, importer, nil, nil, 0)

		rec := doRequest(h, http.MethodPost, "/v1/statements/parse", userID,
			`{"data_url":"data:application/pdf;base64,JVBERg==","filename":"march.pdf","format":"a","statement_year":2024}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "format_a", body["format"])
		assert.Equal(t, "no_subscriptions", body["outcome"])

		assert.Equal(t, "march.pdf", importer.got.Filename)
		assert.Equal(t, parser.FormatA, importer.got.Options.Format)
		assert.Equal(t, 2024, importer.got.Options.StatementYear)
	})

	tests := []struct {
		name     string
		userID   string
		body     string
		err      error
		wantCode int
	}{
		{"missing user", "", `{"data_url":"data:,x"}`, nil, http.StatusBadRequest},
		{"invalid json", userID, `{`, nil, http.StatusBadRequest},
		{"missing data url", userID, `{}`, nil, http.StatusBadRequest},
		{"unknown format", userID, `{"data_url":"data:,x","format":"c"}`, nil, http.StatusBadRequest},
		{"malformed upload", userID, `{"data_url":"data:,x"}`, fmt.Errorf("failed to parse PDF: %w", importservice.ErrMalformedInput), http.StatusBadRequest},
		{"too large", userID, `{"data_url":"data:,x"}`, importservice.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{"internal failure", userID, `{"data_url":"data:,x"}`, errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestMux(t, &fakeImporter{err: tt.err}, nil, nil, 0)
			rec := doRequest(h, http.MethodPost, "/v1/statements/parse", tt.userID, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestParseStatementBodyLimit(t *testing.T) {
	h := newTestMux(t, &fakeImporter{}, nil, nil, 16)
	body := `{"data_url":"data:application/pdf;base64,` + strings.Repeat("A", 64) + `"}`

	rec := doRequest(h, http.MethodPost, "/v1/statements/parse", uuid.NewString(), body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMerchantOverrideRoutes(t *testing.T) {
	overrides := &fakeOverrides{}
	h := newTestMux(t, &fakeImporter{}, overrides, nil, 0)
	userID := uuid.NewString()

	rec := doRequest(h, http.MethodPost, "/v1/merchant-overrides", userID,
		`{"match_pattern":"netflix","match_type":"contains","merchant_name":"Netflix Family"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, overrides.saved, 1)
	assert.Equal(t, userID, overrides.saved[0].UserID.String())

	rec = doRequest(h, http.MethodPost, "/v1/merchant-overrides", userID, `{"match_pattern":"netflix"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(h, http.MethodGet, "/v1/merchant-overrides", userID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	rec = doRequest(h, http.MethodDelete, "/v1/merchant-overrides/"+overrides.saved[0].ID.String(), userID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	overrides.deleteErr = normalizer.ErrOverrideNotFound
	rec = doRequest(h, http.MethodDelete, "/v1/merchant-overrides/"+uuid.NewString(), userID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(h, http.MethodDelete, "/v1/merchant-overrides/not-a-uuid", userID, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverrideRoutesDisabledWithoutStore(t *testing.T) {
	h := newTestMux(t, &fakeImporter{}, nil, nil, 0)
	rec := doRequest(h, http.MethodGet, "/v1/merchant-overrides", uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadFile(t *testing.T) {
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	h := newTestMux(t, &fakeImporter{}, nil, files, 0)

	owner := uuid.New()
	info, err := files.Upload(context.Background(), owner, "march.pdf", "application/pdf", bytes.NewReader([]byte("%PDF-1.4")))
	require.NoError(t, err)

	rec := doRequest(h, http.MethodGet, "/v1/files/"+info.ID.String(), owner.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4", rec.Body.String())

	rec = doRequest(h, http.MethodGet, "/v1/files/"+info.ID.String(), uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{
	"id", "user_id", "name", "amount_minor", "currency_code", "start_date", "frequency",
	"category", "tags", "cancelled", "cancelled_at", "notes", "screenshot_file_id", "not_duplicate",
	"created_at", "updated_at",
}

func TestPostgresSubscriptionRepository_InsertMany(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresSubscriptionRepository(mock)
	userID := uuid.New()
	start := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	subs := []*Subscription{
		{UserID: userID, Name: "Netflix", AmountMinor: 1599, CurrencyCode: "USD", StartDate: &start, Frequency: FrequencyMonthly, Category: "Entertainment"},
		{UserID: userID, Name: "Adobe", AmountMinor: 5499, CurrencyCode: "USD", StartDate: &start, Frequency: FrequencyYearly, Category: "Software"},
	}

	mock.ExpectBegin()
	for _, sub := range subs {
		mock.ExpectQuery(`INSERT INTO subscriptions`).
			WithArgs(pgxmock.AnyArg(), userID, sub.Name, sub.AmountMinor, "USD", &start, sub.Frequency,
				sub.Category, []string{}, false, "", (*string)(nil)).
			WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.InsertMany(context.Background(), subs))
	for _, sub := range subs {
		assert.NotEqual(t, uuid.Nil, sub.ID)
		assert.Equal(t, now, sub.CreatedAt)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSubscriptionRepository_InsertManyRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresSubscriptionRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO subscriptions`).WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err = repo.InsertMany(context.Background(), []*Subscription{{UserID: uuid.New(), Name: "Broken", CurrencyCode: "USD", Frequency: FrequencyMonthly}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Broken")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSubscriptionRepository_InsertManyEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	require.NoError(t, NewPostgresSubscriptionRepository(mock).InsertMany(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSubscriptionRepository_ListByUserID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresSubscriptionRepository(mock)
	userID := uuid.New()
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM subscriptions WHERE user_id = \$1`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow(uuid.New(), userID, "Netflix", int64(1599), "USD", &start, FrequencyMonthly,
				"Entertainment", []string{"video"}, false, (*time.Time)(nil), "", (*string)(nil), false, now, now).
			AddRow(uuid.New(), userID, "Gym", int64(50000), "HKD", (*time.Time)(nil), FrequencyMonthly,
				"Sports & Fitness", []string{}, true, &now, "front desk", (*string)(nil), true, now, now))

	subs, err := repo.ListByUserID(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	assert.Equal(t, "Netflix", subs[0].Name)
	assert.Equal(t, int64(1599), subs[0].AmountMinor)
	require.NotNil(t, subs[0].StartDate)
	assert.True(t, subs[0].StartDate.Equal(start))
	assert.Equal(t, []string{"video"}, subs[0].Tags)

	assert.True(t, subs[1].Cancelled)
	assert.True(t, subs[1].NotDuplicate)
	assert.Nil(t, subs[1].StartDate)
	assert.Equal(t, "front desk", subs[1].Notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSubscriptionRepository_GetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresSubscriptionRepository(mock)
	id, userID := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM subscriptions WHERE id = \$1 AND user_id = \$2`).
		WithArgs(id, userID).
		WillReturnRows(pgxmock.NewRows(columns))

	_, err = repo.GetByID(context.Background(), userID, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSubscriptionRepository_SetCancelled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresSubscriptionRepository(mock)
	id, userID := uuid.New(), uuid.New()
	at := time.Now()

	mock.ExpectExec(`UPDATE subscriptions`).
		WithArgs(id, userID, true, &at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE subscriptions`).
		WithArgs(id, userID, false, (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.SetCancelled(context.Background(), userID, id, true, &at))
	assert.ErrorIs(t, repo.SetCancelled(context.Background(), userID, id, false, nil), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSubscriptionRepository_MarkNotDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresSubscriptionRepository(mock)
	id, userID := uuid.New(), uuid.New()

	mock.ExpectExec(`UPDATE subscriptions SET not_duplicate = TRUE`).
		WithArgs(id, userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.MarkNotDuplicate(context.Background(), userID, id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSubscriptionRepository_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresSubscriptionRepository(mock)
	id, userID := uuid.New(), uuid.New()

	mock.ExpectExec(`DELETE FROM subscriptions`).
		WithArgs(id, userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM subscriptions`).
		WithArgs(id, userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), userID, id))
	assert.ErrorIs(t, repo.Delete(context.Background(), userID, id), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseFrequency(t *testing.T) {
	f, ok := ParseFrequency(" Monthly ")
	assert.True(t, ok)
	assert.Equal(t, FrequencyMonthly, f)

	_, ok = ParseFrequency("fortnightly")
	assert.False(t, ok)
}

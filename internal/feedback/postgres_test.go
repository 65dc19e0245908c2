package feedback

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var outcomeRowColumns = []string{
	"id", "prediction_id", "model_version", "predicted_value", "ci_lower", "ci_upper",
	"decline_probability", "decline_threshold", "observed_value", "notes", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO outcome_feedback")).
		WithArgs("pred-1", "1.0.0", 70.0, 50.95, 87.05, 0.05, 50.0, 66.7, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), created))

	o := testOutcome("pred-1", 66.7)
	require.NoError(t, store.Save(context.Background(), o))

	assert.Equal(t, int64(7), o.ID)
	assert.Equal(t, created, o.CreatedAt)
	assert.False(t, o.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO outcome_feedback")).
		WillReturnError(errors.New("connection reset"))

	err := store.Save(context.Background(), testOutcome("pred-1", 66.7))
	assert.ErrorContains(t, err, "failed to save outcome")
}

func TestPostgresStore_Get(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name      string
		setup     func(sqlmock.Sqlmock)
		wantFound bool
		wantErr   bool
	}{
		{
			name: "found",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("SELECT (.+) FROM outcome_feedback WHERE prediction_id").
					WithArgs("pred-1").
					WillReturnRows(sqlmock.NewRows(outcomeRowColumns).
						AddRow(int64(1), "pred-1", "1.0.0", 70.0, 50.95, 87.05, 0.05, 50.0, 40.0, "", now, now))
			},
			wantFound: true,
		},
		{
			name: "missing",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("SELECT (.+) FROM outcome_feedback WHERE prediction_id").
					WithArgs("pred-1").
					WillReturnError(sql.ErrNoRows)
			},
		},
		{
			name: "query error",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("SELECT (.+) FROM outcome_feedback WHERE prediction_id").
					WithArgs("pred-1").
					WillReturnError(errors.New("timeout"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			tt.setup(mock)

			got, err := store.Get(context.Background(), "pred-1")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if !tt.wantFound {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, 40.0, got.ObservedValue)
			assert.False(t, got.Covered())
			assert.True(t, got.Declined())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_ListCountDelete(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM outcome_feedback ORDER BY").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(outcomeRowColumns).
			AddRow(int64(2), "pred-2", "1.0.0", 70.0, 50.0, 90.0, 0.1, 50.0, 75.0, "", now, now).
			AddRow(int64(1), "pred-1", "1.0.0", 70.0, 50.0, 90.0, 0.1, 50.0, 45.0, "", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM outcome_feedback")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM outcome_feedback WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	list, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "pred-2", list[0].PredictionID)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, store.Delete(ctx, 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"database/sql"
	"math"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/study-replan-api/internal/models"
)

var runRowColumns = []string{"id", "plan_id", "user_id", "rescheduled", "failed", "total", "outcome", "strategy", "distribution", "executed_at", "duration_ms"}

func TestReplanRunRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReplanRunRepository(db)

	executed := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO replan_runs")).
		WithArgs(sqlmock.AnyArg(), int64(7), int64(3), 2, 1, 3, "partial", "subject-aware-intelligent", sqlmock.AnyArg(), executed, int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	run := &models.ReplanRun{PlanID: 7, UserID: 3, Rescheduled: 2, Failed: 1, Total: 3, Outcome: "partial", Strategy: "subject-aware-intelligent", ExecutedAt: executed, DurationMS: 12}
	require.NoError(t, repo.Create(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplanRunRepositoryListByPlan(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReplanRunRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM replan_runs WHERE plan_id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("FROM replan_runs WHERE plan_id = $1 ORDER BY executed_at DESC LIMIT $2 OFFSET $3")).
		WithArgs(int64(7), 2, 2).
		WillReturnRows(sqlmock.NewRows(runRowColumns).
			AddRow("run-1", 7, 3, 1, 0, 1, "complete", "subject-aware-intelligent", []byte(`[]`), time.Now(), 5))

	runs, total, err := repo.ListByPlan(context.Background(), models.ReplanRunFilter{PlanID: 7, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplanRunRepositoryListByPlanClampsPage(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReplanRunRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM replan_runs WHERE plan_id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $2 OFFSET $3")).
		WithArgs(int64(7), 100, (models.MaxRunPage-1)*100).
		WillReturnRows(sqlmock.NewRows(runRowColumns))

	runs, total, err := repo.ListByPlan(context.Background(), models.ReplanRunFilter{PlanID: 7, Page: math.MaxInt, PageSize: 100})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplanRunRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReplanRunRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM replan_runs WHERE id = $1 AND plan_id = $2")).
		WithArgs("run-9", int64(7)).
		WillReturnRows(sqlmock.NewRows(runRowColumns))

	_, err := repo.FindByID(context.Background(), 7, "run-9")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

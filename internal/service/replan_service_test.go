package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/study-replan-api/internal/dto"
	"github.com/noah-isme/study-replan-api/internal/models"
	"github.com/noah-isme/study-replan-api/internal/replan"
	appErrors "github.com/noah-isme/study-replan-api/pkg/errors"
)

var replanNow = time.Date(2024, time.March, 4, 15, 0, 0, 0, time.UTC)

func civil(month time.Month, day int) time.Time {
	return time.Date(2024, month, day, 0, 0, 0, 0, time.UTC)
}

type planRepoStub struct {
	plan         *models.StudyPlan
	findErr      error
	incrementErr error
	increments   int
}

func (s *planRepoStub) FindByIDAndUser(ctx context.Context, id, userID int64) (*models.StudyPlan, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.plan == nil || s.plan.ID != id || s.plan.UserID != userID {
		return nil, sql.ErrNoRows
	}
	copied := *s.plan
	return &copied, nil
}

func (s *planRepoStub) FindByIDAndUserForUpdate(ctx context.Context, exec sqlx.ExtContext, id, userID int64) (*models.StudyPlan, error) {
	return s.FindByIDAndUser(ctx, id, userID)
}

func (s *planRepoStub) IncrementPostponement(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	if s.incrementErr != nil {
		return s.incrementErr
	}
	s.increments++
	return nil
}

type sessionRepoStub struct {
	mu           sync.Mutex
	overdue      []models.StudySession
	future       []models.StudySession
	updateErr    error
	block        bool
	overdueCalls int
	updateCalls  int
	updates      []models.SessionDateUpdate
}

func (s *sessionRepoStub) ListOverdue(ctx context.Context, exec sqlx.ExtContext, planID int64, today time.Time) ([]models.StudySession, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overdueCalls++
	return s.overdue, nil
}

func (s *sessionRepoStub) ListFuture(ctx context.Context, exec sqlx.ExtContext, planID int64, today time.Time) ([]models.StudySession, error) {
	return s.future, nil
}

func (s *sessionRepoStub) UpdateDates(ctx context.Context, exec sqlx.ExtContext, planID int64, updates []models.SessionDateUpdate) error {
	s.updateCalls++
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, updates...)
	return nil
}

type runReaderStub struct {
	runs  []models.ReplanRun
	total int
	run   *models.ReplanRun
	err   error
}

func (s *runReaderStub) ListByPlan(ctx context.Context, filter models.ReplanRunFilter) ([]models.ReplanRun, int, error) {
	return s.runs, s.total, s.err
}

func (s *runReaderStub) FindByID(ctx context.Context, planID int64, id string) (*models.ReplanRun, error) {
	if s.run == nil || s.run.ID != id || s.run.PlanID != planID {
		return nil, sql.ErrNoRows
	}
	return s.run, nil
}

type recorderStub struct {
	runs []models.ReplanRun
}

func (s *recorderStub) Record(run models.ReplanRun) {
	s.runs = append(s.runs, run)
}

type cacheRepoStub struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{entries: map[string][]byte{}}
}

func (s *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = raw
	return nil
}

func (s *cacheRepoStub) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	s.deleted = append(s.deleted, keys...)
	return nil
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type replanFixture struct {
	svc      *ReplanService
	plans    *planRepoStub
	sessions *sessionRepoStub
	runs     *runReaderStub
	history  *recorderStub
	cache    *cacheRepoStub
	metrics  *MetricsService
	mock     sqlmock.Sqlmock
}

func newReplanFixture(t *testing.T) *replanFixture {
	t.Helper()
	tx, mock := newTxProviderMock(t)
	f := &replanFixture{
		plans: &planRepoStub{plan: &models.StudyPlan{
			ID:                     7,
			UserID:                 3,
			Name:                   "Bar exam",
			ExamDate:               civil(time.March, 31),
			SessionDurationMinutes: 60,
			WeeklyHours:            types.JSONText(`{"0":2,"1":2,"2":2,"3":2,"4":2,"5":2,"6":2}`),
		}},
		sessions: &sessionRepoStub{},
		runs:     &runReaderStub{},
		history:  &recorderStub{},
		cache:    newCacheRepoStub(),
		metrics:  NewMetricsService(),
		mock:     mock,
	}
	f.svc = NewReplanService(
		f.plans, f.sessions, f.runs, tx, NewLocalPlanLocker(), f.history,
		NewCacheService(f.cache, f.metrics, time.Minute, nil, true), f.metrics, nil, nil,
		ReplanConfig{Location: time.UTC, Policy: replan.DefaultPolicy(), RunTimeout: time.Second},
	)
	f.svc.now = func() time.Time { return replanNow }
	return f
}

func pendingRow(id int64, subject string, date time.Time) models.StudySession {
	return models.StudySession{
		ID:          id,
		StudyPlanID: 7,
		SubjectName: subject,
		SessionDate: date,
		SessionType: "Novo Tópico",
		Status:      models.SessionStatusPending,
	}
}

func requireAppError(t *testing.T, err error, want *appErrors.Error) *appErrors.Error {
	t.Helper()
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, want.Code, appErr.Code)
	assert.Equal(t, want.Status, appErr.Status)
	return appErr
}

var replanReq = dto.ReplanRequest{PlanID: 7, UserID: 3}

func TestReplanServiceExecuteReschedulesOverdueSessions(t *testing.T) {
	f := newReplanFixture(t)
	f.sessions.overdue = []models.StudySession{
		pendingRow(1, "Math", civil(time.March, 1)),
		pendingRow(2, "Math", civil(time.March, 2)),
		pendingRow(3, "Math", civil(time.March, 3)),
	}
	f.cache.entries[overdueCacheKey(7, 3, civil(time.March, 4))] = []byte(`{"count":3}`)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	execution, err := f.svc.Execute(context.Background(), replanReq)
	require.NoError(t, err)

	resp := execution.Response
	assert.True(t, resp.Success)
	assert.Equal(t, "all 3 overdue sessions were rescheduled", resp.Message)
	assert.Equal(t, 3, resp.Details.Rescheduled)
	assert.Equal(t, 0, resp.Details.Failed)
	assert.Equal(t, 3, resp.Details.Total)
	assert.Equal(t, replan.AlgorithmName, resp.Details.Strategy)
	require.Len(t, resp.Details.Distribution, 3)
	assert.Equal(t, "2024-03-05", resp.Details.Distribution[0].NewDate)
	assert.Equal(t, "2024-03-05", resp.Details.Distribution[1].NewDate)
	assert.Equal(t, "2024-03-06", resp.Details.Distribution[2].NewDate)
	assert.Equal(t, "2024-03-31", execution.ExamDate)
	assert.Equal(t, replan.AlgorithmName, execution.Algorithm)

	require.Len(t, f.sessions.updates, 3)
	assert.Equal(t, models.SessionDateUpdate{SessionID: 1, NewDate: civil(time.March, 5)}, f.sessions.updates[0])
	assert.Equal(t, 1, f.plans.increments)

	assert.Contains(t, f.cache.deleted, "replan:overdue:7:3:2024-03-04")

	require.Len(t, f.history.runs, 1)
	run := f.history.runs[0]
	assert.Equal(t, execution.RunID, run.ID)
	assert.Equal(t, "complete", run.Outcome)
	assert.Equal(t, 3, run.Total)
	assert.Contains(t, string(run.Distribution), `"new_date":"2024-03-05"`)
	assert.Equal(t, 1.0, counterValue(t, f.metrics.replanRuns.WithLabelValues("complete")))

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReplanServiceExecuteWithoutOverdueChangesNothing(t *testing.T) {
	f := newReplanFixture(t)
	f.sessions.future = []models.StudySession{pendingRow(9, "Math", civil(time.March, 6))}

	for i := 0; i < 2; i++ {
		f.mock.ExpectBegin()
		f.mock.ExpectRollback()

		execution, err := f.svc.Execute(context.Background(), replanReq)
		require.NoError(t, err)

		assert.Equal(t, dto.ReplanResponse{
			Success: true,
			Message: "no overdue sessions",
			Details: dto.ReplanDetails{},
		}, execution.Response)
		assert.Empty(t, execution.RunID)
	}
	assert.Equal(t, 2, f.sessions.overdueCalls)
	assert.Zero(t, f.sessions.updateCalls)
	assert.Zero(t, f.plans.increments)
	assert.Empty(t, f.sessions.updates)
	assert.Empty(t, f.history.runs)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReplanServiceExecuteAfterExamStillCountsPostponement(t *testing.T) {
	f := newReplanFixture(t)
	f.plans.plan.ExamDate = civil(time.March, 4)
	f.sessions.overdue = []models.StudySession{
		pendingRow(1, "Math", civil(time.March, 1)),
		pendingRow(2, "Law", civil(time.March, 2)),
	}
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	execution, err := f.svc.Execute(context.Background(), replanReq)
	require.NoError(t, err)

	resp := execution.Response
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "none of the 2 overdue sessions")
	assert.Contains(t, resp.Message, "extend the exam date")
	assert.Equal(t, 2, resp.Details.Failed)
	require.Len(t, resp.Details.Failures, 2)
	assert.Equal(t, string(replan.ReasonExamPassed), resp.Details.Failures[0].Reason)
	assert.Empty(t, f.sessions.updates)
	assert.Equal(t, 1, f.plans.increments)
	require.Len(t, f.history.runs, 1)
	assert.Equal(t, "none", f.history.runs[0].Outcome)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReplanServiceExecutePartialMessage(t *testing.T) {
	f := newReplanFixture(t)
	f.plans.plan.ExamDate = civil(time.March, 5)
	f.sessions.overdue = []models.StudySession{
		pendingRow(1, "Math", civil(time.March, 1)),
		pendingRow(2, "Math", civil(time.March, 2)),
		pendingRow(3, "Math", civil(time.March, 3)),
	}
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	execution, err := f.svc.Execute(context.Background(), replanReq)
	require.NoError(t, err)

	resp := execution.Response
	assert.True(t, resp.Success)
	assert.Equal(t, "2 of 3 overdue sessions were rescheduled; 1 did not fit before the exam date", resp.Message)
	assert.Equal(t, 2, resp.Details.Rescheduled)
	assert.Equal(t, resp.Details.Total, resp.Details.Rescheduled+resp.Details.Failed)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReplanServiceExecutePlanNotFound(t *testing.T) {
	f := newReplanFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Execute(context.Background(), dto.ReplanRequest{PlanID: 7, UserID: 99})
	requireAppError(t, err, appErrors.ErrNotFound)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReplanServiceExecuteRollsBackWhenUpdateFails(t *testing.T) {
	f := newReplanFixture(t)
	f.sessions.overdue = []models.StudySession{pendingRow(1, "Math", civil(time.March, 1))}
	f.sessions.updateErr = errors.New("update study session 1: no rows")
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Execute(context.Background(), replanReq)
	requireAppError(t, err, appErrors.ErrInternal)
	assert.Zero(t, f.plans.increments)
	assert.Empty(t, f.history.runs)
	assert.Empty(t, f.cache.deleted)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReplanServiceExecuteTimesOut(t *testing.T) {
	f := newReplanFixture(t)
	f.svc.cfg.RunTimeout = 20 * time.Millisecond
	f.sessions.block = true
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Execute(context.Background(), replanReq)
	requireAppError(t, err, appErrors.ErrTimeout)
	assert.Zero(t, f.plans.increments)
	require.Eventually(t, func() bool { return f.mock.ExpectationsWereMet() == nil }, time.Second, 5*time.Millisecond)
}

func TestReplanServiceExecuteRejectsConcurrentRun(t *testing.T) {
	f := newReplanFixture(t)
	release, err := f.svc.locker.Acquire(context.Background(), 7)
	require.NoError(t, err)
	defer release()

	_, err = f.svc.Execute(context.Background(), replanReq)
	requireAppError(t, err, appErrors.ErrReplanInProgress)
	assert.Equal(t, 1.0, counterValue(t, f.metrics.lockContention))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReplanServiceExecuteValidatesRequest(t *testing.T) {
	f := newReplanFixture(t)

	_, err := f.svc.Execute(context.Background(), dto.ReplanRequest{PlanID: 0, UserID: 3})
	requireAppError(t, err, appErrors.ErrValidation)
}

func TestReplanServicePreviewPersistsNothing(t *testing.T) {
	f := newReplanFixture(t)
	f.sessions.overdue = []models.StudySession{pendingRow(1, "Math", civil(time.March, 1))}
	f.sessions.future = []models.StudySession{pendingRow(5, "Math", civil(time.March, 8))}

	preview, err := f.svc.Preview(context.Background(), replanReq)
	require.NoError(t, err)

	assert.Equal(t, 1, preview.Details.Rescheduled)
	require.Len(t, preview.Details.Distribution, 1)
	assert.Equal(t, "2024-03-05", preview.Details.Distribution[0].NewDate)
	assert.Equal(t, "preferred", preview.Details.Distribution[0].Strategy)
	assert.Equal(t, "2024-03-31", preview.PlanContext.ExamDate)
	assert.Equal(t, 27, preview.PlanContext.DaysUntilExam)
	assert.Equal(t, 60, preview.PlanContext.SessionDurationMinutes)
	assert.Equal(t, 2.0, preview.PlanContext.WeeklyHours["monday"])
	assert.False(t, preview.PlanContext.DefaultWeeklyHours)

	assert.Empty(t, f.sessions.updates)
	assert.Zero(t, f.plans.increments)
	assert.Empty(t, f.history.runs)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReplanServicePreviewFallsBackToDefaultHours(t *testing.T) {
	f := newReplanFixture(t)
	f.plans.plan.WeeklyHours = types.JSONText(`not json`)
	f.plans.plan.SessionDurationMinutes = 0

	preview, err := f.svc.Preview(context.Background(), replanReq)
	require.NoError(t, err)

	assert.True(t, preview.PlanContext.DefaultWeeklyHours)
	assert.Equal(t, 0.0, preview.PlanContext.WeeklyHours["sunday"])
	assert.Equal(t, 4.0, preview.PlanContext.WeeklyHours["monday"])
	assert.Equal(t, replan.DefaultSessionMinutes, preview.PlanContext.SessionDurationMinutes)
	assert.Equal(t, "no overdue sessions", preview.Message)
}

func TestReplanServicePreviewPlanNotFound(t *testing.T) {
	f := newReplanFixture(t)

	_, err := f.svc.Preview(context.Background(), dto.ReplanRequest{PlanID: 8, UserID: 3})
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestReplanServiceCheckOverdueIsCached(t *testing.T) {
	f := newReplanFixture(t)
	for i := 1; i <= 7; i++ {
		f.sessions.overdue = append(f.sessions.overdue, pendingRow(int64(i), "Math", civil(time.February, 20+i)))
	}

	check, err := f.svc.CheckOverdue(context.Background(), replanReq)
	require.NoError(t, err)
	assert.Equal(t, 7, check.Count)
	assert.True(t, check.NeedsReplanning)
	require.Len(t, check.Sessions, overdueSampleSize)
	assert.Equal(t, "2024-02-21", check.Sessions[0].SessionDate)
	assert.Equal(t, "first_pass", check.Sessions[0].SessionType)

	again, err := f.svc.CheckOverdue(context.Background(), replanReq)
	require.NoError(t, err)
	assert.Equal(t, check, again)
	assert.Equal(t, 1, f.sessions.overdueCalls)
}

func TestReplanServiceCheckOverdueWithoutSessions(t *testing.T) {
	f := newReplanFixture(t)

	check, err := f.svc.CheckOverdue(context.Background(), replanReq)
	require.NoError(t, err)
	assert.Zero(t, check.Count)
	assert.False(t, check.NeedsReplanning)
	assert.Empty(t, check.Sessions)
}

func TestReplanServiceListRuns(t *testing.T) {
	f := newReplanFixture(t)
	f.runs.runs = []models.ReplanRun{{ID: "b", PlanID: 7}, {ID: "a", PlanID: 7}}
	f.runs.total = 2

	runs, pagination, err := f.svc.ListRuns(context.Background(), dto.ReplanRunListRequest{PlanID: 7, UserID: 3})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 2}, pagination)

	_, _, err = f.svc.ListRuns(context.Background(), dto.ReplanRunListRequest{PlanID: 7, UserID: 4})
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestReplanServiceListRunsRejectsOversizedPage(t *testing.T) {
	f := newReplanFixture(t)
	f.runs.err = errors.New("offset out of range")

	_, _, err := f.svc.ListRuns(context.Background(), dto.ReplanRunListRequest{PlanID: 7, UserID: 3, Page: math.MaxInt, PageSize: 100})
	requireAppError(t, err, appErrors.ErrValidation)

	_, _, err = f.svc.ListRuns(context.Background(), dto.ReplanRunListRequest{PlanID: 7, UserID: 3, Page: models.MaxRunPage + 1})
	requireAppError(t, err, appErrors.ErrValidation)
}

const exportRunID = "6f1c2b8e-0a57-4d5f-9a43-3c1f0f1e2a10"

func storedRun() *models.ReplanRun {
	return &models.ReplanRun{
		ID:           exportRunID,
		PlanID:       7,
		UserID:       3,
		Rescheduled:  1,
		Total:        1,
		Outcome:      "complete",
		Strategy:     replan.AlgorithmName,
		Distribution: types.JSONText(`[{"session_id":1,"subject":"Math","old_date":"2024-03-01","new_date":"2024-03-05","strategy":"preferred"}]`),
		ExecutedAt:   replanNow,
	}
}

func TestReplanServiceExportRunCSV(t *testing.T) {
	f := newReplanFixture(t)
	f.runs.run = storedRun()

	file, err := f.svc.ExportRun(context.Background(), dto.ReplanRunExportRequest{PlanID: 7, UserID: 3, RunID: exportRunID})
	require.NoError(t, err)

	assert.Equal(t, "replan-run-"+exportRunID+".csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
	assert.Equal(t, "session_id,subject,old_date,new_date,strategy\n1,Math,2024-03-01,2024-03-05,preferred\n", string(file.Body))
}

func TestReplanServiceExportRunCalendar(t *testing.T) {
	f := newReplanFixture(t)
	f.runs.run = storedRun()

	file, err := f.svc.ExportRun(context.Background(), dto.ReplanRunExportRequest{PlanID: 7, UserID: 3, RunID: exportRunID, Format: "ICS"})
	require.NoError(t, err)

	assert.Equal(t, "text/calendar; charset=utf-8", file.ContentType)
	assert.Contains(t, string(file.Body), "BEGIN:VCALENDAR")
	assert.Contains(t, string(file.Body), "SUMMARY:Study: Math")
}

func TestReplanServiceExportRunErrors(t *testing.T) {
	f := newReplanFixture(t)
	f.runs.run = storedRun()
	ctx := context.Background()

	_, err := f.svc.ExportRun(ctx, dto.ReplanRunExportRequest{PlanID: 7, UserID: 3, RunID: exportRunID, Format: "docx"})
	requireAppError(t, err, appErrors.ErrUnsupported)

	_, err = f.svc.ExportRun(ctx, dto.ReplanRunExportRequest{PlanID: 7, UserID: 3, RunID: "5b0b3c52-7f0e-4a52-9d2c-1d1c9a3f4e11"})
	requireAppError(t, err, appErrors.ErrNotFound)

	_, err = f.svc.ExportRun(ctx, dto.ReplanRunExportRequest{PlanID: 7, UserID: 3, RunID: "not-a-uuid"})
	requireAppError(t, err, appErrors.ErrValidation)

	f.runs.run.Distribution = types.JSONText(`[]`)
	_, err = f.svc.ExportRun(ctx, dto.ReplanRunExportRequest{PlanID: 7, UserID: 3, RunID: exportRunID, Format: "ics"})
	requireAppError(t, err, appErrors.ErrValidation)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/study-replan-api/internal/dto"
	"github.com/noah-isme/study-replan-api/internal/models"
	"github.com/noah-isme/study-replan-api/internal/replan"
	appErrors "github.com/noah-isme/study-replan-api/pkg/errors"
)

const overdueSampleSize = 5

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type replanPlanRepository interface {
	FindByIDAndUser(ctx context.Context, id, userID int64) (*models.StudyPlan, error)
	FindByIDAndUserForUpdate(ctx context.Context, exec sqlx.ExtContext, id, userID int64) (*models.StudyPlan, error)
	IncrementPostponement(ctx context.Context, exec sqlx.ExtContext, id int64) error
}

type replanSessionRepository interface {
	ListOverdue(ctx context.Context, exec sqlx.ExtContext, planID int64, today time.Time) ([]models.StudySession, error)
	ListFuture(ctx context.Context, exec sqlx.ExtContext, planID int64, today time.Time) ([]models.StudySession, error)
	UpdateDates(ctx context.Context, exec sqlx.ExtContext, planID int64, updates []models.SessionDateUpdate) error
}

type replanRunReader interface {
	ListByPlan(ctx context.Context, filter models.ReplanRunFilter) ([]models.ReplanRun, int, error)
	FindByID(ctx context.Context, planID int64, id string) (*models.ReplanRun, error)
}

type runRecorder interface {
	Record(run models.ReplanRun)
}

// ReplanConfig tunes replanning runs.
type ReplanConfig struct {
	Location        *time.Location
	Policy          replan.Policy
	RunTimeout      time.Duration
	OverdueCacheTTL time.Duration
}

// ReplanService moves a plan's overdue sessions onto future dates and keeps
// the record of each run.
type ReplanService struct {
	plans     replanPlanRepository
	sessions  replanSessionRepository
	runs      replanRunReader
	tx        txProvider
	locker    PlanLocker
	history   runRecorder
	cache     *CacheService
	metrics   *MetricsService
	exporter  *runExporter
	engine    *replan.Engine
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReplanConfig
	now       func() time.Time
}

// NewReplanService wires replanning dependencies.
func NewReplanService(
	plans replanPlanRepository,
	sessions replanSessionRepository,
	runs replanRunReader,
	tx txProvider,
	locker PlanLocker,
	history runRecorder,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ReplanConfig,
) *ReplanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewLocalPlanLocker()
	}
	if history == nil {
		history = (*RunHistoryService)(nil)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Second
	}
	if cfg.OverdueCacheTTL <= 0 {
		cfg.OverdueCacheTTL = time.Minute
	}
	return &ReplanService{
		plans:     plans,
		sessions:  sessions,
		runs:      runs,
		tx:        tx,
		locker:    locker,
		history:   history,
		cache:     cache,
		metrics:   metrics,
		exporter:  newRunExporter(),
		engine:    replan.NewEngine(cfg.Policy),
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

type appliedRun struct {
	plan   *models.StudyPlan
	today  time.Time
	result replan.Result
}

// Execute runs the engine against the plan's overdue sessions and persists
// the new dates in one transaction.
func (s *ReplanService) Execute(ctx context.Context, req dto.ReplanRequest) (*dto.ReplanExecution, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid replan request")
	}
	started := s.now()

	release, err := s.locker.Acquire(ctx, req.PlanID)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrReplanInProgress.Code {
			s.metrics.RecordLockContention()
		}
		return nil, err
	}
	defer release()

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	applied, err := s.apply(runCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, "replanning run timed out")
		}
		if appErrors.FromError(err).Status >= http.StatusInternalServerError {
			s.logger.Error("replanning run failed", zap.Int64("plan_id", req.PlanID), zap.Int64("user_id", req.UserID), zap.Error(err))
		}
		return nil, err
	}

	result := applied.result
	elapsed := s.now().Sub(started)
	s.metrics.ObserveReplanRun(string(result.Outcome()), result.Rescheduled, result.Failed, elapsed)

	execution := &dto.ReplanExecution{
		Response:        replanResponse(result),
		ExamDate:        formatDate(applied.plan.ExamDate),
		ExecutionTimeMs: elapsed.Milliseconds(),
		Algorithm:       replan.AlgorithmName,
	}
	if result.Total == 0 {
		s.logger.Info("no overdue sessions to replan", zap.Int64("plan_id", req.PlanID), zap.Int64("user_id", req.UserID))
		return execution, nil
	}

	// The run is committed; the caller going away must not skip this.
	bg := context.WithoutCancel(ctx)
	_ = s.cache.Invalidate(bg, overdueCacheKey(req.PlanID, req.UserID, applied.today))

	run := s.runRecord(req, result, elapsed)
	execution.RunID = run.ID
	s.history.Record(run)

	s.logger.Info("replanning run completed",
		zap.String("run_id", run.ID),
		zap.Int64("plan_id", req.PlanID),
		zap.Int64("user_id", req.UserID),
		zap.Int("rescheduled", result.Rescheduled),
		zap.Int("failed", result.Failed),
		zap.Int("total", result.Total),
		zap.Duration("duration", elapsed),
	)
	return execution, nil
}

func (s *ReplanService) apply(ctx context.Context, req dto.ReplanRequest) (applied appliedRun, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return applied, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin replan transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	plan, err := s.plans.FindByIDAndUserForUpdate(ctx, tx, req.PlanID, req.UserID)
	if err != nil {
		err = planLookupError(err)
		return applied, err
	}
	applied.plan = plan
	applied.today = s.today()

	overdue, future, err := s.loadSessions(ctx, tx, plan.ID, applied.today)
	if err != nil {
		return applied, err
	}
	if len(overdue) == 0 {
		_ = tx.Rollback()
		return applied, nil
	}

	applied.result = s.engine.Reschedule(s.enginePlan(plan), toEngineSessions(overdue), toEngineSessions(future), applied.today)

	if len(applied.result.Distribution) > 0 {
		updates := make([]models.SessionDateUpdate, 0, len(applied.result.Distribution))
		for _, p := range applied.result.Distribution {
			updates = append(updates, models.SessionDateUpdate{SessionID: p.SessionID, NewDate: p.NewDate})
		}
		if err = s.sessions.UpdateDates(ctx, tx, plan.ID, updates); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist rescheduled sessions")
			return applied, err
		}
	}

	if err = s.plans.IncrementPostponement(ctx, tx, plan.ID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update plan postponement count")
		return applied, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit replan transaction")
		return applied, err
	}
	return applied, nil
}

func (s *ReplanService) loadSessions(ctx context.Context, exec sqlx.ExtContext, planID int64, today time.Time) (overdue, future []models.StudySession, err error) {
	overdue, err = s.sessions.ListOverdue(ctx, exec, planID, today)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overdue sessions")
	}
	future, err = s.sessions.ListFuture(ctx, exec, planID, today)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load future sessions")
	}
	return overdue, future, nil
}

// Preview computes what Execute would do right now without writing anything.
func (s *ReplanService) Preview(ctx context.Context, req dto.ReplanRequest) (*dto.ReplanPreview, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid replan request")
	}
	today := s.today()

	var (
		plan            *models.StudyPlan
		overdue, future []models.StudySession
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := s.plans.FindByIDAndUser(gctx, req.PlanID, req.UserID)
		if err != nil {
			return planLookupError(err)
		}
		plan = found
		return nil
	})
	g.Go(func() error {
		rows, err := s.sessions.ListOverdue(gctx, nil, req.PlanID, today)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overdue sessions")
		}
		overdue = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.sessions.ListFuture(gctx, nil, req.PlanID, today)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load future sessions")
		}
		future = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	enginePlan := s.enginePlan(plan)
	result := s.engine.Reschedule(enginePlan, toEngineSessions(overdue), toEngineSessions(future), today)
	_, configured := replan.ParseWeeklyHours(plan.WeeklyHours)

	return &dto.ReplanPreview{
		Message: replanMessage(result),
		Details: replanDetails(result),
		PlanContext: dto.PlanContext{
			ExamDate:               formatDate(plan.ExamDate),
			DaysUntilExam:          daysBetween(today, replan.Date(plan.ExamDate)),
			SessionDurationMinutes: s.sessionMinutes(plan),
			WeeklyHours:            weeklyHoursByName(enginePlan.WeeklyHours),
			DefaultWeeklyHours:     !configured,
		},
		Algorithm: replan.AlgorithmName,
	}, nil
}

// CheckOverdue reports how many sessions are overdue, with a short sample.
func (s *ReplanService) CheckOverdue(ctx context.Context, req dto.ReplanRequest) (*dto.OverdueCheck, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid overdue check request")
	}
	today := s.today()
	key := overdueCacheKey(req.PlanID, req.UserID, today)

	var cached dto.OverdueCheck
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	if _, err := s.plans.FindByIDAndUser(ctx, req.PlanID, req.UserID); err != nil {
		return nil, planLookupError(err)
	}
	rows, err := s.sessions.ListOverdue(ctx, nil, req.PlanID, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overdue sessions")
	}

	check := &dto.OverdueCheck{
		Count:           len(rows),
		NeedsReplanning: len(rows) > 0,
		Sessions:        make([]dto.OverdueSession, 0, min(len(rows), overdueSampleSize)),
	}
	for _, row := range rows {
		if len(check.Sessions) == overdueSampleSize {
			break
		}
		check.Sessions = append(check.Sessions, dto.OverdueSession{
			ID:               row.ID,
			SubjectName:      row.SubjectName,
			TopicDescription: row.TopicDescription,
			SessionDate:      formatDate(row.SessionDate),
			SessionType:      string(replan.NormalizeSessionType(row.SessionType)),
		})
	}

	_ = s.cache.Set(ctx, key, check, s.cfg.OverdueCacheTTL)
	return check, nil
}

func (s *ReplanService) today() time.Time {
	return replan.Today(s.now(), s.cfg.Location)
}

func (s *ReplanService) enginePlan(plan *models.StudyPlan) replan.Plan {
	hours, ok := replan.ParseWeeklyHours(plan.WeeklyHours)
	if !ok {
		s.logger.Warn("study plan weekly hours missing or invalid, using defaults", zap.Int64("plan_id", plan.ID))
	}
	return replan.Plan{
		ID:                     plan.ID,
		UserID:                 plan.UserID,
		ExamDate:               replan.Date(plan.ExamDate),
		SessionDurationMinutes: plan.SessionDurationMinutes,
		WeeklyHours:            hours,
	}
}

func (s *ReplanService) sessionMinutes(plan *models.StudyPlan) int {
	if plan.SessionDurationMinutes > 0 {
		return plan.SessionDurationMinutes
	}
	return s.engine.Policy().DefaultSessionMinutes
}

func (s *ReplanService) runRecord(req dto.ReplanRequest, result replan.Result, elapsed time.Duration) models.ReplanRun {
	placements := make([]models.RunPlacement, 0, len(result.Distribution))
	for _, p := range result.Distribution {
		placements = append(placements, models.RunPlacement{
			SessionID: p.SessionID,
			Subject:   p.Subject,
			OldDate:   formatDate(p.OldDate),
			NewDate:   formatDate(p.NewDate),
			Strategy:  string(p.Strategy),
		})
	}
	distribution, err := json.Marshal(placements)
	if err != nil {
		s.logger.Warn("failed to encode run distribution", zap.Int64("plan_id", req.PlanID), zap.Error(err))
		distribution = []byte("[]")
	}

	return models.ReplanRun{
		ID:           uuid.NewString(),
		PlanID:       req.PlanID,
		UserID:       req.UserID,
		Rescheduled:  result.Rescheduled,
		Failed:       result.Failed,
		Total:        result.Total,
		Outcome:      string(result.Outcome()),
		Strategy:     replan.AlgorithmName,
		Distribution: types.JSONText(distribution),
		ExecutedAt:   s.now().UTC(),
		DurationMS:   elapsed.Milliseconds(),
	}
}

func planLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "study plan not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load study plan")
}

func overdueCacheKey(planID, userID int64, today time.Time) string {
	return fmt.Sprintf("replan:overdue:%d:%d:%s", planID, userID, formatDate(today))
}

func toEngineSessions(rows []models.StudySession) []replan.Session {
	sessions := make([]replan.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, replan.Session{
			ID:               row.ID,
			PlanID:           row.StudyPlanID,
			TopicID:          row.TopicID,
			SubjectName:      row.SubjectName,
			TopicDescription: row.TopicDescription,
			Type:             replan.NormalizeSessionType(row.SessionType),
			Status:           replan.NormalizeStatus(row.Status),
			Date:             replan.Date(row.SessionDate),
			QuestionsSolved:  row.QuestionsSolved,
			SecondsStudied:   row.TimeStudiedSeconds,
			PostponeCount:    row.PostponeCount,
		})
	}
	return sessions
}

func replanResponse(result replan.Result) dto.ReplanResponse {
	return dto.ReplanResponse{
		Success: result.Success(),
		Message: replanMessage(result),
		Details: replanDetails(result),
	}
}

func replanMessage(result replan.Result) string {
	switch result.Outcome() {
	case replan.OutcomeNothingToDo:
		return "no overdue sessions"
	case replan.OutcomeComplete:
		return fmt.Sprintf("all %d overdue sessions were rescheduled", result.Total)
	case replan.OutcomePartial:
		return fmt.Sprintf("%d of %d overdue sessions were rescheduled; %d did not fit before the exam date", result.Rescheduled, result.Total, result.Failed)
	default:
		return fmt.Sprintf("none of the %d overdue sessions could be rescheduled; extend the exam date or increase your daily study hours", result.Total)
	}
}

func replanDetails(result replan.Result) dto.ReplanDetails {
	details := dto.ReplanDetails{
		Rescheduled: result.Rescheduled,
		Failed:      result.Failed,
		Total:       result.Total,
	}
	if result.Total == 0 {
		return details
	}
	details.Strategy = replan.AlgorithmName
	details.Distribution = make([]dto.SessionPlacement, 0, len(result.Distribution))
	for _, p := range result.Distribution {
		details.Distribution = append(details.Distribution, dto.SessionPlacement{
			SessionID: p.SessionID,
			Subject:   p.Subject,
			OldDate:   formatDate(p.OldDate),
			NewDate:   formatDate(p.NewDate),
			Strategy:  string(p.Strategy),
		})
	}
	for _, f := range result.Failures {
		details.Failures = append(details.Failures, dto.SessionFailure{SessionID: f.SessionID, Subject: f.Subject, Reason: string(f.Reason)})
	}
	for _, t := range result.Subjects {
		details.Subjects = append(details.Subjects, dto.SubjectReplanTally{Subject: t.Subject, Rescheduled: t.Rescheduled, Failed: t.Failed})
	}
	return details
}

func weeklyHoursByName(hours replan.WeeklyHours) map[string]float64 {
	out := make(map[string]float64, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		out[strings.ToLower(d.String())] = hours[d]
	}
	return out
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

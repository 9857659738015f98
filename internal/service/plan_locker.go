package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/study-replan-api/pkg/errors"
)

// PlanLocker serialises replanning runs per plan.
type PlanLocker interface {
	Acquire(ctx context.Context, planID int64) (release func(), err error)
}

type lockStore interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) (bool, error)
}

func errPlanLocked() error {
	return appErrors.Clone(appErrors.ErrReplanInProgress, "a replanning run is already in progress for this plan")
}

// RedisPlanLocker holds a short lived Redis key per plan. When Redis cannot be
// reached it degrades to an in-process lock so a single instance stays safe.
type RedisPlanLocker struct {
	store    lockStore
	ttl      time.Duration
	fallback *LocalPlanLocker
	logger   *zap.Logger
}

// NewRedisPlanLocker constructs a Redis backed locker.
func NewRedisPlanLocker(store lockStore, ttl time.Duration, logger *zap.Logger) *RedisPlanLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPlanLocker{store: store, ttl: ttl, fallback: NewLocalPlanLocker(), logger: logger}
}

func planLockKey(planID int64) string {
	return fmt.Sprintf("replan:lock:plan:%d", planID)
}

// Acquire takes the plan lock or fails with REPLAN_IN_PROGRESS.
func (l *RedisPlanLocker) Acquire(ctx context.Context, planID int64) (func(), error) {
	key := planLockKey(planID)
	token := uuid.NewString()

	ok, err := l.store.Acquire(ctx, key, token, l.ttl)
	if err != nil {
		l.logger.Warn("redis plan lock unavailable, using local lock", zap.Int64("plan_id", planID), zap.Error(err))
		return l.fallback.Acquire(ctx, planID)
	}
	if !ok {
		return nil, errPlanLocked()
	}

	return func() {
		// The caller's context may already be done when the run ends.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if _, err := l.store.Release(releaseCtx, key, token); err != nil {
			l.logger.Warn("failed to release plan lock", zap.Int64("plan_id", planID), zap.Error(err))
		}
	}, nil
}

// LocalPlanLocker is an in-process per-plan lock.
type LocalPlanLocker struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

// NewLocalPlanLocker constructs an empty locker.
func NewLocalPlanLocker() *LocalPlanLocker {
	return &LocalPlanLocker{held: make(map[int64]struct{})}
}

// Acquire never blocks: a held plan fails immediately.
func (l *LocalPlanLocker) Acquire(_ context.Context, planID int64) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[planID]; busy {
		return nil, errPlanLocked()
	}
	l.held[planID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, planID)
			l.mu.Unlock()
		})
	}, nil
}

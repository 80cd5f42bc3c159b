package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reclaim/internal/apperr"
	"reclaim/internal/models"
	"reclaim/internal/worker"
)

// maxCatchUpDays bounds how many unevaluated closed days one evaluation replays.
const maxCatchUpDays = 7

type StreakOutcome string

const (
	StreakIncremented StreakOutcome = "incremented"
	StreakHeld        StreakOutcome = "held"
	StreakReset       StreakOutcome = "reset"
	StreakSkipped     StreakOutcome = "skipped"
)

// StreakResult is the outcome of evaluating one user's streak for the most
// recently closed local day.
type StreakResult struct {
	UserID  string
	Date    string
	State   models.StreakState
	Outcome StreakOutcome
	Applied bool
}

// AtRisk reports whether the streak survived only through the grace day.
func (r StreakResult) AtRisk() bool {
	return r.Applied && r.Outcome == StreakHeld && r.State.FocusStreakDays > 0
}

// Step applies one closed day to s. A day at or before the last evaluated day
// is skipped. A day without a qualifying session holds the streak while the
// previous day was maintained and resets it otherwise.
func Step(s models.StreakState, date string, maintained bool) (models.StreakState, StreakOutcome, error) {
	if s.StreakEvaluatedDate != "" && s.StreakEvaluatedDate >= date {
		return s, StreakSkipped, nil
	}
	graceDay, err := addDays(date, -1)
	if err != nil {
		return s, StreakSkipped, err
	}

	next := s
	next.StreakEvaluatedDate = date
	if maintained {
		next.FocusStreakDays++
		next.LongestStreakDays = max(next.LongestStreakDays, next.FocusStreakDays)
		next.LastMaintainedDate = date
		return next, StreakIncremented, nil
	}
	if next.FocusStreakDays > 0 && next.LastMaintainedDate != "" && next.LastMaintainedDate >= graceDay {
		return next, StreakHeld, nil
	}
	next.FocusStreakDays = 0
	return next, StreakReset, nil
}

// StreakEngine evaluates and stores streaks from the aggregated daily stats.
type StreakEngine struct {
	accounts   AccountRepository
	stats      StatsRepository
	aggregator *Aggregator
	now        func() time.Time
}

// NewStreakEngine evaluates from the stored daily stats. A closed day without a
// record is aggregated from the raw logs first, so the result does not depend
// on whether the daily reset has already run.
func NewStreakEngine(accounts AccountRepository, stats StatsRepository, aggregator *Aggregator) *StreakEngine {
	return &StreakEngine{accounts: accounts, stats: stats, aggregator: aggregator, now: time.Now}
}

// EvaluateStreak applies every closed local day since the last evaluation, at
// most maxCatchUpDays of them, and stores the result. A concurrent evaluation that stored the
// same day first turns this one into a skip.
func (e *StreakEngine) EvaluateStreak(ctx context.Context, userID string) (StreakResult, error) {
	acct, err := e.accounts.Get(ctx, userID)
	if err != nil {
		return StreakResult{}, err
	}
	now := e.now()
	closed := yesterday(now, acct.Location())
	before := acct.Streak()
	res := StreakResult{UserID: userID, Date: closed, State: before, Outcome: StreakSkipped}

	days, err := pendingDays(before.StreakEvaluatedDate, closed)
	if err != nil {
		return res, err
	}
	if len(days) == 0 {
		return res, nil
	}

	state := before
	var outcome StreakOutcome
	for _, day := range days {
		maintained, err := e.maintained(ctx, *acct, day)
		if err != nil {
			return res, err
		}
		if state, outcome, err = Step(state, day, maintained); err != nil {
			return res, err
		}
	}

	applied, err := e.accounts.SaveStreak(ctx, userID, state, now)
	if err != nil {
		return res, fmt.Errorf("save streak: %w", err)
	}
	if !applied {
		return res, nil
	}
	res.State = state
	res.Outcome = outcome
	res.Applied = true
	return res, nil
}

func (e *StreakEngine) maintained(ctx context.Context, acct models.UserAccount, date string) (bool, error) {
	stat, err := e.stats.Get(ctx, acct.ID, date)
	if err == nil {
		return stat.HadFocusSession, nil
	}
	if !apperr.IsNotFound(err) {
		return false, fmt.Errorf("load daily stats %s: %w", date, err)
	}
	if e.aggregator == nil {
		return false, nil
	}
	built, err := e.aggregator.Aggregate(ctx, acct, date)
	if err != nil {
		return false, fmt.Errorf("aggregate %s: %w", date, err)
	}
	return built.HadFocusSession, nil
}

// pendingDays lists the closed days after evaluated up to and including
// closed. A user never evaluated starts at closed.
func pendingDays(evaluated, closed string) ([]string, error) {
	if evaluated != "" && evaluated >= closed {
		return nil, nil
	}
	start, err := addDays(closed, -(maxCatchUpDays - 1))
	if err != nil {
		return nil, err
	}
	if evaluated == "" {
		start = closed
	} else if next, err := addDays(evaluated, 1); err != nil {
		return nil, err
	} else if next > start {
		start = next
	}

	var days []string
	for day := start; day <= closed; {
		days = append(days, day)
		if day, err = addDays(day, 1); err != nil {
			return nil, err
		}
	}
	return days, nil
}

// StreakSummary is the response of the calculate-streaks job.
type StreakSummary struct {
	Success        bool     `json:"success"`
	UsersProcessed int      `json:"usersProcessed"`
	StreaksUpdated int      `json:"streaksUpdated"`
	Errors         []string `json:"errors,omitempty"`
}

// StreakJob evaluates streaks for every recently active user, without
// aggregation or counter resets.
type StreakJob struct {
	accounts AccountRepository
	engine   *StreakEngine
	pool     *worker.Pool
	window   time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewStreakJob(accounts AccountRepository, engine *StreakEngine, pool *worker.Pool, window time.Duration, logger *zap.Logger) *StreakJob {
	return &StreakJob{accounts: accounts, engine: engine, pool: pool, window: window, now: time.Now, logger: logger}
}

func (j *StreakJob) Run(ctx context.Context) (StreakSummary, error) {
	users, err := j.accounts.ListActiveSince(ctx, j.now().Add(-j.window))
	if err != nil {
		return StreakSummary{}, fmt.Errorf("list active users: %w", err)
	}

	results := worker.Run(ctx, j.pool, accountIDs(users), j.engine.EvaluateStreak)

	summary := StreakSummary{Success: true, UsersProcessed: len(users)}
	for _, r := range results {
		if r.Err != nil {
			j.logger.Warn("streak evaluation failed",
				zap.String("user_id", r.Key), zap.String("step", "streak"), zap.Error(r.Err))
			summary.Errors = append(summary.Errors, userError(r.Key, r.Err))
			continue
		}
		if r.Value.Applied {
			summary.StreaksUpdated++
		}
	}
	return summary, nil
}

func accountIDs(users []models.UserAccount) []string {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

// userError formats a per-user failure the way job summaries report it.
func userError(userID string, err error) string {
	return fmt.Sprintf("User %s: %s", userID, err.Error())
}

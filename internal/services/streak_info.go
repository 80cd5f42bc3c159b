package services

import (
	"context"
	"time"
)

const streakHistoryDays = 30

type StreakDay struct {
	Date       string `json:"date"`
	HadSession bool   `json:"hadSession"`
}

type StreakInfo struct {
	CurrentStreak int         `json:"currentStreak"`
	LongestStreak int         `json:"longestStreak"`
	StreakHistory []StreakDay `json:"streakHistory"`
}

// StreakReader serves a user's streak counters and recent maintained days.
type StreakReader struct {
	accounts AccountRepository
	stats    StatsRepository
	now      func() time.Time
}

func NewStreakReader(accounts AccountRepository, stats StatsRepository) *StreakReader {
	return &StreakReader{accounts: accounts, stats: stats, now: time.Now}
}

// StreakInfo returns the counters plus the last 30 local days of stats, newest
// first.
func (r *StreakReader) StreakInfo(ctx context.Context, userID string) (StreakInfo, error) {
	acct, err := r.accounts.Get(ctx, userID)
	if err != nil {
		return StreakInfo{}, err
	}
	stats, err := r.stats.Recent(ctx, userID, streakHistoryDays+1)
	if err != nil {
		return StreakInfo{}, err
	}
	since, err := addDays(localDate(r.now(), acct.Location()), -streakHistoryDays)
	if err != nil {
		return StreakInfo{}, err
	}

	info := StreakInfo{
		CurrentStreak: acct.FocusStreakDays,
		LongestStreak: acct.LongestStreakDays,
		StreakHistory: make([]StreakDay, 0, len(stats)),
	}
	for _, s := range stats {
		if s.StatsDate < since {
			continue
		}
		info.StreakHistory = append(info.StreakHistory, StreakDay{Date: s.StatsDate, HadSession: s.HadFocusSession})
	}
	return info, nil
}

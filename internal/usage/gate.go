package usage

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/datachat/backend/internal/storage/models"
	"github.com/datachat/backend/pkg/logger"
)

// Per-tier daily action limits. A negative limit means unlimited.
var tierLimits = map[string]int{
	"free":       10,
	"pro":        1000,
	"enterprise": -1,
}

const window = 24 * time.Hour

// Store is the persistence surface the gate counts and records through.
type Store interface {
	CountUsageSince(userID, action string, cutoff time.Time) (int, error)
	InsertUsageRecord(record *models.UsageRecord) error
}

// Decision reports the outcome of one gate check. Used counts actions in
// the trailing window before this one.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Used    int    `json:"used"`
	Limit   int    `json:"limit"`
	Tier    string `json:"tier"`
}

type Gate struct {
	store Store
}

func NewGate(store Store) *Gate {
	return &Gate{store: store}
}

// LimitFor returns the daily limit for a tier. Unknown tiers fall back to
// the free limit.
func LimitFor(tier string) int {
	if limit, ok := tierLimits[tier]; ok {
		return limit
	}
	return tierLimits["free"]
}

// RecordAndCheck decides whether the user may perform action under their
// tier's daily limit and, if allowed, records it. A denied action is never
// recorded, so denials do not consume quota.
func (g *Gate) RecordAndCheck(userID, tier, action string) (*Decision, error) {
	limit := LimitFor(tier)

	used, err := g.store.CountUsageSince(userID, action, time.Now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to count usage: %w", err)
	}

	decision := &Decision{
		Allowed: limit < 0 || used < limit,
		Used:    used,
		Limit:   limit,
		Tier:    tier,
	}

	if !decision.Allowed {
		logger.Warn("Usage limit reached",
			zap.String("user_id", userID),
			zap.String("action", action),
			zap.String("tier", tier),
			zap.Int("used", used),
			zap.Int("limit", limit),
		)
		return decision, nil
	}

	record := &models.UsageRecord{
		UserID:    userID,
		Action:    action,
		Timestamp: time.Now(),
	}
	if err := g.store.InsertUsageRecord(record); err != nil {
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}

	return decision, nil
}

package config

import (
	"time"

	"github.com/wapuda/virex/internal/domain"
)

// Rate-limit and abuse knobs. The bot behaves the same everywhere it is
// deployed, so these are code rather than env.
const (
	AbuseThreshold    = 10               // denials inside the window before a soft block
	AbuseWindow       = 60 * time.Second // window the denial counter lives in
	SoftBlockDuration = 1800 * time.Second

	ButtonCooldown  = 2 * time.Second  // taps faster than this are dropped silently
	DuplicateWindow = 60 * time.Second // same file re-sent inside this is rejected

	MaxRetries        = 3
	RetryBackoff      = 2 * time.Second // doubled per attempt
	ShortIDTTL        = 3600 * time.Second
	PendingSweep      = 10 * time.Minute
	TempFileMaxAge    = 1 * time.Hour
	ExpiryScanEvery   = 24 * time.Hour
	ExpiryNotifyAhead = 3 // days before plan expiry we warn the user

	ReferralBonusVideos = 3
	StreakBonusAfter    = 7 // consecutive days
	StreakBonusVideos   = 1
	TrialDays           = 1

	MaxFavorites  = 5
	HistoryKeep   = 20
	OperationKeep = 20
)

// Unlimited is the monthly cap for plans that have no cap.
const Unlimited = 999999

var planLimits = map[domain.Plan]domain.PlanLimits{
	domain.PlanFree: {
		VideosPerMonth:  3,
		CooldownSeconds: 60,
		MaxFileSizeMB:   50,
		Priority:        0,
		CanDisableText:  false,
		Qualities:       []domain.Quality{domain.QualityLow, domain.QualityMedium},
	},
	domain.PlanVIP: {
		VideosPerMonth:  30,
		CooldownSeconds: 10,
		MaxFileSizeMB:   100,
		Priority:        1,
		CanDisableText:  true,
		Qualities:       []domain.Quality{domain.QualityLow, domain.QualityMedium, domain.QualityMax},
	},
	domain.PlanPremium: {
		VideosPerMonth:  Unlimited,
		CooldownSeconds: 0,
		MaxFileSizeMB:   100,
		Priority:        2,
		CanDisableText:  true,
		Qualities:       []domain.Quality{domain.QualityLow, domain.QualityMedium, domain.QualityMax},
	},
}

// LimitsFor returns the limits for plan, falling back to free for anything
// unrecognized so a corrupt snapshot never grants extra quota.
func LimitsFor(plan domain.Plan) domain.PlanLimits {
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[domain.PlanFree]
}

package domain

import "time"

// DateFormat is the calendar-date form used for quota windows and streaks.
// Window arithmetic is done on whole days, never on clock time.
const DateFormat = "2006-01-02"

type Plan string

const (
	PlanFree    Plan = "free"
	PlanVIP     Plan = "vip"
	PlanPremium Plan = "premium"
)

func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanVIP || p == PlanPremium
}

type Mode string

const (
	ModeTikTok  Mode = "tiktok"
	ModeYouTube Mode = "youtube"
)

type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityMax    Quality = "max"
)

// PlanLimits are the static per-plan caps and capabilities.
type PlanLimits struct {
	VideosPerMonth  int
	CooldownSeconds int
	MaxFileSizeMB   int64
	Priority        int // higher served first
	CanDisableText  bool
	Qualities       []Quality
}

func (l PlanLimits) AllowsQuality(q Quality) bool {
	for _, a := range l.Qualities {
		if a == q {
			return true
		}
	}
	return false
}

// Favorite is a named snapshot of processing settings.
type Favorite struct {
	Mode        Mode    `json:"mode"`
	Quality     Quality `json:"quality"`
	TextOverlay bool    `json:"text_overlay"`
}

// HistoryEntry is one finished job in the per-user history ring.
type HistoryEntry struct {
	Time   time.Time `json:"time"`
	Mode   Mode      `json:"mode"`
	Source string    `json:"source"` // "file" / "url"
}

// OpLog is one entry in the per-user operation-log ring.
type OpLog struct {
	Time    time.Time `json:"time"`
	Op      string    `json:"op"`
	Details string    `json:"details,omitempty"`
}

// UserRecord is the full per-user state. Created lazily on first access;
// every field has a meaningful zero/default so snapshots from older builds
// load without migration.
type UserRecord struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Language  string    `json:"language"`
	FirstSeen time.Time `json:"first_seen,omitempty"`

	Plan        Plan      `json:"plan"`
	PlanExpires time.Time `json:"plan_expires,omitempty"` // zero = no expiry

	// Rolling quota windows; reset lazily on read.
	DailyVideos   int    `json:"daily_videos"`
	DailyStart    string `json:"daily_start,omitempty"`
	WeeklyVideos  int    `json:"weekly_videos"`
	WeeklyStart   string `json:"weekly_start,omitempty"`
	MonthlyVideos int    `json:"monthly_videos"`
	MonthlyStart  string `json:"monthly_start,omitempty"`

	TotalVideos     int       `json:"total_videos"`
	TotalDownloads  int       `json:"total_downloads"`
	LastProcessTime time.Time `json:"last_process_time,omitempty"`

	AbuseHits        int       `json:"abuse_hits"`
	AbuseWindowStart time.Time `json:"abuse_window_start,omitempty"`
	SoftBlockUntil   time.Time `json:"soft_block_until,omitempty"`
	LastRequest      time.Time `json:"last_request,omitempty"`
	LastButton       time.Time `json:"last_button,omitempty"`
	LastFileHash     string    `json:"last_file_hash,omitempty"`
	LastFileTime     time.Time `json:"last_file_time,omitempty"`

	Mode        Mode    `json:"mode"`
	Quality     Quality `json:"quality"`
	TextOverlay bool    `json:"text_overlay"`
	NightMode   bool    `json:"night_mode"`

	Processing       bool   `json:"-"`
	CurrentFileID    string `json:"-"`
	ExpiryNotified   bool   `json:"expiry_notified"`
	ExpiryWarnedDate string `json:"expiry_warned_date,omitempty"`

	ReferrerID    int64 `json:"referrer_id,omitempty"` // set once, never reassigned
	ReferralCount int   `json:"referral_count"`
	ReferralBonus int   `json:"referral_bonus"`

	Banned    bool   `json:"banned"`
	BanReason string `json:"ban_reason,omitempty"`

	TrialUsed      bool   `json:"trial_used"`
	StreakCount    int    `json:"streak_count"`
	StreakLastDate string `json:"streak_last_date,omitempty"`

	AdminNotified bool `json:"admin_notified"`

	Favorites     map[string]Favorite `json:"favorites,omitempty"`
	History       []HistoryEntry      `json:"history,omitempty"`
	OperationLogs []OpLog             `json:"operation_logs,omitempty"`
}

// NewUserRecord returns a record with the schema defaults applied.
func NewUserRecord(userID int64) *UserRecord {
	return &UserRecord{
		UserID:      userID,
		Language:    "ru",
		Plan:        PlanFree,
		Mode:        ModeTikTok,
		Quality:     QualityMax,
		TextOverlay: true,
	}
}

// ApplyDefaults fills fields that a loaded snapshot may have left empty.
func (u *UserRecord) ApplyDefaults() {
	if u.Language == "" {
		u.Language = "ru"
	}
	if !u.Plan.Valid() {
		u.Plan = PlanFree
	}
	if u.Mode == "" {
		u.Mode = ModeTikTok
	}
	if u.Quality == "" {
		u.Quality = QualityMax
	}
}

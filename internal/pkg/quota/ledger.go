package quota

import (
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/itbfess/ITBFess/app/models"
)

const (
	// GlobalDailyCap matches the posting platform's free-tier rate limit.
	GlobalDailyCap = 17
	// PersonalCooldownDays is the per-sender wait between free messages.
	PersonalCooldownDays = 7
	// MaxMessageLength is the posting platform's character limit.
	MaxMessageLength = 280

	counterReadRetries = 3
	retryBackoffUnit   = time.Second
)

// Triggers is the fixed set of substrings one of which every regular
// message must contain (case-insensitive).
var Triggers = []string{"itb!", "ganesha!"}

// Admission denial reason codes. Callers branch on these.
const (
	ReasonContentInvalid        = "CONTENT_INVALID"
	ReasonPersonalLimitExceeded = "PERSONAL_LIMIT_EXCEEDED"
	ReasonGlobalLimitExceeded   = "GLOBAL_LIMIT_EXCEEDED"
)

// AdmissionResult is the outcome of an admission check.
type AdmissionResult struct {
	Admit         bool       `json:"admit"`
	Reason        string     `json:"reason,omitempty"`
	NextAvailable *time.Time `json:"next_available,omitempty"`
}

// QuotaStatus is the advisory quota view for client display. It is
// re-validated at admission time.
type QuotaStatus struct {
	Remaining  int  `json:"remaining"`
	IsPaidOnly bool `json:"is_paid_only"`
}

// Ledger gates free-tier message admission against the personal cooldown and
// the global daily cap.
type Ledger struct {
	repo Repository
	now  func() time.Time
}

// NewLedger creates a quota ledger from an injected repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// NewLedgerFromDB creates a quota ledger from a GORM DB handle.
func NewLedgerFromDB(db *gorm.DB) *Ledger {
	return NewLedger(NewRepository(db))
}

// ContentValid reports whether the message passes the content gate: at most
// MaxMessageLength characters and at least one trigger substring.
func ContentValid(message string) bool {
	if len([]rune(message)) > MaxMessageLength {
		return false
	}
	lower := strings.ToLower(message)
	for _, trigger := range Triggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}

// CheckAdmission decides whether a regular message may be posted now.
// Order: content gate, personal gate, global gate. A sender with no history
// always passes the personal gate.
func (l *Ledger) CheckAdmission(email, message string) (*AdmissionResult, error) {
	if !ContentValid(message) {
		return &AdmissionResult{Admit: false, Reason: ReasonContentInvalid}, nil
	}

	profile, err := l.repo.GetProfile(email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if profile != nil && profile.LastRegularMessage != nil {
		cooldown := PersonalCooldownDays * 24 * time.Hour
		elapsed := l.now().Sub(*profile.LastRegularMessage)
		if elapsed < cooldown {
			next := profile.LastRegularMessage.Add(cooldown)
			return &AdmissionResult{
				Admit:         false,
				Reason:        ReasonPersonalLimitExceeded,
				NextAvailable: &next,
			}, nil
		}
	}

	count, err := l.counterWithRetry()
	if err != nil {
		// Fail safe: an unreadable counter is treated as at capacity.
		logrus.Errorf("quota: counter read failed after retries, denying: %v", err)
		next := l.nextMidnight()
		return &AdmissionResult{Admit: false, Reason: ReasonGlobalLimitExceeded, NextAvailable: &next}, nil
	}
	if count+1 > GlobalDailyCap {
		next := l.nextMidnight()
		return &AdmissionResult{Admit: false, Reason: ReasonGlobalLimitExceeded, NextAvailable: &next}, nil
	}

	return &AdmissionResult{Admit: true}, nil
}

// ReserveSlot claims one slot of today's global cap. Returns false when the
// cap is already consumed. The check and increment are one conditional
// update, so concurrent reservations cannot overshoot the cap.
func (l *Ledger) ReserveSlot() (bool, error) {
	date := models.CounterDate(l.now())
	if err := l.repo.EnsureCounter(date); err != nil {
		return false, err
	}
	return l.repo.IncrementIfBelow(date, GlobalDailyCap)
}

// RecordSend appends the posted message to the regular-post log and updates
// the sender's profile bookkeeping.
func (l *Ledger) RecordSend(email, message, tweetID, tweetURL string) error {
	if err := l.repo.CreateRegularPost(&models.RegularPost{
		Email:    email,
		Message:  message,
		TweetID:  tweetID,
		TweetURL: tweetURL,
	}); err != nil {
		return err
	}

	profile, err := l.repo.GetOrCreateProfile(email)
	if err != nil {
		return err
	}
	profile.RecordRegularSend(l.now())
	return l.repo.SaveProfile(profile)
}

// Status returns the remaining global quota and the derived paid-only flag.
func (l *Ledger) Status() (*QuotaStatus, error) {
	count, err := l.counterWithRetry()
	if err != nil {
		return &QuotaStatus{Remaining: 0, IsPaidOnly: true}, nil
	}
	remaining := GlobalDailyCap - count
	if remaining < 0 {
		remaining = 0
	}
	return &QuotaStatus{Remaining: remaining, IsPaidOnly: remaining <= 0}, nil
}

// ResetToday zeroes today's counter. Used by the scheduled midnight job.
func (l *Ledger) ResetToday() error {
	return l.repo.ResetCounter(models.CounterDate(l.now()))
}

func (l *Ledger) counterWithRetry() (int, error) {
	date := models.CounterDate(l.now())
	var lastErr error
	for attempt := 1; attempt <= counterReadRetries; attempt++ {
		counter, err := l.repo.GetCounter(date)
		if err == nil {
			return counter.RegularCount, nil
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No row yet means no messages today.
			return 0, nil
		}
		lastErr = err
		if attempt < counterReadRetries {
			time.Sleep(retryBackoffUnit * time.Duration(attempt))
		}
	}
	return 0, lastErr
}

func (l *Ledger) nextMidnight() time.Time {
	now := l.now()
	year, month, day := now.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
}

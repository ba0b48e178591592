package moderation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/itbfess/ITBFess/app/models"
	"github.com/itbfess/ITBFess/internal/pkg/mail"
	"github.com/itbfess/ITBFess/internal/pkg/metrics"
	"github.com/itbfess/ITBFess/internal/pkg/security"
)

const (
	// VoteQuorum is the number of distinct votes that trigger removal review.
	VoteQuorum = 10
	// VoteWindow is how long sub-quorum votes are kept before the sweep
	// discards them.
	VoteWindow = 24 * time.Hour
	// DevVoteWindow shortens the sweep window in dev mode.
	DevVoteWindow = 5 * time.Minute
)

var (
	ErrInvalidEmailDomain = errors.New("email is not from the institutional domain")
	ErrDuplicateVote      = errors.New("a vote for this content already exists")
	ErrInvalidToken       = errors.New("invalid confirmation token")
)

// VoteResult is returned from a vote submission.
type VoteResult struct {
	Votes            int64 `json:"votes"`
	ThresholdReached bool  `json:"threshold_reached"`
}

// Config carries the static knobs of the moderator.
type Config struct {
	EmailSuffix   string   // institutional domain suffix, e.g. "@mahasiswa.itb.ac.id"
	Whitelist     []string // explicit bypass addresses
	AdminEmail    string   // removal notices go here
	BaseURL       string   // public base URL for confirmation links
	ConfirmSecret string   // key for confirmation tokens
	DevMode       bool
}

// Service accumulates per-content deletion votes and runs the
// notification-and-confirmation workflow once the quorum is crossed.
type Service struct {
	repo   Repository
	mailer mail.Mailer
	cfg    Config
	now    func() time.Time
}

// NewService creates a vote moderator from injected collaborators.
func NewService(repo Repository, mailer mail.Mailer, cfg Config) *Service {
	return &Service{repo: repo, mailer: mailer, cfg: cfg, now: time.Now}
}

// NewServiceFromDB creates a vote moderator from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, mailer mail.Mailer, cfg Config) *Service {
	return NewService(NewRepository(db), mailer, cfg)
}

// SubmitVote validates, stores and counts a deletion vote, fires the admin
// notice when the quorum is reached, and opportunistically sweeps stale
// sub-quorum votes.
func (s *Service) SubmitVote(email, contentURL, reason string) (*VoteResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !s.emailAllowed(email) {
		return nil, ErrInvalidEmailDomain
	}

	// Sweep before the insert so the fresh vote can never be purged by the
	// sweep it triggered. Sweep failures must not block the vote itself.
	if _, err := s.Sweep(); err != nil {
		logrus.Warnf("moderation: sweep failed: %v", err)
	}

	if !s.cfg.DevMode {
		exists, err := s.repo.HasVote(contentURL, email)
		if err != nil {
			return nil, fmt.Errorf("checking existing vote: %w", err)
		}
		if exists {
			return nil, ErrDuplicateVote
		}
	}

	if err := s.repo.CreateVote(&models.DeletionVote{
		ContentURL: contentURL,
		VoterEmail: email,
		Reason:     reason,
	}); err != nil {
		return nil, fmt.Errorf("storing vote: %w", err)
	}
	metrics.Get().VotesSubmitted.Inc()

	count, err := s.repo.CountVotes(contentURL)
	if err != nil {
		return nil, fmt.Errorf("counting votes: %w", err)
	}

	result := &VoteResult{Votes: count, ThresholdReached: count >= VoteQuorum}
	if result.ThresholdReached {
		metrics.Get().QuorumTriggers.Inc()
		if err := s.notifyAdmin(contentURL); err != nil {
			logrus.WithField("content_url", contentURL).
				Errorf("moderation: admin notice failed: %v", err)
		}
	}
	return result, nil
}

// Sweep deletes all votes for every content URL whose oldest vote aged past
// the window without reaching quorum. Returns the number of URLs purged.
func (s *Service) Sweep() (int, error) {
	window := VoteWindow
	if s.cfg.DevMode {
		window = DevVoteWindow
	}
	urls, err := s.repo.StaleURLsBelowQuorum(VoteQuorum, s.now().Add(-window))
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, u := range urls {
		if err := s.repo.DeleteVotesForURL(u); err != nil {
			logrus.WithField("content_url", u).Warnf("moderation: purge failed: %v", err)
			continue
		}
		purged++
	}
	if purged > 0 {
		logrus.Infof("moderation: swept %d stale report(s)", purged)
	}
	return purged, nil
}

// ConfirmRemoval handles the admin confirmation link: verifies the keyed
// token, mails every voter a personalized confirmation, then purges the
// votes. Individual mail failures are logged and skipped.
func (s *Service) ConfirmRemoval(contentURL, token string) (int, error) {
	if err := security.VerifyConfirmToken(token, contentURL, s.cfg.ConfirmSecret); err != nil {
		return 0, ErrInvalidToken
	}

	votes, err := s.repo.VotesForURL(contentURL)
	if err != nil {
		return 0, fmt.Errorf("loading voters: %w", err)
	}

	notified := 0
	for _, v := range votes {
		body := fmt.Sprintf(
			"<p>Halo,</p><p>The content you reported has been removed:</p><p><a href=%q>%s</a></p><p>Thank you for keeping the timeline safe.</p>",
			contentURL, contentURL,
		)
		if err := s.mailer.Send(v.VoterEmail, "Your report was actioned", body); err != nil {
			metrics.Get().MailsFailed.Inc()
			logrus.WithField("to", v.VoterEmail).Warnf("moderation: confirmation mail failed: %v", err)
			continue
		}
		metrics.Get().MailsSent.Inc()
		notified++
	}

	if err := s.repo.DeleteVotesForURL(contentURL); err != nil {
		return notified, fmt.Errorf("purging votes: %w", err)
	}
	return notified, nil
}

func (s *Service) emailAllowed(email string) bool {
	if s.cfg.DevMode {
		return true
	}
	for _, w := range s.cfg.Whitelist {
		if strings.EqualFold(strings.TrimSpace(w), email) {
			return true
		}
	}
	return strings.HasSuffix(email, strings.ToLower(s.cfg.EmailSuffix))
}

func (s *Service) notifyAdmin(contentURL string) error {
	votes, err := s.repo.VotesForURL(contentURL)
	if err != nil {
		return err
	}

	token, err := security.GenerateConfirmToken(contentURL, s.cfg.ConfirmSecret)
	if err != nil {
		return err
	}
	confirmLink := fmt.Sprintf("%s/api/votes/confirm?url=%s&token=%s",
		strings.TrimRight(s.cfg.BaseURL, "/"),
		url.QueryEscape(contentURL),
		url.QueryEscape(token),
	)

	var sb strings.Builder
	fmt.Fprintf(&sb, "<p>The report quorum was reached for:</p><p><a href=%q>%s</a></p><ul>", contentURL, contentURL)
	for _, v := range votes {
		fmt.Fprintf(&sb, "<li>%s: %s</li>", v.VoterEmail, v.Reason)
	}
	fmt.Fprintf(&sb, "</ul><p><a href=%q>Confirm removal and notify voters</a></p>", confirmLink)

	if err := s.mailer.Send(s.cfg.AdminEmail, "Deletion quorum reached", sb.String()); err != nil {
		metrics.Get().MailsFailed.Inc()
		return err
	}
	metrics.Get().MailsSent.Inc()
	return nil
}

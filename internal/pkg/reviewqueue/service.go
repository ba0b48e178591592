package reviewqueue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/itbfess/ITBFess/app/models"
	"github.com/itbfess/ITBFess/internal/pkg/mail"
	"github.com/itbfess/ITBFess/internal/pkg/metrics"
)

const (
	DefaultPageSize = 15
	MaxPageSize     = 50
)

var (
	ErrNotPending      = errors.New("post is not pending")
	ErrTweetURLMissing = errors.New("tweet url is required when posting")
	ErrBadStatus       = errors.New("status must be posted or rejected")
	ErrAlreadyNotified = errors.New("notification already sent")
	ErrNotPosted       = errors.New("post has no public url yet")
)

// Listing is a cached page of the review queue.
type Listing struct {
	Posts []models.PaidPost `json:"posts"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

// StatusChange is one item in a batched review decision.
type StatusChange struct {
	PostID   uint   `json:"post_id"`
	Status   string `json:"status"`
	TweetURL string `json:"tweet_url,omitempty"`
}

// ItemOutcome reports the result of one item of a batch. Batches are N
// independent operations; partial success is the contract.
type ItemOutcome struct {
	PostID uint   `json:"post_id"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// Service is the admin review queue over paid posts: listing, manual status
// transitions, submitter notifications and the per-admin posted statistic.
type Service struct {
	repo   Repository
	cache  Cache
	mailer mail.Mailer
	now    func() time.Time
}

// NewService creates a review queue service from injected collaborators.
func NewService(repo Repository, cache Cache, mailer mail.Mailer) *Service {
	return &Service{repo: repo, cache: cache, mailer: mailer, now: time.Now}
}

// NewServiceFromDB creates a review queue service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, cache Cache, mailer mail.Mailer) *Service {
	return NewService(NewRepository(db), cache, mailer)
}

// List returns one page of the queue, served from the read-through cache
// when a fresh entry exists.
func (s *Service) List(q ListQuery) (*Listing, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if q.Status == "" {
		q.Status = "all"
	}

	key := fmt.Sprintf("reviewqueue:list:p%d:l%d:q%s:t%s:s%s", q.Page, q.Limit, q.Search, q.SearchType, q.Status)
	if cached, ok := s.cache.Get(key); ok {
		var listing Listing
		if err := json.Unmarshal([]byte(cached), &listing); err == nil {
			return &listing, nil
		}
	}

	posts, total, err := s.repo.ListPaidPosts(q)
	if err != nil {
		return nil, fmt.Errorf("listing paid posts: %w", err)
	}
	listing := &Listing{Posts: posts, Total: total, Page: q.Page, Limit: q.Limit}

	if raw, err := json.Marshal(listing); err == nil {
		s.cache.Set(key, string(raw), ListingTTL)
	}
	return listing, nil
}

// SetStatus applies one manual review decision. pending -> posted requires
// the public URL and records the acting admin and timestamp; pending ->
// rejected does not. Both recompute the admin profit-share statistic.
func (s *Service) SetStatus(postID uint, status, tweetURL, adminUsername string) (*models.PaidPost, error) {
	if status != models.TweetStatusPosted && status != models.TweetStatusRejected {
		return nil, ErrBadStatus
	}

	post, err := s.repo.GetPaidPost(postID)
	if err != nil {
		return nil, err
	}
	if !post.IsPending() {
		return nil, ErrNotPending
	}

	post.TweetStatus = status
	if status == models.TweetStatusPosted {
		if tweetURL == "" {
			return nil, ErrTweetURLMissing
		}
		at := s.now()
		post.TweetURL = tweetURL
		post.PostedBy = adminUsername
		post.PostedAt = &at
	}

	if err := s.repo.SavePaidPost(post); err != nil {
		return nil, fmt.Errorf("saving post: %w", err)
	}
	metrics.Get().PaidPostsReviewed.WithLabelValues(status).Inc()

	if status == models.TweetStatusPosted {
		if err := s.creditAdmin(adminUsername); err != nil {
			logrus.WithField("admin", adminUsername).
				Warnf("reviewqueue: crediting admin failed: %v", err)
		}
	}
	return post, nil
}

// BatchSetStatus applies N independent status changes and reports a per-item
// outcome list. Failures do not halt the loop.
func (s *Service) BatchSetStatus(changes []StatusChange, adminUsername string) []ItemOutcome {
	outcomes := make([]ItemOutcome, 0, len(changes))
	for _, change := range changes {
		_, err := s.SetStatus(change.PostID, change.Status, change.TweetURL, adminUsername)
		outcome := ItemOutcome{PostID: change.PostID, OK: err == nil}
		if err != nil {
			outcome.Error = err.Error()
			logrus.WithField("post_id", change.PostID).
				Warnf("reviewqueue: batch item failed: %v", err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// Notify emails the original submitter that their paid post went out.
// Guarded by the notification flag so redelivery never duplicates the mail.
func (s *Service) Notify(postID uint) error {
	post, err := s.repo.GetPaidPost(postID)
	if err != nil {
		return err
	}
	if post.NotificationSent {
		return ErrAlreadyNotified
	}
	if post.TweetStatus != models.TweetStatusPosted || post.TweetURL == "" {
		return ErrNotPosted
	}

	body := fmt.Sprintf(
		"<p>Your menfess has been posted:</p><p><a href=%q>%s</a></p><p>Thank you for the support!</p>",
		post.TweetURL, post.TweetURL,
	)
	if err := s.mailer.Send(post.Email, "Your menfess is live", body); err != nil {
		metrics.Get().MailsFailed.Inc()
		return fmt.Errorf("sending notification: %w", err)
	}
	metrics.Get().MailsSent.Inc()

	post.NotificationSent = true
	return s.repo.SavePaidPost(post)
}

// NotifyBatch fires Notify over a set of posts, best effort.
func (s *Service) NotifyBatch(postIDs []uint) []ItemOutcome {
	outcomes := make([]ItemOutcome, 0, len(postIDs))
	for _, id := range postIDs {
		err := s.Notify(id)
		outcome := ItemOutcome{PostID: id, OK: err == nil}
		if err != nil {
			outcome.Error = err.Error()
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// creditAdmin bumps the acting admin's posted count and recomputes every
// admin's profit share (own posted / total posted).
func (s *Service) creditAdmin(username string) error {
	admin, err := s.repo.GetAdminByUsername(username)
	if err != nil {
		return err
	}
	admin.PostedCount++
	if err := s.repo.SaveAdmin(admin); err != nil {
		return err
	}

	admins, err := s.repo.ListAdmins()
	if err != nil {
		return err
	}
	total := 0
	for _, a := range admins {
		total += a.PostedCount
	}
	if total == 0 {
		return nil
	}
	for i := range admins {
		share := float64(admins[i].PostedCount) / float64(total) * 100
		if admins[i].ProfitShare == share {
			continue
		}
		admins[i].ProfitShare = share
		if err := s.repo.SaveAdmin(&admins[i]); err != nil {
			return err
		}
	}
	return nil
}

package reviewqueue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/itbfess/ITBFess/app/models"
)

type fakeQueueRepo struct {
	posts     map[uint]*models.PaidPost
	admins    map[string]*models.Admin
	listCalls int
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{
		posts:  make(map[uint]*models.PaidPost),
		admins: make(map[string]*models.Admin),
	}
}

func (r *fakeQueueRepo) ListPaidPosts(q ListQuery) ([]models.PaidPost, int64, error) {
	r.listCalls++
	var out []models.PaidPost
	for _, post := range r.posts {
		if q.Status != "" && q.Status != "all" && post.TweetStatus != q.Status {
			continue
		}
		out = append(out, *post)
	}
	return out, int64(len(out)), nil
}

func (r *fakeQueueRepo) GetPaidPost(id uint) (*models.PaidPost, error) {
	post, ok := r.posts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *post
	return &copied, nil
}

func (r *fakeQueueRepo) SavePaidPost(post *models.PaidPost) error {
	copied := *post
	r.posts[post.ID] = &copied
	return nil
}

func (r *fakeQueueRepo) GetAdminByUsername(username string) (*models.Admin, error) {
	admin, ok := r.admins[username]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *admin
	return &copied, nil
}

func (r *fakeQueueRepo) ListAdmins() ([]models.Admin, error) {
	var out []models.Admin
	for _, admin := range r.admins {
		out = append(out, *admin)
	}
	return out, nil
}

func (r *fakeQueueRepo) SaveAdmin(admin *models.Admin) error {
	copied := *admin
	r.admins[admin.Username] = &copied
	return nil
}

type fakeQueueMailer struct {
	sent    []string
	failFor map[string]bool
}

func (m *fakeQueueMailer) Send(to, subject, body string) error {
	if m.failFor[to] {
		return errors.New("smtp refused")
	}
	m.sent = append(m.sent, to)
	return nil
}

func newQueueService(repo *fakeQueueRepo) (*Service, *fakeQueueMailer) {
	mailer := &fakeQueueMailer{failFor: make(map[string]bool)}
	return NewService(repo, NewMemoryCache(), mailer), mailer
}

func seedPending(repo *fakeQueueRepo, id uint, email string) {
	repo.posts[id] = &models.PaidPost{
		ID:          id,
		MerchantRef: "MF-TEST",
		MessageText: "itb! paid message",
		Email:       email,
		TweetStatus: models.TweetStatusPending,
	}
}

func seedAdmin(repo *fakeQueueRepo, username string, postedCount int) {
	repo.admins[username] = &models.Admin{
		Username:    username,
		Name:        "Admin " + username,
		PostedCount: postedCount,
	}
}

func TestSetStatus_PostedRecordsAdminAndTimestamp(t *testing.T) {
	repo := newFakeQueueRepo()
	svc, _ := newQueueService(repo)
	seedPending(repo, 1, "sender@mahasiswa.itb.ac.id")
	seedAdmin(repo, "alice", 0)

	decidedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return decidedAt }

	post, err := svc.SetStatus(1, models.TweetStatusPosted, "https://twitter.com/acct/status/1", "alice")
	require.NoError(t, err)

	assert.Equal(t, models.TweetStatusPosted, post.TweetStatus)
	assert.Equal(t, "alice", post.PostedBy)
	require.NotNil(t, post.PostedAt)
	assert.Equal(t, decidedAt, *post.PostedAt)
	assert.Equal(t, 1, repo.admins["alice"].PostedCount)
}

func TestSetStatus_PostedRequiresTweetURL(t *testing.T) {
	repo := newFakeQueueRepo()
	svc, _ := newQueueService(repo)
	seedPending(repo, 1, "sender@mahasiswa.itb.ac.id")

	_, err := svc.SetStatus(1, models.TweetStatusPosted, "", "alice")
	assert.ErrorIs(t, err, ErrTweetURLMissing)
	assert.Equal(t, models.TweetStatusPending, repo.posts[1].TweetStatus)
}

func TestSetStatus_RejectedNeedsNoURL(t *testing.T) {
	repo := newFakeQueueRepo()
	svc, _ := newQueueService(repo)
	seedPending(repo, 1, "sender@mahasiswa.itb.ac.id")
	seedAdmin(repo, "alice", 0)

	post, err := svc.SetStatus(1, models.TweetStatusRejected, "", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.TweetStatusRejected, post.TweetStatus)
	assert.Empty(t, post.PostedBy)
	assert.Nil(t, post.PostedAt)
	assert.Equal(t, 0, repo.admins["alice"].PostedCount, "rejections earn no credit")
}

func TestSetStatus_OnlyPendingPostsTransition(t *testing.T) {
	repo := newFakeQueueRepo()
	svc, _ := newQueueService(repo)
	seedPending(repo, 1, "sender@mahasiswa.itb.ac.id")
	repo.posts[1].TweetStatus = models.TweetStatusPosted

	_, err := svc.SetStatus(1, models.TweetStatusRejected, "", "alice")
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestSetStatus_RejectsUnknownStatus(t *testing.T) {
	repo := newFakeQueueRepo()
	svc, _ := newQueueService(repo)
	seedPending(repo, 1, "sender@mahasiswa.itb.ac.id")

	_, err := svc.SetStatus(1, "archived", "", "alice")
	assert.ErrorIs(t, err, ErrBadStatus)
}

func TestSetStatus_ProfitShareRecomputedAcrossAdmins(t *testing.T) {
	repo := newFakeQueueRepo()
	svc, _ := newQueueService(repo)
	seedPending(repo, 1, "sender@mahasiswa.itb.ac.id")
	seedAdmin(repo, "alice", 2)
	seedAdmin(repo, "bob", 1)

	_, err := svc.SetStatus(1, models.TweetStatusPosted, "https://twitter.com/acct/status/1", "alice")
	require.NoError(t, err)

	assert.Equal(t, 3, repo.admins["alice"].PostedCount)
	assert.InDelta(t, 75.0, repo.admins["alice"].ProfitShare, 0.001)
	assert.InDelta(t, 25.0, repo.admins["bob"].ProfitShare, 0.001)
}

func TestBatchSetStatus_PartialFailureReportsPerItem(t *testing.T) {
	repo := newFakeQueueRepo()
	svc, _ := newQueueService(repo)
	seedPending(repo, 1, "a@mahasiswa.itb.ac.id")
	seedPending(repo, 2, "b@mahasiswa.itb.ac.id")
	seedAdmin(repo, "alice", 0)

	outcomes := svc.BatchSetStatus([]StatusChange{
		{PostID: 1, Status: models.TweetStatusPosted, TweetURL: "https://twitter.com/acct/status/1"},
		{PostID: 2, Status: models.TweetStatusPosted}, // missing URL
		{PostID: 99, Status: models.TweetStatusRejected},
	}, "alice")

	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].OK)
	assert.False(t, outcomes[1].OK)
	assert.Equal(t, ErrTweetURLMissing.Error(), outcomes[1].Error)
	assert.False(t, outcomes[2].OK)

	assert.Equal(t, models.TweetStatusPosted, repo.posts[1].TweetStatus)
	assert.Equal(t, models.TweetStatusPending, repo.posts[2].TweetStatus)
}

func TestNotify_SendsOnceAndSetsFlag(t *testing.T) {
	repo := newFakeQueueRepo()
	svc, mailer := newQueueService(repo)
	seedPending(repo, 1, "sender@mahasiswa.itb.ac.id")
	repo.posts[1].TweetStatus = models.TweetStatusPosted
	repo.posts[1].TweetURL = "https://twitter.com/acct/status/1"

	require.NoError(t, svc.Notify(1))
	assert.Equal(t, []string{"sender@mahasiswa.itb.ac.id"}, mailer.sent)
	assert.True(t, repo.posts[1].NotificationSent)

	err := svc.Notify(1)
	assert.ErrorIs(t, err, ErrAlreadyNotified)
	assert.Len(t, mailer.sent, 1)
}

func TestNotify_RequiresPostedWithURL(t *testing.T) {
	repo := newFakeQueueRepo()
	svc, mailer := newQueueService(repo)
	seedPending(repo, 1, "sender@mahasiswa.itb.ac.id")

	err := svc.Notify(1)
	assert.ErrorIs(t, err, ErrNotPosted)
	assert.Empty(t, mailer.sent)
}

func TestNotify_MailFailureLeavesFlagUnset(t *testing.T) {
	repo := newFakeQueueRepo()
	svc, mailer := newQueueService(repo)
	seedPending(repo, 1, "sender@mahasiswa.itb.ac.id")
	repo.posts[1].TweetStatus = models.TweetStatusPosted
	repo.posts[1].TweetURL = "https://twitter.com/acct/status/1"
	mailer.failFor["sender@mahasiswa.itb.ac.id"] = true

	err := svc.Notify(1)
	assert.Error(t, err)
	assert.False(t, repo.posts[1].NotificationSent, "retry must remain possible")
}

func TestNotifyBatch(t *testing.T) {
	repo := newFakeQueueRepo()
	svc, _ := newQueueService(repo)
	seedPending(repo, 1, "a@mahasiswa.itb.ac.id")
	repo.posts[1].TweetStatus = models.TweetStatusPosted
	repo.posts[1].TweetURL = "https://twitter.com/acct/status/1"
	seedPending(repo, 2, "b@mahasiswa.itb.ac.id")

	outcomes := svc.NotifyBatch([]uint{1, 2})
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].OK)
	assert.False(t, outcomes[1].OK)
	assert.Equal(t, ErrNotPosted.Error(), outcomes[1].Error)
}

func TestList_ServesSecondCallFromCache(t *testing.T) {
	repo := newFakeQueueRepo()
	svc, _ := newQueueService(repo)
	seedPending(repo, 1, "sender@mahasiswa.itb.ac.id")

	q := ListQuery{Status: models.TweetStatusPending}
	first, err := svc.List(q)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Total)
	assert.Equal(t, 1, repo.listCalls)

	second, err := svc.List(q)
	require.NoError(t, err)
	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, 1, repo.listCalls, "fresh cache entry skips the database")
}

func TestList_NormalizesQuery(t *testing.T) {
	repo := newFakeQueueRepo()
	svc, _ := newQueueService(repo)

	listing, err := svc.List(ListQuery{Page: 0, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, listing.Page)
	assert.Equal(t, MaxPageSize, listing.Limit)
}

func TestList_ExpiredCacheEntryHitsDatabaseAgain(t *testing.T) {
	repo := newFakeQueueRepo()
	cache := NewMemoryCache()
	svc := NewService(repo, cache, &fakeQueueMailer{})
	seedPending(repo, 1, "sender@mahasiswa.itb.ac.id")

	base := time.Now()
	cache.now = func() time.Time { return base }

	q := ListQuery{Status: models.TweetStatusPending}
	_, err := svc.List(q)
	require.NoError(t, err)

	cache.now = func() time.Time { return base.Add(ListingTTL + time.Second) }
	_, err = svc.List(q)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

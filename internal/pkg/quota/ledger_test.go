package quota

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/itbfess/ITBFess/app/models"
)

type fakeRepo struct {
	mu       sync.Mutex
	profiles map[string]*models.UserProfile
	counters map[string]int
	posts    []models.RegularPost

	counterErr   error
	counterReads int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		profiles: make(map[string]*models.UserProfile),
		counters: make(map[string]int),
	}
}

func (r *fakeRepo) GetProfile(email string) (*models.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeRepo) GetOrCreateProfile(email string) (*models.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[email]; ok {
		return p, nil
	}
	p := &models.UserProfile{Email: email, Alias: models.DefaultAlias}
	r.profiles[email] = p
	return p, nil
}

func (r *fakeRepo) SaveProfile(profile *models.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.Email] = profile
	return nil
}

func (r *fakeRepo) GetCounter(date string) (*models.DailyCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counterReads++
	if r.counterErr != nil {
		return nil, r.counterErr
	}
	count, ok := r.counters[date]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.DailyCounter{Date: date, RegularCount: count}, nil
}

func (r *fakeRepo) EnsureCounter(date string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.counters[date]; !ok {
		r.counters[date] = 0
	}
	return nil
}

func (r *fakeRepo) IncrementIfBelow(date string, cap int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counters[date] >= cap {
		return false, nil
	}
	r.counters[date]++
	return true, nil
}

func (r *fakeRepo) ResetCounter(date string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[date] = 0
	return nil
}

func (r *fakeRepo) CreateRegularPost(post *models.RegularPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts = append(r.posts, *post)
	return nil
}

func TestContentValid(t *testing.T) {
	assert.True(t, ContentValid("itb! someone left their flashdisk in labtek V"))
	assert.True(t, ContentValid("halo ITB! uppercase trigger"))
	assert.False(t, ContentValid("someone left their flashdisk in labtek V"))

	long := "itb! "
	for len([]rune(long)) <= MaxMessageLength {
		long += "a"
	}
	assert.False(t, ContentValid(long))
}

func TestCheckAdmission_ContentGate(t *testing.T) {
	ledger := NewLedger(newFakeRepo())

	result, err := ledger.CheckAdmission("a@mahasiswa.itb.ac.id", "no trigger word here")
	require.NoError(t, err)
	assert.False(t, result.Admit)
	assert.Equal(t, ReasonContentInvalid, result.Reason)

	result, err = ledger.CheckAdmission("a@mahasiswa.itb.ac.id", "itb! with trigger word")
	require.NoError(t, err)
	assert.True(t, result.Admit)
}

func TestCheckAdmission_PersonalCooldownBoundary(t *testing.T) {
	repo := newFakeRepo()
	ledger := NewLedger(repo)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return now }

	tests := []struct {
		name     string
		daysAgo  int
		admitted bool
	}{
		{name: "exactly at cooldown", daysAgo: 7, admitted: true},
		{name: "past cooldown", daysAgo: 12, admitted: true},
		{name: "one day short", daysAgo: 6, admitted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			last := now.AddDate(0, 0, -tt.daysAgo)
			repo.profiles["x@mahasiswa.itb.ac.id"] = &models.UserProfile{
				Email:              "x@mahasiswa.itb.ac.id",
				LastRegularMessage: &last,
			}

			result, err := ledger.CheckAdmission("x@mahasiswa.itb.ac.id", "itb! test")
			require.NoError(t, err)
			assert.Equal(t, tt.admitted, result.Admit)
			if !tt.admitted {
				assert.Equal(t, ReasonPersonalLimitExceeded, result.Reason)
				require.NotNil(t, result.NextAvailable)
				assert.Equal(t, last.Add(PersonalCooldownDays*24*time.Hour), *result.NextAvailable)
			}
		})
	}
}

func TestCheckAdmission_NoHistoryAlwaysPassesPersonalGate(t *testing.T) {
	ledger := NewLedger(newFakeRepo())

	result, err := ledger.CheckAdmission("new@mahasiswa.itb.ac.id", "itb! first message")
	require.NoError(t, err)
	assert.True(t, result.Admit)
}

func TestCheckAdmission_GlobalCap(t *testing.T) {
	repo := newFakeRepo()
	ledger := NewLedger(repo)
	repo.counters[models.CounterDate(time.Now())] = GlobalDailyCap

	result, err := ledger.CheckAdmission("a@mahasiswa.itb.ac.id", "itb! over cap")
	require.NoError(t, err)
	assert.False(t, result.Admit)
	assert.Equal(t, ReasonGlobalLimitExceeded, result.Reason)
	assert.NotNil(t, result.NextAvailable)
}

func TestCheckAdmission_CounterFailureFailsClosed(t *testing.T) {
	repo := newFakeRepo()
	repo.counterErr = errors.New("connection reset")
	ledger := NewLedger(repo)

	result, err := ledger.CheckAdmission("a@mahasiswa.itb.ac.id", "itb! db down")
	require.NoError(t, err)
	assert.False(t, result.Admit)
	assert.Equal(t, ReasonGlobalLimitExceeded, result.Reason)
	assert.Equal(t, counterReadRetries, repo.counterReads)
}

func TestReserveSlot_ConcurrentReservationsNeverOvershoot(t *testing.T) {
	repo := newFakeRepo()
	ledger := NewLedger(repo)

	// Leave k=3 slots, then race 20 committers for them.
	date := models.CounterDate(time.Now())
	repo.counters[date] = GlobalDailyCap - 3

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ledger.ReserveSlot()
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
	assert.Equal(t, GlobalDailyCap, repo.counters[date])
}

func TestRecordSend_UpdatesProfileAndLog(t *testing.T) {
	repo := newFakeRepo()
	ledger := NewLedger(repo)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return now }

	require.NoError(t, ledger.RecordSend("a@mahasiswa.itb.ac.id", "itb! hello", "123", "https://twitter.com/itbfess/status/123"))

	require.Len(t, repo.posts, 1)
	assert.Equal(t, "itb! hello", repo.posts[0].Message)

	profile := repo.profiles["a@mahasiswa.itb.ac.id"]
	require.NotNil(t, profile)
	assert.Equal(t, 1, profile.MessageCount)
	require.NotNil(t, profile.LastRegularMessage)
	assert.Equal(t, now, *profile.LastRegularMessage)
}

func TestStatus(t *testing.T) {
	repo := newFakeRepo()
	ledger := NewLedger(repo)
	date := models.CounterDate(time.Now())

	repo.counters[date] = GlobalDailyCap - 2
	status, err := ledger.Status()
	require.NoError(t, err)
	assert.Equal(t, 2, status.Remaining)
	assert.False(t, status.IsPaidOnly)

	repo.counters[date] = GlobalDailyCap
	status, err = ledger.Status()
	require.NoError(t, err)
	assert.Equal(t, 0, status.Remaining)
	assert.True(t, status.IsPaidOnly)
}

package moderation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itbfess/ITBFess/app/models"
	"github.com/itbfess/ITBFess/internal/pkg/security"
)

type fakeVoteRepo struct {
	votes []models.DeletionVote
}

func (r *fakeVoteRepo) HasVote(contentURL, voterEmail string) (bool, error) {
	for _, v := range r.votes {
		if v.ContentURL == contentURL && v.VoterEmail == voterEmail {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeVoteRepo) CreateVote(vote *models.DeletionVote) error {
	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = time.Now()
	}
	r.votes = append(r.votes, *vote)
	return nil
}

func (r *fakeVoteRepo) CountVotes(contentURL string) (int64, error) {
	var count int64
	for _, v := range r.votes {
		if v.ContentURL == contentURL {
			count++
		}
	}
	return count, nil
}

func (r *fakeVoteRepo) VotesForURL(contentURL string) ([]models.DeletionVote, error) {
	var out []models.DeletionVote
	for _, v := range r.votes {
		if v.ContentURL == contentURL {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeVoteRepo) DeleteVotesForURL(contentURL string) error {
	kept := r.votes[:0]
	for _, v := range r.votes {
		if v.ContentURL != contentURL {
			kept = append(kept, v)
		}
	}
	r.votes = kept
	return nil
}

func (r *fakeVoteRepo) StaleURLsBelowQuorum(quorum int, olderThan time.Time) ([]string, error) {
	oldest := make(map[string]time.Time)
	counts := make(map[string]int)
	for _, v := range r.votes {
		counts[v.ContentURL]++
		if cur, ok := oldest[v.ContentURL]; !ok || v.CreatedAt.Before(cur) {
			oldest[v.ContentURL] = v.CreatedAt
		}
	}
	var urls []string
	for u, at := range oldest {
		if counts[u] < quorum && at.Before(olderThan) {
			urls = append(urls, u)
		}
	}
	return urls, nil
}

type fakeMailer struct {
	sent    []string // recipients in order
	failFor map[string]bool
}

func (m *fakeMailer) Send(to, subject, body string) error {
	if m.failFor[to] {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, to)
	return nil
}

func testConfig() Config {
	return Config{
		EmailSuffix:   "@mahasiswa.itb.ac.id",
		Whitelist:     []string{"alumni@gmail.com"},
		AdminEmail:    "admin@itbfess.id",
		BaseURL:       "https://itbfess.id",
		ConfirmSecret: "test-secret",
	}
}

const testURL = "https://twitter.com/itbfess/status/42"

func TestSubmitVote_DomainValidation(t *testing.T) {
	svc := NewService(&fakeVoteRepo{}, &fakeMailer{}, testConfig())

	_, err := svc.SubmitVote("outsider@gmail.com", testURL, "doxxing")
	assert.ErrorIs(t, err, ErrInvalidEmailDomain)

	_, err = svc.SubmitVote("13522001@mahasiswa.itb.ac.id", testURL, "doxxing")
	assert.NoError(t, err)

	// explicit whitelist bypass
	_, err = svc.SubmitVote("alumni@gmail.com", testURL, "doxxing")
	assert.NoError(t, err)
}

func TestSubmitVote_DevModeBypassesChecks(t *testing.T) {
	cfg := testConfig()
	cfg.DevMode = true
	svc := NewService(&fakeVoteRepo{}, &fakeMailer{}, cfg)

	_, err := svc.SubmitVote("outsider@gmail.com", testURL, "spam")
	assert.NoError(t, err)
	// duplicate allowed in dev mode
	_, err = svc.SubmitVote("outsider@gmail.com", testURL, "spam")
	assert.NoError(t, err)
}

func TestSubmitVote_RejectsDuplicate(t *testing.T) {
	svc := NewService(&fakeVoteRepo{}, &fakeMailer{}, testConfig())

	_, err := svc.SubmitVote("a@mahasiswa.itb.ac.id", testURL, "slander")
	require.NoError(t, err)
	_, err = svc.SubmitVote("a@mahasiswa.itb.ac.id", testURL, "slander again")
	assert.ErrorIs(t, err, ErrDuplicateVote)
}

func TestSubmitVote_QuorumTriggersAdminNotice(t *testing.T) {
	repo := &fakeVoteRepo{}
	mailer := &fakeMailer{}
	svc := NewService(repo, mailer, testConfig())

	for i := 0; i < VoteQuorum-1; i++ {
		result, err := svc.SubmitVote(voterEmail(i), testURL, "harassment")
		require.NoError(t, err)
		assert.False(t, result.ThresholdReached)
	}
	assert.Empty(t, mailer.sent, "no notice below quorum")

	result, err := svc.SubmitVote(voterEmail(VoteQuorum-1), testURL, "harassment")
	require.NoError(t, err)
	assert.True(t, result.ThresholdReached)
	assert.Equal(t, int64(VoteQuorum), result.Votes)
	require.Len(t, mailer.sent, 1, "exactly one admin notice at quorum")
	assert.Equal(t, "admin@itbfess.id", mailer.sent[0])
}

func TestSweep_PurgesStaleSubQuorumVotes(t *testing.T) {
	repo := &fakeVoteRepo{}
	svc := NewService(repo, &fakeMailer{}, testConfig())

	old := time.Now().Add(-25 * time.Hour)
	repo.votes = append(repo.votes,
		models.DeletionVote{ContentURL: "https://example.com/stale", VoterEmail: "a@mahasiswa.itb.ac.id", CreatedAt: old},
		models.DeletionVote{ContentURL: "https://example.com/fresh", VoterEmail: "b@mahasiswa.itb.ac.id", CreatedAt: time.Now()},
	)

	purged, err := svc.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	count, _ := repo.CountVotes("https://example.com/stale")
	assert.Zero(t, count)
	count, _ = repo.CountVotes("https://example.com/fresh")
	assert.EqualValues(t, 1, count)
}

func TestSubmitVote_FreshVoteSurvivesItsOwnSweep(t *testing.T) {
	repo := &fakeVoteRepo{}
	svc := NewService(repo, &fakeMailer{}, testConfig())

	// stale sub-quorum history on the same URL
	old := time.Now().Add(-25 * time.Hour)
	repo.votes = append(repo.votes,
		models.DeletionVote{ContentURL: testURL, VoterEmail: "a@mahasiswa.itb.ac.id", CreatedAt: old},
		models.DeletionVote{ContentURL: testURL, VoterEmail: "b@mahasiswa.itb.ac.id", CreatedAt: old},
	)

	result, err := svc.SubmitVote("c@mahasiswa.itb.ac.id", testURL, "harassment")
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Votes, "the fresh vote is counted, the stale ones are swept")

	votes, _ := repo.VotesForURL(testURL)
	require.Len(t, votes, 1)
	assert.Equal(t, "c@mahasiswa.itb.ac.id", votes[0].VoterEmail)
}

func TestConfirmRemoval(t *testing.T) {
	repo := &fakeVoteRepo{}
	mailer := &fakeMailer{failFor: map[string]bool{"b@mahasiswa.itb.ac.id": true}}
	svc := NewService(repo, mailer, testConfig())

	for _, email := range []string{"a@mahasiswa.itb.ac.id", "b@mahasiswa.itb.ac.id", "c@mahasiswa.itb.ac.id"} {
		_, err := svc.SubmitVote(email, testURL, "reason")
		require.NoError(t, err)
	}

	token, err := security.GenerateConfirmToken(testURL, "test-secret")
	require.NoError(t, err)

	// one mail fails; the others must still go out and votes must be purged
	notified, err := svc.ConfirmRemoval(testURL, token)
	require.NoError(t, err)
	assert.Equal(t, 2, notified)

	count, _ := repo.CountVotes(testURL)
	assert.Zero(t, count)
}

func TestConfirmRemoval_RejectsBadToken(t *testing.T) {
	svc := NewService(&fakeVoteRepo{}, &fakeMailer{}, testConfig())

	_, err := svc.ConfirmRemoval(testURL, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// token minted for a different URL must not work
	token, err := security.GenerateConfirmToken("https://other.example", "test-secret")
	require.NoError(t, err)
	_, err = svc.ConfirmRemoval(testURL, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func voterEmail(i int) string {
	return string(rune('a'+i)) + "@mahasiswa.itb.ac.id"
}

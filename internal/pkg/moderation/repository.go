package moderation

import (
	"time"

	"gorm.io/gorm"

	"github.com/itbfess/ITBFess/app/models"
)

// Repository provides DB operations used by the vote moderator.
type Repository interface {
	HasVote(contentURL, voterEmail string) (bool, error)
	CreateVote(vote *models.DeletionVote) error
	CountVotes(contentURL string) (int64, error)
	VotesForURL(contentURL string) ([]models.DeletionVote, error)
	DeleteVotesForURL(contentURL string) error
	StaleURLsBelowQuorum(quorum int, olderThan time.Time) ([]string, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a moderation repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) HasVote(contentURL, voterEmail string) (bool, error) {
	var count int64
	err := r.db.Model(&models.DeletionVote{}).
		Where("content_url = ? AND voter_email = ?", contentURL, voterEmail).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) CreateVote(vote *models.DeletionVote) error {
	return r.db.Create(vote).Error
}

func (r *gormRepository) CountVotes(contentURL string) (int64, error) {
	var count int64
	err := r.db.Model(&models.DeletionVote{}).
		Where("content_url = ?", contentURL).
		Count(&count).Error
	return count, err
}

func (r *gormRepository) VotesForURL(contentURL string) ([]models.DeletionVote, error) {
	var votes []models.DeletionVote
	err := r.db.Where("content_url = ?", contentURL).
		Order("created_at ASC").
		Find(&votes).Error
	return votes, err
}

func (r *gormRepository) DeleteVotesForURL(contentURL string) error {
	return r.db.Where("content_url = ?", contentURL).
		Delete(&models.DeletionVote{}).Error
}

// StaleURLsBelowQuorum lists content URLs whose vote count never reached the
// quorum and whose oldest vote predates the cutoff.
func (r *gormRepository) StaleURLsBelowQuorum(quorum int, olderThan time.Time) ([]string, error) {
	var urls []string
	err := r.db.Model(&models.DeletionVote{}).
		Select("content_url").
		Group("content_url").
		Having("COUNT(*) < ? AND MIN(created_at) < ?", quorum, olderThan).
		Pluck("content_url", &urls).Error
	return urls, err
}

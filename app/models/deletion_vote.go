package models

import "time"

// DeletionVote is one row per (content URL, voter email) pair. Uniqueness is
// enforced by the moderation service rather than the schema so dev mode can
// relax it for testing.
type DeletionVote struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ContentURL string    `gorm:"type:varchar(255);index:idx_votes_content;not null" json:"content_url"`
	VoterEmail string    `gorm:"type:varchar(200);index:idx_votes_content;not null" json:"voter_email"`
	Reason     string    `gorm:"type:text" json:"reason"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

package models

import "time"

// RegularPost is an append-only log of immediately-posted free-tier
// messages. Created at send time, never mutated.
type RegularPost struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(200);index" json:"email"`
	Message   string    `gorm:"type:text" json:"message"`
	TweetID   string    `gorm:"type:varchar(50)" json:"tweet_id"`
	TweetURL  string    `gorm:"type:varchar(255)" json:"tweet_url"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

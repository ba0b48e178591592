package models

import "time"

const (
	TweetStatusPending  = "pending"
	TweetStatusPosted   = "posted"
	TweetStatusRejected = "rejected"
)

// PaidPost is one row per paid message awaiting manual posting. Created at
// payment-success time, mutated exclusively by admin actions.
type PaidPost struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	MerchantRef      string     `gorm:"type:varchar(64);index" json:"merchant_ref"`
	MessageText      string     `gorm:"type:text" json:"message_text"`
	Email            string     `gorm:"type:varchar(200);index" json:"email"`
	MediaURL         string     `gorm:"type:varchar(255)" json:"media_url"`
	TweetStatus      string     `gorm:"type:varchar(20);default:'pending';index" json:"tweet_status"`
	TweetURL         string     `gorm:"type:varchar(255)" json:"tweet_url"`
	NotificationSent bool       `gorm:"default:false" json:"notification_sent"`
	PostedBy         string     `gorm:"type:varchar(150)" json:"posted_by"`
	PostedAt         *time.Time `gorm:"type:timestamp;default:null" json:"posted_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsPending reports whether the post still awaits an admin decision.
func (p *PaidPost) IsPending() bool {
	return p.TweetStatus == TweetStatusPending
}

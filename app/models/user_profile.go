package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// DefaultAlias is the display name used until a sender picks their own.
const DefaultAlias = "Sender"

// UserProfile is one row per verified email. Created on first OTP
// verification or first message, mutated on every accepted send.
type UserProfile struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Email              string     `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Alias              string     `gorm:"type:varchar(50);default:'Sender'" json:"alias"`
	MessageCount       int        `gorm:"default:0" json:"message_count"`
	LastRegularMessage *time.Time `gorm:"type:timestamp;default:null" json:"last_regular_message,omitempty"`
	ShowInLeaderboard  bool       `gorm:"default:true" json:"show_in_leaderboard"`
	LastActive         *time.Time `gorm:"type:timestamp;default:null" json:"last_active,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ErrAliasAlreadySet is returned when a custom alias exists and a change is attempted.
var ErrAliasAlreadySet = errors.New("alias already set")

// SetAlias assigns a custom alias. The alias is immutable once customized.
func (u *UserProfile) SetAlias(alias string) error {
	if alias == "" || alias == DefaultAlias {
		return errors.New("alias must be a non-default name")
	}
	if u.Alias != "" && u.Alias != DefaultAlias {
		return ErrAliasAlreadySet
	}
	u.Alias = alias
	return nil
}

// GetOrCreateUserProfile fetches the profile for an email, creating it on first contact.
func GetOrCreateUserProfile(db *gorm.DB, email string) (*UserProfile, error) {
	var profile UserProfile
	err := db.Where("email = ?", email).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	profile = UserProfile{Email: email, Alias: DefaultAlias}
	if err := db.Create(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// RecordRegularSend updates the send bookkeeping after an accepted message.
// The caller persists the profile.
func (u *UserProfile) RecordRegularSend(at time.Time) {
	u.MessageCount++
	u.LastRegularMessage = &at
	u.LastActive = &at
}

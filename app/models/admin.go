package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// Admin is an operator account for the review queue. PostedCount feeds the
// profit-share statistic recomputed on every review decision.
type Admin struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Username    string     `gorm:"uniqueIndex;type:varchar(100)" json:"username" validate:"required,min=3,max=100"`
	Name        string     `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Password    string     `gorm:"type:text" json:"-" validate:"required,min=6"`
	PostedCount int        `gorm:"default:0" json:"posted_count"`
	ProfitShare float64    `gorm:"default:0" json:"profit_share"`
	LastLoginAt *time.Time `gorm:"type:timestamp;default:null" json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Admin) Validate() error {
	v := validator.New()

	return v.Struct(a)
}

// CreateAdmin builds a validated admin with a hashed password.
func CreateAdmin(username, name, password string) (*Admin, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	a := &Admin{
		Username: username,
		Name:     name,
		Password: pw,
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}

	return a, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPassword verifies the provided password against the stored hash.
func (a *Admin) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(password)) == nil
}

package quota

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/itbfess/ITBFess/app/models"
)

// Repository provides DB operations used by the quota ledger.
type Repository interface {
	GetProfile(email string) (*models.UserProfile, error)
	GetOrCreateProfile(email string) (*models.UserProfile, error)
	SaveProfile(profile *models.UserProfile) error
	GetCounter(date string) (*models.DailyCounter, error)
	EnsureCounter(date string) error
	IncrementIfBelow(date string, cap int) (bool, error)
	ResetCounter(date string) error
	CreateRegularPost(post *models.RegularPost) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a quota repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetProfile(email string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.Where("email = ?", email).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *gormRepository) GetOrCreateProfile(email string) (*models.UserProfile, error) {
	return models.GetOrCreateUserProfile(r.db, email)
}

func (r *gormRepository) SaveProfile(profile *models.UserProfile) error {
	return r.db.Save(profile).Error
}

func (r *gormRepository) GetCounter(date string) (*models.DailyCounter, error) {
	var counter models.DailyCounter
	if err := r.db.Where("date = ?", date).First(&counter).Error; err != nil {
		return nil, err
	}
	return &counter, nil
}

func (r *gormRepository) EnsureCounter(date string) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoNothing: true,
	}).Create(&models.DailyCounter{Date: date}).Error
}

// IncrementIfBelow bumps the day's counter only when the result stays within
// the cap. The guard and the increment happen in one statement, so two
// concurrent committers can never both take the last slot.
func (r *gormRepository) IncrementIfBelow(date string, cap int) (bool, error) {
	tx := r.db.Model(&models.DailyCounter{}).
		Where("date = ? AND regular_count < ?", date, cap).
		UpdateColumn("regular_count", gorm.Expr("regular_count + 1"))
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) ResetCounter(date string) error {
	return r.db.Model(&models.DailyCounter{}).
		Where("date = ?", date).
		UpdateColumn("regular_count", 0).Error
}

func (r *gormRepository) CreateRegularPost(post *models.RegularPost) error {
	return r.db.Create(post).Error
}

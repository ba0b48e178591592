package reviewqueue

import (
	"gorm.io/gorm"

	"github.com/itbfess/ITBFess/app/models"
)

// ListQuery describes a paginated, filterable review queue listing.
type ListQuery struct {
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Search     string `json:"search"`
	SearchType string `json:"search_type"` // "message" or "email"
	Status     string `json:"status"`      // pending/posted/rejected/all
}

// Repository provides DB operations used by the review queue.
type Repository interface {
	ListPaidPosts(q ListQuery) ([]models.PaidPost, int64, error)
	GetPaidPost(id uint) (*models.PaidPost, error)
	SavePaidPost(post *models.PaidPost) error
	GetAdminByUsername(username string) (*models.Admin, error)
	ListAdmins() ([]models.Admin, error)
	SaveAdmin(admin *models.Admin) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a review queue repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ListPaidPosts(q ListQuery) ([]models.PaidPost, int64, error) {
	tx := r.db.Model(&models.PaidPost{})

	if q.Status != "" && q.Status != "all" {
		tx = tx.Where("tweet_status = ?", q.Status)
	}
	if q.Search != "" {
		like := "%" + q.Search + "%"
		if q.SearchType == "email" {
			tx = tx.Where("email LIKE ?", like)
		} else {
			tx = tx.Where("message_text LIKE ?", like)
		}
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []models.PaidPost
	err := tx.Order("created_at DESC").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&posts).Error
	return posts, total, err
}

func (r *gormRepository) GetPaidPost(id uint) (*models.PaidPost, error) {
	var post models.PaidPost
	if err := r.db.First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *gormRepository) SavePaidPost(post *models.PaidPost) error {
	return r.db.Save(post).Error
}

func (r *gormRepository) GetAdminByUsername(username string) (*models.Admin, error) {
	var admin models.Admin
	if err := r.db.Where("username = ?", username).First(&admin).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *gormRepository) ListAdmins() ([]models.Admin, error) {
	var admins []models.Admin
	err := r.db.Find(&admins).Error
	return admins, err
}

func (r *gormRepository) SaveAdmin(admin *models.Admin) error {
	return r.db.Save(admin).Error
}

package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/itbfess/ITBFess/app/models"
	"github.com/itbfess/ITBFess/internal/pkg/database"
)

type setAliasRequest struct {
	Email string `json:"email" validate:"required,email"`
	Alias string `json:"alias" validate:"required,min=2,max=50"`
}

// PUT /api/profile/alias – set the sender's display alias. Immutable once
// customized.
func HandleSetAlias(c *fiber.Ctx) error {
	var req setAliasRequest
	if err := parseAndValidate(c, &req); err != nil {
		return badRequest(c, "email and alias are required")
	}

	db := database.GetDB()
	email := strings.ToLower(strings.TrimSpace(req.Email))
	var profile models.UserProfile
	if err := db.Where("email = ?", email).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "not_found",
				"message": "verify your email first",
			})
		}
		return serverError(c, "could not load profile")
	}

	if err := profile.SetAlias(req.Alias); err != nil {
		if errors.Is(err, models.ErrAliasAlreadySet) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   "alias_set",
				"message": "alias can only be chosen once",
			})
		}
		return badRequest(c, err.Error())
	}
	if err := db.Save(&profile).Error; err != nil {
		return serverError(c, "could not save alias")
	}

	return c.JSON(fiber.Map{"alias": profile.Alias})
}

// GET /api/leaderboard – top senders by lifetime message count, opted-in only.
func HandleLeaderboard(c *fiber.Ctx) error {
	db := database.GetDB()
	var profiles []models.UserProfile
	if err := db.Where("show_in_leaderboard = ? AND message_count > 0", true).
		Order("message_count DESC").
		Limit(20).
		Find(&profiles).Error; err != nil {
		return serverError(c, "could not load leaderboard")
	}

	entries := make([]fiber.Map, 0, len(profiles))
	for _, p := range profiles {
		entries = append(entries, fiber.Map{
			"alias":         p.Alias,
			"message_count": p.MessageCount,
		})
	}
	return c.JSON(fiber.Map{"leaderboard": entries})
}

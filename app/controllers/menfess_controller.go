package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/itbfess/ITBFess/app/models"
	"github.com/itbfess/ITBFess/internal/pkg/database"
	"github.com/itbfess/ITBFess/internal/pkg/metrics"
	"github.com/itbfess/ITBFess/internal/pkg/quota"
)

type submitMenfessRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required"`
}

// POST /api/menfess – submit a regular (free-tier) menfess.
// The sender must have a verified profile; admission runs the content,
// personal and global gates before anything is posted.
func HandleSubmitMenfess(c *fiber.Ctx) error {
	var req submitMenfessRequest
	if err := parseAndValidate(c, &req); err != nil {
		return badRequest(c, "email and message are required")
	}

	db := database.GetDB()
	var profile models.UserProfile
	if err := db.Where("email = ?", req.Email).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "unverified",
				"message": "verify your email before sending",
			})
		}
		return serverError(c, "could not load sender profile")
	}

	result, err := deps.Ledger.CheckAdmission(req.Email, req.Message)
	if err != nil {
		return serverError(c, "admission check failed")
	}
	if !result.Admit {
		metrics.Get().AdmissionsDenied.WithLabelValues(result.Reason).Inc()
		return c.Status(fiber.StatusTooManyRequests).JSON(result)
	}

	// The check above is advisory; the reservation is the authoritative gate.
	reserved, err := deps.Ledger.ReserveSlot()
	if err != nil {
		return serverError(c, "could not reserve quota slot")
	}
	if !reserved {
		metrics.Get().AdmissionsDenied.WithLabelValues(quota.ReasonGlobalLimitExceeded).Inc()
		return c.Status(fiber.StatusTooManyRequests).JSON(quota.AdmissionResult{
			Admit:  false,
			Reason: quota.ReasonGlobalLimitExceeded,
		})
	}

	posted, err := deps.Poster.Post(req.Message, "")
	if err != nil {
		logrus.Errorf("menfess: posting failed: %v", err)
		return serverError(c, "posting failed, please try again later")
	}

	if err := deps.Ledger.RecordSend(req.Email, req.Message, posted.ID, posted.URL); err != nil {
		// The message is already public; log the bookkeeping failure.
		logrus.Errorf("menfess: recording send failed: %v", err)
	}
	metrics.Get().AdmissionsAccepted.Inc()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"admit":     true,
		"tweet_url": posted.URL,
	})
}

// GET /api/menfess/status – advisory remaining quota for client display.
func HandleQuotaStatus(c *fiber.Ctx) error {
	status, err := deps.Ledger.Status()
	if err != nil {
		return serverError(c, "could not read quota")
	}
	return c.JSON(status)
}

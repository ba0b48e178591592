package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/itbfess/ITBFess/app/models"
	"github.com/itbfess/ITBFess/internal/pkg/database"
	"github.com/itbfess/ITBFess/internal/pkg/env"
	"github.com/itbfess/ITBFess/internal/pkg/middleware"
	"github.com/itbfess/ITBFess/internal/pkg/reviewqueue"
	"github.com/itbfess/ITBFess/internal/pkg/security"
)

type adminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /api/admin/login – issue the admin bearer token.
func HandleAdminLogin(c *fiber.Ctx) error {
	var req adminLoginRequest
	if err := parseAndValidate(c, &req); err != nil {
		return badRequest(c, "username and password are required")
	}

	db := database.GetDB()
	var admin models.Admin
	if err := db.Where("username = ?", req.Username).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return unauthorizedLogin(c)
		}
		return serverError(c, "login failed")
	}
	if !admin.CheckPassword(req.Password) {
		return unauthorizedLogin(c)
	}

	token, err := security.GenerateAdminToken(admin.Username, admin.Name, env.GetEnv("ADMIN_TOKEN_SECRET", ""))
	if err != nil {
		return serverError(c, "could not issue token")
	}

	now := time.Now()
	admin.LastLoginAt = &now
	db.Save(&admin)

	return c.JSON(fiber.Map{"token": token, "name": admin.Name})
}

func unauthorizedLogin(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "unauthorized",
		"message": "invalid credentials",
	})
}

// GET /api/admin/queue – paginated, searchable pending-post listing.
func HandleAdminQueue(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(reviewqueue.DefaultPageSize)))

	listing, err := deps.Queue.List(reviewqueue.ListQuery{
		Page:       page,
		Limit:      limit,
		Search:     c.Query("search"),
		SearchType: c.Query("search_type", "message"),
		Status:     c.Query("status", "pending"),
	})
	if err != nil {
		return serverError(c, "could not list queue")
	}
	return c.JSON(listing)
}

type setStatusRequest struct {
	Status   string `json:"status" validate:"required,oneof=posted rejected"`
	TweetURL string `json:"tweet_url,omitempty"`
}

// PUT /api/admin/queue/:id/status – manual approve/reject/post transition.
func HandleSetPostStatus(c *fiber.Ctx) error {
	postID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return badRequest(c, "invalid post id")
	}

	var req setStatusRequest
	if err := parseAndValidate(c, &req); err != nil {
		return badRequest(c, "status must be posted or rejected")
	}

	adminUsername, _ := c.Locals(middleware.KeyAdminUsername).(string)
	post, err := deps.Queue.SetStatus(uint(postID), req.Status, req.TweetURL, adminUsername)
	if err != nil {
		switch {
		case errors.Is(err, reviewqueue.ErrNotPending),
			errors.Is(err, reviewqueue.ErrTweetURLMissing),
			errors.Is(err, reviewqueue.ErrBadStatus):
			return badRequest(c, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "not_found",
				"message": "no such post",
			})
		default:
			return serverError(c, err.Error())
		}
	}
	return c.JSON(post)
}

type batchStatusRequest struct {
	Changes []reviewqueue.StatusChange `json:"changes" validate:"required,min=1,dive"`
}

// POST /api/admin/queue/batch – apply N independent status changes and
// return the per-item outcome list.
func HandleBatchStatus(c *fiber.Ctx) error {
	var req batchStatusRequest
	if err := parseAndValidate(c, &req); err != nil {
		return badRequest(c, "changes are required")
	}

	adminUsername, _ := c.Locals(middleware.KeyAdminUsername).(string)
	outcomes := deps.Queue.BatchSetStatus(req.Changes, adminUsername)

	succeeded := 0
	for _, o := range outcomes {
		if o.OK {
			succeeded++
		}
	}
	return c.JSON(fiber.Map{
		"succeeded": succeeded,
		"failed":    len(outcomes) - succeeded,
		"outcomes":  outcomes,
	})
}

// POST /api/admin/queue/:id/notify – mail the submitter of one posted item.
func HandleNotify(c *fiber.Ctx) error {
	postID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return badRequest(c, "invalid post id")
	}

	if err := deps.Queue.Notify(uint(postID)); err != nil {
		switch {
		case errors.Is(err, reviewqueue.ErrAlreadyNotified),
			errors.Is(err, reviewqueue.ErrNotPosted):
			return badRequest(c, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "not_found",
				"message": "no such post",
			})
		default:
			return serverError(c, err.Error())
		}
	}
	return c.JSON(fiber.Map{"notified": true})
}

type notifyBatchRequest struct {
	PostIDs []uint `json:"post_ids" validate:"required,min=1"`
}

// POST /api/admin/queue/notify – best-effort notification loop over a batch.
func HandleNotifyBatch(c *fiber.Ctx) error {
	var req notifyBatchRequest
	if err := parseAndValidate(c, &req); err != nil {
		return badRequest(c, "post_ids are required")
	}

	outcomes := deps.Queue.NotifyBatch(req.PostIDs)
	succeeded := 0
	for _, o := range outcomes {
		if o.OK {
			succeeded++
		}
	}
	return c.JSON(fiber.Map{
		"succeeded": succeeded,
		"failed":    len(outcomes) - succeeded,
		"outcomes":  outcomes,
	})
}

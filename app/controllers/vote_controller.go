package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/itbfess/ITBFess/internal/pkg/moderation"
)

type submitVoteRequest struct {
	Email      string `json:"email" validate:"required,email"`
	ContentURL string `json:"content_url" validate:"required,url"`
	Reason     string `json:"reason" validate:"required,min=5"`
}

// POST /api/votes – submit a deletion vote for posted content.
func HandleSubmitVote(c *fiber.Ctx) error {
	var req submitVoteRequest
	if err := parseAndValidate(c, &req); err != nil {
		return badRequest(c, "email, content_url and reason are required")
	}

	result, err := deps.Moderator.SubmitVote(req.Email, req.ContentURL, req.Reason)
	if err != nil {
		if errors.Is(err, moderation.ErrInvalidEmailDomain) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "invalid_domain",
				"message": "votes require an institutional email",
			})
		}
		if errors.Is(err, moderation.ErrDuplicateVote) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   "duplicate_vote",
				"message": "you already voted for this content",
			})
		}
		return serverError(c, "could not store vote")
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// GET /api/votes/confirm – admin confirmation link from the quorum notice.
// Authorization is the keyed token carried in the link.
func HandleConfirmVotes(c *fiber.Ctx) error {
	contentURL := c.Query("url")
	token := c.Query("token")
	if contentURL == "" || token == "" {
		return badRequest(c, "url and token are required")
	}

	notified, err := deps.Moderator.ConfirmRemoval(contentURL, token)
	if err != nil {
		if errors.Is(err, moderation.ErrInvalidToken) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "invalid_token",
				"message": "confirmation token rejected",
			})
		}
		return serverError(c, "confirmation failed")
	}

	return c.JSON(fiber.Map{"confirmed": true, "voters_notified": notified})
}

package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/itbfess/ITBFess/internal/pkg/env"
	"github.com/itbfess/ITBFess/internal/pkg/payment"
	"github.com/itbfess/ITBFess/internal/pkg/quota"
)

type paidMenfessRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Message    string `json:"message" validate:"required"`
	Attachment string `json:"attachment,omitempty"`
}

// POST /api/payments – open a paid menfess invoice. Paid posts skip the
// daily caps but still honor the content gate.
func HandleCreatePaidMenfess(c *fiber.Ctx) error {
	var req paidMenfessRequest
	if err := parseAndValidate(c, &req); err != nil {
		return badRequest(c, "email and message are required")
	}
	if !quota.ContentValid(req.Message) {
		return badRequest(c, "message fails content validation")
	}

	amount, err := strconv.ParseInt(env.GetEnv("PAID_POST_PRICE", "10000"), 10, 64)
	if err != nil {
		amount = 10000
	}

	tx, err := deps.Payments.CreateInvoice(req.Email, req.Message, req.Attachment, amount)
	if err != nil {
		return serverError(c, "could not create payment, please retry or contact support")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"merchant_ref": tx.MerchantRef,
		"checkout_url": tx.CheckoutURL,
		"amount":       tx.Amount,
		"status":       tx.Status,
	})
}

// POST /api/payments/callback – inbound provider webhook. Signature is
// verified over the raw body before anything else.
func HandlePaymentCallback(c *fiber.Ctx) error {
	signature := c.Get("X-Callback-Signature")
	err := deps.Payments.HandleWebhook(c.Body(), signature)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "invalid_signature",
				"message": "callback signature verification failed",
			})
		}
		if errors.Is(err, payment.ErrUnknownReference) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "unknown_reference",
				"message": "no transaction for this merchant_ref",
			})
		}
		return serverError(c, "callback processing failed")
	}
	return c.JSON(fiber.Map{"success": true})
}

// GET /api/payments/:merchantRef – client-initiated polling; reconciles
// local state against the provider.
func HandlePaymentStatus(c *fiber.Ctx) error {
	merchantRef := c.Params("merchantRef")
	if merchantRef == "" {
		return badRequest(c, "merchant_ref missing")
	}

	tx, err := deps.Payments.Reconcile(merchantRef)
	if err != nil {
		if errors.Is(err, payment.ErrUnknownReference) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "unknown_reference",
				"message": "no transaction for this merchant_ref",
			})
		}
		return serverError(c, "could not check payment status")
	}

	return c.JSON(fiber.Map{
		"merchant_ref": tx.MerchantRef,
		"status":       tx.Status,
		"paid_at":      tx.PaidAt,
	})
}

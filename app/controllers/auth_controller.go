package controllers

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/itbfess/ITBFess/app/models"
	"github.com/itbfess/ITBFess/internal/pkg/cache"
	"github.com/itbfess/ITBFess/internal/pkg/database"
	"github.com/itbfess/ITBFess/internal/pkg/env"
	"github.com/itbfess/ITBFess/internal/pkg/metrics"
)

const otpTTL = 5 * time.Minute

type otpRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/otp/request – mail a one-time code to an institutional address.
func HandleRequestOTP(c *fiber.Ctx) error {
	var req otpRequest
	if err := parseAndValidate(c, &req); err != nil {
		return badRequest(c, "a valid email is required")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	suffix := strings.ToLower(env.GetEnv("INSTITUTION_EMAIL_SUFFIX", "@mahasiswa.itb.ac.id"))
	if !env.IsDev() && !strings.HasSuffix(email, suffix) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "invalid_domain",
			"message": "use your institutional email",
		})
	}

	code, err := generateOTP()
	if err != nil {
		return serverError(c, "could not generate code")
	}
	if err := cache.Set("otp:"+email, code, otpTTL); err != nil {
		return serverError(c, "could not store code")
	}

	body := fmt.Sprintf("<p>Your verification code is:</p><h2>%s</h2><p>It expires in 5 minutes.</p>", code)
	if err := deps.Mailer.Send(email, "Your ITBFess verification code", body); err != nil {
		metrics.Get().MailsFailed.Inc()
		return serverError(c, "could not send code")
	}
	metrics.Get().MailsSent.Inc()

	return c.JSON(fiber.Map{"sent": true})
}

type otpVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6"`
}

// POST /api/otp/verify – verify the code; creates the sender profile on
// first verification. The code is single-use.
func HandleVerifyOTP(c *fiber.Ctx) error {
	var req otpVerifyRequest
	if err := parseAndValidate(c, &req); err != nil {
		return badRequest(c, "email and 6-digit code are required")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	stored, err := cache.Get("otp:" + email)
	if err != nil || stored != req.Code {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "invalid_code",
			"message": "code is wrong or expired",
		})
	}
	if err := cache.Delete("otp:" + email); err != nil {
		logrus.Warnf("auth: could not invalidate otp for %s: %v", email, err)
	}

	profile, err := models.GetOrCreateUserProfile(database.GetDB(), email)
	if err != nil {
		return serverError(c, "could not create profile")
	}

	return c.JSON(fiber.Map{"verified": true, "alias": profile.Alias})
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

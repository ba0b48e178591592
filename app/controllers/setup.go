package controllers

import (
	"github.com/go-playground/validator/v10"

	"github.com/itbfess/ITBFess/internal/pkg/mail"
	"github.com/itbfess/ITBFess/internal/pkg/moderation"
	"github.com/itbfess/ITBFess/internal/pkg/payment"
	"github.com/itbfess/ITBFess/internal/pkg/quota"
	"github.com/itbfess/ITBFess/internal/pkg/reviewqueue"
	"github.com/itbfess/ITBFess/internal/pkg/twitter"
)

// Deps are the services the handlers delegate to. Wired once at boot.
type Deps struct {
	Ledger    *quota.Ledger
	Moderator *moderation.Service
	Payments  *payment.Service
	Queue     *reviewqueue.Service
	Poster    twitter.Poster
	Mailer    mail.Mailer
}

var deps Deps

var validate = validator.New()

// Setup injects the service dependencies for all handlers.
func Setup(d Deps) {
	deps = d
}

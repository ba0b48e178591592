package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/itbfess/ITBFess/app/controllers"
	"github.com/itbfess/ITBFess/app/models"
	"github.com/itbfess/ITBFess/internal/pkg/cache"
	"github.com/itbfess/ITBFess/internal/pkg/database"
	"github.com/itbfess/ITBFess/internal/pkg/env"
	"github.com/itbfess/ITBFess/internal/pkg/mail"
	"github.com/itbfess/ITBFess/internal/pkg/moderation"
	"github.com/itbfess/ITBFess/internal/pkg/payment"
	"github.com/itbfess/ITBFess/internal/pkg/quota"
	"github.com/itbfess/ITBFess/internal/pkg/reviewqueue"
	"github.com/itbfess/ITBFess/internal/pkg/router"
	"github.com/itbfess/ITBFess/internal/pkg/scheduler"
	"github.com/itbfess/ITBFess/internal/pkg/twitter"
)

func main() {
	app, jobs := NewApplication()
	if err := jobs.Start(); err != nil {
		logrus.Fatalf("starting scheduler: %v", err)
	}
	defer jobs.Stop()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	logrus.Fatal(err)
}

func NewApplication() (*fiber.App, *scheduler.Scheduler) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	seedAdmin(db)

	mailer := mail.NewSMTPMailer()
	poster := twitter.NewClient(
		env.GetEnv("TWITTER_API_URL", "https://api.twitter.com"),
		env.GetEnv("TWITTER_BEARER_TOKEN", ""),
		env.GetEnv("TWITTER_ACCOUNT_NAME", "itbfess"),
	)
	provider := payment.NewHTTPProvider(
		env.GetEnv("PAYMENT_API_URL", "https://tripay.co.id/api"),
		env.GetEnv("PAYMENT_API_KEY", ""),
		env.GetEnv("PAYMENT_PRIVATE_KEY", ""),
		env.GetEnv("PAYMENT_MERCHANT_CODE", ""),
	)

	ledger := quota.NewLedgerFromDB(db)
	payments := payment.NewServiceFromDB(db, provider, env.GetEnv("PAYMENT_PRIVATE_KEY", ""))
	moderator := moderation.NewServiceFromDB(db, mailer, moderation.Config{
		EmailSuffix:   env.GetEnv("INSTITUTION_EMAIL_SUFFIX", "@mahasiswa.itb.ac.id"),
		Whitelist:     splitList(env.GetEnv("VOTE_EMAIL_WHITELIST", "")),
		AdminEmail:    env.GetEnv("MODERATION_ADMIN_EMAIL", ""),
		BaseURL:       env.GetEnv("APP_BASE_URL", "http://localhost:4000"),
		ConfirmSecret: env.GetEnv("CONFIRM_TOKEN_SECRET", ""),
		DevMode:       env.IsDev(),
	})
	queue := reviewqueue.NewServiceFromDB(db, reviewqueue.NewRedisCache(), mailer)

	controllers.Setup(controllers.Deps{
		Ledger:    ledger,
		Moderator: moderator,
		Payments:  payments,
		Queue:     queue,
		Poster:    poster,
		Mailer:    mailer,
	})

	app := fiber.New(fiber.Config{
		AppName: "ITBFess",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// prometheus metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), adaptor.HTTPHandler(promhttp.Handler()))

	// SWAGGER / OPENAPI
	docsFile := env.GetEnv("OPENAPI_FILE", "./public/docs/v1/openapi.yml")
	if err := validateOpenAPIDoc(docsFile); err != nil {
		logrus.Warnf("api docs disabled: %v", err)
	} else {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: docsFile,
			Path:     "v1",
		}))
	}

	router.InstallRouter(app)

	return app, scheduler.New(ledger, payments)
}

// validateOpenAPIDoc loads and validates the served API document so a broken
// file is caught at boot instead of by an integrator.
func validateOpenAPIDoc(path string) error {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return err
	}
	return doc.Validate(loader.Context)
}

// seedAdmin creates the bootstrap admin account on an empty install.
func seedAdmin(db *gorm.DB) {
	username := env.GetEnv("ADMIN_USERNAME", "")
	password := env.GetEnv("ADMIN_PASSWORD", "")
	if username == "" || password == "" {
		return
	}

	var existing models.Admin
	err := db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.Warnf("admin seed lookup failed: %v", err)
		return
	}

	admin, err := models.CreateAdmin(username, env.GetEnv("ADMIN_NAME", username), password)
	if err != nil {
		logrus.Warnf("admin seed failed: %v", err)
		return
	}
	if err := db.Create(admin).Error; err != nil {
		logrus.Warnf("admin seed failed: %v", err)
		return
	}
	logrus.Infof("seeded admin account %q", username)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Command folio runs the subscription storefront: hosted checkout, Stripe
// webhook projection, and subscription lifecycle commands over HTTP.
package main

import (
	"context"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/foliopress/folio/modules/storefront"
	"github.com/foliopress/folio/pkg/config"
	"github.com/foliopress/folio/pkg/email"
	"github.com/foliopress/folio/pkg/httpserver"
	"github.com/foliopress/folio/pkg/lock"
	"github.com/foliopress/folio/pkg/logger"
	"github.com/foliopress/folio/pkg/pg"
	folioredis "github.com/foliopress/folio/pkg/redis"
	"github.com/foliopress/folio/pkg/subscription"
)

type appConfig struct {
	Environment  string `env:"ENVIRONMENT" envDefault:"development"`
	ClaimBaseURL string `env:"CLAIM_BASE_URL,required"`
	DevMailDir   string `env:"DEV_MAIL_DIR" envDefault:"./tmp/mail"`
}

func main() {
	var (
		appCfg    appConfig
		pgCfg     pg.Config
		redisCfg  folioredis.Config
		emailCfg  email.Config
		stripeCfg subscription.StripeConfig
		authCfg   subscription.AuthConfig
		httpCfg   httpserver.Config
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&pgCfg)
	config.MustLoad(&redisCfg)
	config.MustLoad(&emailCfg)
	config.MustLoad(&stripeCfg)
	config.MustLoad(&authCfg)
	config.MustLoad(&httpCfg)

	log := logger.New(logger.WithEnvironment(appCfg.Environment, "folio"))
	logger.SetAsDefault(log)

	ctx := context.Background()

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		log.Error("postgres connection failed", logger.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		log.Error("migrations failed", logger.Error(err))
		os.Exit(1)
	}

	redisClient, err := folioredis.Connect(ctx, redisCfg)
	if err != nil {
		log.Error("redis connection failed", logger.Error(err))
		os.Exit(1)
	}
	defer redisClient.Close() //nolint:errcheck

	var sender email.Sender
	if appCfg.Environment == "production" {
		sender = email.MustNewPostmarkClient(emailCfg)
	} else {
		sender = email.NewDevSender(appCfg.DevMailDir)
	}

	gateway, err := subscription.NewStripeGateway(stripeCfg)
	if err != nil {
		log.Error("stripe gateway init failed", logger.Error(err))
		os.Exit(1)
	}

	provisioner, err := subscription.NewAuthProvisioner(authCfg)
	if err != nil {
		log.Error("auth provisioner init failed", logger.Error(err))
		os.Exit(1)
	}

	store := subscription.NewPGStore(pool)

	resolver := subscription.NewResolver(store, provisioner,
		subscription.NewEmailNotifier(sender),
		subscription.WithResolverLogger(log),
		subscription.WithClaimBaseURL(appCfg.ClaimBaseURL),
	)

	svc := subscription.NewService(store, store, store, store, gateway, resolver,
		subscription.WithLogger(log),
		subscription.WithProcessedEventStore(subscription.NewRedisEventStore(redisClient)),
		subscription.WithLocker(lock.NewRedisLocker(redisClient, "folio:sub")),
		subscription.WithLockTTL(30*time.Second),
	)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Mount("/store", storefront.Router(svc, gateway,
		storefront.WithLogger(log),
		storefront.WithHealthcheck("postgres", pg.Healthcheck(pool)),
		storefront.WithHealthcheck("redis", folioredis.Healthcheck(redisClient)),
	))

	srv := httpserver.New(httpCfg, httpserver.WithLogger(log))
	if err := srv.Run(ctx, r); err != nil {
		log.Error("server stopped", logger.Error(err))
		os.Exit(1)
	}
}

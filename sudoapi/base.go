package sudoapi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FundProjects/fundnova"
	"github.com/FundProjects/fundnova/db"
	"github.com/FundProjects/fundnova/email"
	"github.com/FundProjects/fundnova/gateway"
	"github.com/FundProjects/fundnova/internal/config"
	"github.com/FundProjects/fundnova/sudoapi/flags"
	"github.com/Yiling-J/theine-go"
)

// BaseAPI is the service layer: every intake path (API handlers, webhooks,
// background jobs) goes through it, never straight to the store.
type BaseAPI struct {
	db     fundnova.DB
	mailer fundnova.Mailer

	gateway gateway.Adapter

	campaignCache *theine.LoadingCache[int, *fundnova.Campaign]

	eventChan chan *fundnova.Event
}

func (s *BaseAPI) Start(ctx context.Context) {
	go s.ingestEvents(ctx)
	go s.billingJob(ctx, 24*time.Hour)
	go s.expiryJob(ctx, 1*time.Hour)
}

func (s *BaseAPI) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("couldn't close DB: %w", err)
	}
	return nil
}

func GetBaseAPI(ctx context.Context, db fundnova.DB, mailer fundnova.Mailer, gw gateway.Adapter) (*BaseAPI, error) {
	base := &BaseAPI{
		db:     db,
		mailer: mailer,

		gateway: gw,

		eventChan: make(chan *fundnova.Event, 64),
	}
	campaignCache, err := theine.NewBuilder[int, *fundnova.Campaign](500).BuildWithLoader(func(ctx context.Context, id int) (theine.Loaded[*fundnova.Campaign], error) {
		campaign, err := base.db.Campaign(ctx, id)
		if err != nil {
			return theine.Loaded[*fundnova.Campaign]{}, err
		}
		return theine.Loaded[*fundnova.Campaign]{
			Value: campaign,
			Cost:  1,
			TTL:   10 * time.Second,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not build campaign cache: %w", err)
	}
	base.campaignCache = campaignCache

	return base, nil
}

func InitializeBaseAPI(ctx context.Context) (*BaseAPI, error) {
	var fnMailer fundnova.Mailer
	if config.Email.Enabled {
		mailer, err := email.NewMailer()
		if err != nil {
			slog.WarnContext(ctx, "Couldn't initialize mailer. Make sure you entered the correct information", slog.Any("err", err))
		}
		fnMailer = mailer
	}

	dbClient, err := db.NewPSQL(ctx, config.Common.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("couldn't connect to DB: %w", err)
	}
	slog.InfoContext(ctx, "Connected to DB")

	if flags.MigrateOnStart.Value() {
		if err := dbClient.RunMigrations(ctx); err != nil {
			return nil, fmt.Errorf("couldn't run migrations: %w", err)
		}
	}

	var gw gateway.Adapter
	if config.Payment.Endpoint == "" {
		slog.WarnContext(ctx, "No payment endpoint configured, using in-memory fake gateway")
		gw = gateway.NewFake()
	} else {
		timeout := time.Duration(config.Payment.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		gw = gateway.NewClient(config.Payment.Provider, config.Payment.Endpoint, config.Payment.APIKey, timeout)
	}

	return GetBaseAPI(ctx, dbClient, fnMailer, gw)
}

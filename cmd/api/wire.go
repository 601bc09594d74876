package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hotmess/hotmess-backend/api/routes"
	"github.com/hotmess/hotmess-backend/internal/catalog"
	"github.com/hotmess/hotmess-backend/internal/checkout"
	"github.com/hotmess/hotmess-backend/internal/connect"
	"github.com/hotmess/hotmess-backend/internal/escrow"
	"github.com/hotmess/hotmess-backend/internal/ledger"
	"github.com/hotmess/hotmess-backend/internal/notifications"
	"github.com/hotmess/hotmess-backend/internal/pickups"
	"github.com/hotmess/hotmess-backend/internal/purchases"
	"github.com/hotmess/hotmess-backend/internal/settlement"
	stripewebhook "github.com/hotmess/hotmess-backend/internal/webhooks/stripe"
	"github.com/hotmess/hotmess-backend/pkg/config"
	"github.com/hotmess/hotmess-backend/pkg/db"
	"github.com/hotmess/hotmess-backend/pkg/logger"
	"github.com/hotmess/hotmess-backend/pkg/metrics"
	"github.com/hotmess/hotmess-backend/pkg/outbox"
	"github.com/hotmess/hotmess-backend/pkg/redis"
	pkgstripe "github.com/hotmess/hotmess-backend/pkg/stripe"
)

// buildDependencies wires repositories and services for the HTTP surface.
// stripeClient may be nil; checkout and onboarding then fail closed.
func buildDependencies(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	stripeClient *pkgstripe.Client,
	reg prometheus.Registerer,
) (routes.Dependencies, error) {
	conn := dbClient.DB()

	platformAccount, err := uuid.Parse(cfg.Settlement.PlatformAccountID)
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("parse %s: %w", config.EnvPlatformAccountID, err)
	}

	settlementMetrics := metrics.NewSettlementMetrics(reg)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	purchaseRepo := purchases.NewRepository(conn)
	catalogRepo := catalog.NewRepository(conn)
	orderRepo := escrow.NewRepository(conn)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return routes.Dependencies{}, err
	}
	notificationsSvc, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		return routes.Dependencies{}, err
	}

	releaser, err := escrow.NewReleaser(escrow.ReleaserParams{
		Orders:            orderRepo,
		Purchases:         purchaseRepo,
		Ledger:            ledgerSvc,
		Notifications:     notificationsSvc,
		Outbox:            outboxSvc,
		FeeRate:           cfg.Settlement.FeeRate(),
		PlatformAccountID: platformAccount,
		Logger:            logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	escrowSvc, err := escrow.NewService(escrow.ServiceParams{
		TransactionRunner: dbClient,
		Releaser:          releaser,
		Metrics:           settlementMetrics,
		Logger:            logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	pickupSvc, err := pickups.NewService(pickups.ServiceParams{
		TransactionRunner: dbClient,
		Beacons:           pickups.NewRepository(conn),
		Orders:            orderRepo,
		Releaser:          releaser,
		Ledger:            ledgerSvc,
		Outbox:            outboxSvc,
		RadiusMeters:      cfg.Settlement.PickupRadiusMeters,
		BeaconTTL:         cfg.Settlement.BeaconTTL,
		Metrics:           settlementMetrics,
		Logger:            logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	applier, err := settlement.NewApplier(settlement.ApplierParams{
		TransactionRunner: dbClient,
		Purchases:         purchaseRepo,
		Catalog:           catalogRepo,
		Orders:            orderRepo,
		Notifications:     notificationsSvc,
		Outbox:            outboxSvc,
		XPPerMinorUnit:    cfg.Settlement.XPPerMinorUnit,
		Metrics:           settlementMetrics,
		Logger:            logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	connectParams := connect.ServiceParams{
		TransactionRunner: dbClient,
		Accounts:          connect.NewRepository(conn),
		Outbox:            outboxSvc,
		Logger:            logg,
	}
	checkoutParams := checkout.ServiceParams{
		TransactionRunner: dbClient,
		Purchases:         purchaseRepo,
		Logger:            logg,
	}
	if stripeClient != nil {
		connectParams.Stripe = stripeClient
		checkoutParams.Stripe = stripeClient
	}

	connectSvc, err := connect.NewService(connectParams)
	if err != nil {
		return routes.Dependencies{}, err
	}

	pricer, err := checkout.NewPricer(catalogRepo, cfg.Settlement.CreditPrice(), cfg.Settlement.CreditMaxPerPurchase, cfg.Settlement.DefaultCurrency)
	if err != nil {
		return routes.Dependencies{}, err
	}
	checkoutParams.Pricer = pricer
	checkoutSvc, err := checkout.NewService(checkoutParams)
	if err != nil {
		return routes.Dependencies{}, err
	}

	webhookParams := stripewebhook.ServiceParams{
		Applier: applier,
		Connect: connectSvc,
		Metrics: settlementMetrics,
		Logger:  logg,
	}
	if stripeClient != nil {
		livemode := stripeClient.Livemode()
		webhookParams.Livemode = &livemode
	}
	webhookSvc, err := stripewebhook.NewService(webhookParams)
	if err != nil {
		return routes.Dependencies{}, err
	}

	deps := routes.Dependencies{
		DB:            dbClient,
		Redis:         redisClient,
		Checkout:      checkoutSvc,
		StripeWebhook: webhookSvc,
		Escrow:        escrowSvc,
		Pickups:       pickupSvc,
		Connect:       connectSvc,
		Ledger:        ledgerSvc,
		Notifications: notificationsSvc,
	}

	if redisClient != nil {
		guard, err := stripewebhook.NewReceiptGuard(redisClient, cfg.Eventing.WebhookReceiptTTL)
		if err != nil {
			return routes.Dependencies{}, err
		}
		deps.ReceiptGuard = guard
	} else {
		logg.Warn(ctx, "redis unavailable; webhook receipt guard and idempotency keys disabled")
	}

	return deps, nil
}

package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/hotmess/hotmess-backend/pkg/config"
	"github.com/hotmess/hotmess-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errNotConfigured    = errors.New("stripe client not configured")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// keyPrefixes lists the secret and restricted key prefixes accepted per env.
var keyPrefixes = map[string][]string{
	testEnv: {"sk_test_", "rk_test_"},
	liveEnv: {"sk_live_", "rk_live_"},
}

// Client issues Checkout and Connect calls for one Stripe environment.
type Client struct {
	api         *stripe.Client
	environment string
	cfg         config.StripeConfig
}

// NewClient refuses a key that belongs to the other environment so test
// deployments can never move live money.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, errInvalidStripeEnv
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if !hasAnyPrefix(apiKey, prefixes) {
		return nil, fmt.Errorf("stripe environment %q requires a key starting with one of %v", env, prefixes)
	}

	if logg != nil {
		ctx = logg.WithField(ctx, "stripe_env", env)
		if strings.TrimSpace(cfg.Secret) == "" {
			logg.Warn(ctx, "stripe webhook secret not configured; webhooks will be rejected")
		}
		logg.Info(ctx, "stripe client initialized")
	}

	return &Client{
		api:         stripe.NewClient(apiKey),
		environment: env,
		cfg:         cfg,
	}, nil
}

// Environment reports "test" or "live".
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// Livemode reports whether events from this account should carry livemode=true.
func (c *Client) Livemode() bool {
	return c.Environment() == liveEnv
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

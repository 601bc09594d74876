package stripe

import (
	"context"

	"github.com/stripe/stripe-go/v84"
)

// MetadataSellerID ties a Connect account back to the seller it was created for.
const MetadataSellerID = "seller_id"

// CreateExpressAccount creates a Connect Express account for sellerID.
func (c *Client) CreateExpressAccount(ctx context.Context, sellerID, email, idempotencyKey string) (string, error) {
	if c == nil {
		return "", errNotConfigured
	}
	params := &stripe.AccountCreateParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Country: stripe.String(c.cfg.ConnectCountry),
		Capabilities: &stripe.AccountCreateCapabilitiesParams{
			CardPayments: &stripe.AccountCreateCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCreateCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	params.AddMetadata(MetadataSellerID, sellerID)
	if email != "" {
		params.Email = stripe.String(email)
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	acct, err := c.api.V1Accounts.Create(ctx, params)
	if err != nil {
		return "", err
	}
	return acct.ID, nil
}

// CreateOnboardingLink returns a hosted onboarding URL for accountID.
func (c *Client) CreateOnboardingLink(ctx context.Context, accountID string) (string, error) {
	if c == nil {
		return "", errNotConfigured
	}
	params := &stripe.AccountLinkCreateParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(c.cfg.ConnectRefreshURL),
		ReturnURL:  stripe.String(c.cfg.ConnectReturnURL),
		Type:       stripe.String("account_onboarding"),
	}

	link, err := c.api.V1AccountLinks.Create(ctx, params)
	if err != nil {
		return "", err
	}
	return link.URL, nil
}

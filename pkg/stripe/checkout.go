package stripe

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v84"
)

// Metadata keys attached to checkout sessions and their payment intents. The
// webhook path resolves purchases from these.
const (
	MetadataPurchaseType = "purchase_type"
	MetadataReferenceID  = "reference_id"
	MetadataPurchaseID   = "purchase_id"
)

// CheckoutSessionInput describes a single-line-item payment session.
type CheckoutSessionInput struct {
	PurchaseID     string
	PurchaseType   string
	ReferenceID    string
	CustomerEmail  string
	ProductName    string
	AmountCents    int64
	Currency       string
	IdempotencyKey string
}

// CheckoutSession is the subset of the provider session the API returns.
type CheckoutSession struct {
	ID  string
	URL string
}

// CreateCheckoutSession opens a payment-mode Checkout Session.
func (c *Client) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error) {
	if c == nil {
		return nil, errNotConfigured
	}
	metadata := map[string]string{
		MetadataPurchaseType: in.PurchaseType,
		MetadataReferenceID:  in.ReferenceID,
		MetadataPurchaseID:   in.PurchaseID,
	}
	params := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(c.cfg.SuccessURL),
		CancelURL:         stripe.String(c.cfg.CancelURL),
		CustomerEmail:     stripe.String(in.CustomerEmail),
		ClientReferenceID: stripe.String(in.PurchaseID),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(in.Currency)),
					UnitAmount: stripe.Int64(in.AmountCents),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(in.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	sess, err := c.api.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ExpireCheckoutSession closes an open session so it can no longer be paid.
func (c *Client) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	if c == nil {
		return errNotConfigured
	}
	_, err := c.api.V1CheckoutSessions.Expire(ctx, sessionID, &stripe.CheckoutSessionExpireParams{})
	return err
}

package enums

import "testing"

func TestParseRoundTripsCanonicalValues(t *testing.T) {
	if v, err := ParseEscrowStatus("completed"); err != nil || v != EscrowStatusCompleted {
		t.Fatalf("escrow status: %v %v", v, err)
	}
	if v, err := ParsePurchaseType("credits"); err != nil || v != PurchaseTypeCredits {
		t.Fatalf("purchase type: %v %v", v, err)
	}
	if v, err := ParseOutboxDLQErrorReason("max_attempts"); err != nil || v != OutboxDLQReasonMaxAttempts {
		t.Fatalf("dlq reason: %v %v", v, err)
	}
	if _, err := ParseOutboxEventType("order_created"); err == nil {
		t.Fatalf("expected unknown event type to fail")
	}
	if OutboxDLQErrorReason("other").IsValid() {
		t.Fatalf("unexpected valid dlq reason")
	}
}

func TestPurchaseStatusTerminal(t *testing.T) {
	for _, status := range []PurchaseStatus{PurchaseStatusCompleted, PurchaseStatusPaymentFailed} {
		if !status.IsTerminal() {
			t.Fatalf("%s should be terminal", status)
		}
	}
	for _, status := range []PurchaseStatus{PurchaseStatusPending, PurchaseStatusPaid, PurchaseStatusDelivered} {
		if status.IsTerminal() {
			t.Fatalf("%s should not be terminal", status)
		}
	}
}

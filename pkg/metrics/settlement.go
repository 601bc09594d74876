package metrics

import "github.com/prometheus/client_golang/prometheus"

// SettlementMetrics counts payment outcomes and escrow releases.
type SettlementMetrics struct {
	webhookEvents  *prometheus.CounterVec
	settlements    *prometheus.CounterVec
	releases       *prometheus.CounterVec
	releaseBlocked *prometheus.CounterVec
	releasedXP     prometheus.Counter
	platformFeeXP  prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on reg. A nil registerer
// yields a no-op recorder.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	m := &SettlementMetrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stripe_webhook_events_total",
			Help: "Verified Stripe webhook deliveries by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settlement applications by purchase type and result.",
		}, []string{"purchase_type", "result"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_releases_total",
			Help: "Completed escrow releases by method.",
		}, []string{"method"}),
		releaseBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_release_rejections_total",
			Help: "Rejected escrow release attempts by reason.",
		}, []string{"reason"}),
		releasedXP: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escrow_seller_released_xp_total",
			Help: "XP credited to sellers by escrow release.",
		}),
		platformFeeXP: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escrow_platform_fee_xp_total",
			Help: "XP retained as platform fee.",
		}),
	}
	reg.MustRegister(m.webhookEvents, m.settlements, m.releases, m.releaseBlocked, m.releasedXP, m.platformFeeXP)
	return m
}

func (m *SettlementMetrics) WebhookEvent(eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *SettlementMetrics) Settlement(purchaseType, result string) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(purchaseType), normalizeLabel(result)).Inc()
}

// Released records a completed release and its split.
func (m *SettlementMetrics) Released(method string, sellerXP, feeXP int64) {
	if m == nil || m.releases == nil {
		return
	}
	m.releases.WithLabelValues(normalizeLabel(method)).Inc()
	m.releasedXP.Add(float64(sellerXP))
	m.platformFeeXP.Add(float64(feeXP))
}

func (m *SettlementMetrics) ReleaseRejected(reason string) {
	if m == nil || m.releaseBlocked == nil {
		return
	}
	m.releaseBlocked.WithLabelValues(normalizeLabel(reason)).Inc()
}

package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotmess/hotmess-backend/internal/ledger"
	"github.com/hotmess/hotmess-backend/internal/notifications"
	"github.com/hotmess/hotmess-backend/pkg/db"
	"github.com/hotmess/hotmess-backend/pkg/db/dbtest"
	"github.com/hotmess/hotmess-backend/pkg/db/models"
	"github.com/hotmess/hotmess-backend/pkg/enums"
	"github.com/hotmess/hotmess-backend/pkg/logger"
	"github.com/hotmess/hotmess-backend/pkg/outbox"
)

type fakeExpirer struct {
	batches []int64
	calls   int
}

func (f *fakeExpirer) ExpireStale(context.Context, int) (int64, error) {
	if f.calls >= len(f.batches) {
		return 0, errors.New("unexpected call")
	}
	n := f.batches[f.calls]
	f.calls++
	return n, nil
}

func TestBeaconExpiryDrainsFullBatches(t *testing.T) {
	expirer := &fakeExpirer{batches: []int64{beaconExpiryBatch, 7}}
	job, err := NewBeaconExpiryJob(expirer)
	require.NoError(t, err)

	n, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, beaconExpiryBatch+7, n)
	assert.Equal(t, 2, expirer.calls)
}

type fakeDrift struct {
	rows []ledger.Drift
}

func (f fakeDrift) FindDrift(context.Context, int) ([]ledger.Drift, error) { return f.rows, nil }

func TestLedgerReconcileReportsDrift(t *testing.T) {
	job, err := NewLedgerReconcileJob(fakeDrift{rows: []ledger.Drift{
		{UserID: uuid.New(), Currency: enums.CurrencyXP, Balance: 900, LedgerSum: 800},
	}}, logger.New(logger.Options{ServiceName: "cron-test"}))
	require.NoError(t, err)

	n, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOutboxRetentionPrunesOldPublishedAndTerminalRows(t *testing.T) {
	conn := dbtest.Open(t)
	old := time.Now().UTC().Add(-60 * 24 * time.Hour)
	recent := time.Now().UTC().Add(-time.Hour)
	rows := []models.OutboxEvent{
		{ID: uuid.New(), EventType: enums.EventPurchasePaid, AggregateType: enums.AggregatePurchase, AggregateID: uuid.New(), Payload: []byte(`{}`), CreatedAt: old, PublishedAt: &old},
		{ID: uuid.New(), EventType: enums.EventPurchasePaid, AggregateType: enums.AggregatePurchase, AggregateID: uuid.New(), Payload: []byte(`{}`), CreatedAt: old, AttemptCount: 10},
		{ID: uuid.New(), EventType: enums.EventPurchasePaid, AggregateType: enums.AggregatePurchase, AggregateID: uuid.New(), Payload: []byte(`{}`), CreatedAt: old, AttemptCount: 2},
		{ID: uuid.New(), EventType: enums.EventPurchasePaid, AggregateType: enums.AggregatePurchase, AggregateID: uuid.New(), Payload: []byte(`{}`), CreatedAt: recent, PublishedAt: &recent},
	}
	for i := range rows {
		require.NoError(t, conn.Create(&rows[i]).Error)
	}

	job, err := NewOutboxRetentionJob(db.FromConn(conn), outbox.NewRepository(conn), 10)
	require.NoError(t, err)
	n, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var left int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&left).Error)
	assert.Equal(t, int64(2), left)
}

func TestNotificationCleanupKeepsUnread(t *testing.T) {
	conn := dbtest.Open(t)
	old := time.Now().UTC().Add(-120 * 24 * time.Hour)
	user := uuid.New()
	rows := []models.Notification{
		{ID: uuid.New(), UserID: user, Type: enums.NotificationTypeOrderPaid, Title: "read", Message: "m", ReadAt: &old, CreatedAt: old},
		{ID: uuid.New(), UserID: user, Type: enums.NotificationTypeOrderPaid, Title: "unread", Message: "m", CreatedAt: old},
	}
	for i := range rows {
		require.NoError(t, conn.Create(&rows[i]).Error)
	}

	job, err := NewNotificationCleanupJob(notifications.NewRepository(conn))
	require.NoError(t, err)
	n, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

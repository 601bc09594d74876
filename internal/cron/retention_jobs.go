package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	outboxRetention       = 30 * 24 * time.Hour
	notificationRetention = 90 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error)
}

type notificationPruner interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// pruneJob deletes rows older than a retention window.
type pruneJob struct {
	name      string
	retention time.Duration
	now       func() time.Time
	prune     func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (j *pruneJob) Name() string { return j.name }

func (j *pruneJob) Run(ctx context.Context) (int, error) {
	n, err := j.prune(ctx, j.now().UTC().Add(-j.retention))
	return int(n), err
}

// NewOutboxRetentionJob prunes published outbox rows and rows that exhausted
// maxAttempts.
func NewOutboxRetentionJob(db txRunner, repo outboxPruner, maxAttempts int) (Job, error) {
	if db == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if maxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive")
	}
	return &pruneJob{
		name:      "outbox-retention",
		retention: outboxRetention,
		now:       time.Now,
		prune: func(ctx context.Context, cutoff time.Time) (int64, error) {
			var deleted int64
			err := db.WithTx(ctx, func(tx *gorm.DB) error {
				n, err := repo.DeletePublishedBefore(tx.WithContext(ctx), cutoff, maxAttempts)
				deleted = n
				return err
			})
			return deleted, err
		},
	}, nil
}

// NewNotificationCleanupJob prunes notifications the user already read.
func NewNotificationCleanupJob(repo notificationPruner) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return &pruneJob{
		name:      "notification-cleanup",
		retention: notificationRetention,
		now:       time.Now,
		prune:     repo.DeleteReadBefore,
	}, nil
}

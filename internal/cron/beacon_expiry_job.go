package cron

import (
	"context"
	"fmt"
)

const beaconExpiryBatch = 500

type beaconExpirer interface {
	ExpireStale(ctx context.Context, limit int) (int64, error)
}

// NewBeaconExpiryJob marks active pickup beacons past expires_at as expired so
// sellers can register a fresh one.
func NewBeaconExpiryJob(beacons beaconExpirer) (Job, error) {
	if beacons == nil {
		return nil, fmt.Errorf("pickup service required")
	}
	return &beaconExpiryJob{beacons: beacons, batch: beaconExpiryBatch}, nil
}

type beaconExpiryJob struct {
	beacons beaconExpirer
	batch   int
}

func (j *beaconExpiryJob) Name() string { return "beacon-expiry" }

func (j *beaconExpiryJob) Run(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := j.beacons.ExpireStale(ctx, j.batch)
		total += int(n)
		if err != nil {
			return total, err
		}
		if n < int64(j.batch) {
			return total, nil
		}
	}
}

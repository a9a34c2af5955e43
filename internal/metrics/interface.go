package metrics

import (
	"context"
	"time"
)

// Collector is what the control loop reports to.
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Repository stores snapshots.
type Repository interface {
	Record(snapshot *Snapshot) error
	Recent(ctx context.Context, limit int) ([]Snapshot, error)
	Close() error
}

// Snapshot is one periodic report of the filter state.
type Snapshot struct {
	Timestamp   time.Time
	ClockMillis uint32
	Source      string
	Raw         uint16
	Filtered    uint16
	Attenuation uint8
}

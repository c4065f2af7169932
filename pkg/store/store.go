// Package store keeps passivated machine snapshots so that a machine can be
// activated again later, possibly by another driver instance.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/anggasct/hfsm"
)

// ErrNotFound is returned when no snapshot was saved for a machine
var ErrNotFound = errors.New("snapshot not found")

var errEmptyID = errors.New("machine id must not be empty")

// Record is one saved snapshot. Versions are ULIDs, so they sort in the
// order the snapshots were saved.
type Record[S comparable] struct {
	MachineID string
	Version   ulid.ULID
	SavedAt   time.Time
	Snapshot  hfsm.Snapshot[S]
}

// Store saves and loads snapshots by machine id
type Store[S comparable] interface {
	// Save stores a new snapshot version and returns it
	Save(ctx context.Context, machineID string, snap hfsm.Snapshot[S]) (ulid.ULID, error)
	// Load returns the newest snapshot of the machine
	Load(ctx context.Context, machineID string) (hfsm.Snapshot[S], error)
	// Delete removes every snapshot of the machine
	Delete(ctx context.Context, machineID string) error
}

// PassivateTo terminates the driver and saves its snapshot under machineID
func PassivateTo[S, E comparable](ctx context.Context, d hfsm.Driver[S, E], st Store[S], machineID string) (ulid.ULID, error) {
	snap, err := d.Passivate()
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("passivate %s: %w", machineID, err)
	}
	return st.Save(ctx, machineID, snap)
}

// ActivateFrom loads the newest snapshot saved under machineID into a
// driver that was neither initialized nor started
func ActivateFrom[S, E comparable](ctx context.Context, d hfsm.Driver[S, E], st Store[S], machineID string) error {
	snap, err := st.Load(ctx, machineID)
	if err != nil {
		return err
	}
	if err := d.Activate(snap); err != nil {
		return fmt.Errorf("activate %s: %w", machineID, err)
	}
	return nil
}

var (
	_ Store[string] = (*MemoryStore[string])(nil)
	_ Store[string] = (*FileStore[string])(nil)
)

package store

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/anggasct/hfsm"
)

const (
	snapshotTable = "snapshots"
	idIndex       = "id"
	machineIndex  = "machine"
)

// entry is the row stored in the snapshot table
type entry[S comparable] struct {
	Key       string
	MachineID string
	Version   ulid.ULID
	SavedAt   time.Time
	Snapshot  hfsm.Snapshot[S]
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			snapshotTable: {
				Name: snapshotTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Key"},
					},
					machineIndex: {
						Name:    machineIndex,
						Indexer: &memdb.StringFieldIndex{Field: "MachineID"},
					},
				},
			},
		},
	}
}

// MemoryStore keeps every saved snapshot version in an in-memory go-memdb
// database. It is safe for concurrent use.
type MemoryStore[S comparable] struct {
	db     *memdb.MemDB
	logger logrus.FieldLogger
}

// NewMemoryStore creates an empty store. A nil logger discards output.
func NewMemoryStore[S comparable](logger logrus.FieldLogger) (*MemoryStore[S], error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("create memdb: %w", err)
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &MemoryStore[S]{db: db, logger: logger.WithField("store", "memory")}, nil
}

// Save stores a new version of the machine snapshot
func (s *MemoryStore[S]) Save(ctx context.Context, machineID string, snap hfsm.Snapshot[S]) (ulid.ULID, error) {
	if err := ctx.Err(); err != nil {
		return ulid.ULID{}, err
	}
	if machineID == "" {
		return ulid.ULID{}, errEmptyID
	}
	version := ulid.Make()
	row := &entry[S]{
		Key:       machineID + "#" + version.String(),
		MachineID: machineID,
		Version:   version,
		SavedAt:   ulid.Time(version.Time()),
		Snapshot:  snap,
	}

	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(snapshotTable, row); err != nil {
		return ulid.ULID{}, fmt.Errorf("insert snapshot %s: %w", machineID, err)
	}
	txn.Commit()

	s.logger.WithFields(logrus.Fields{"id": machineID, "version": version.String()}).Debug("saved snapshot")
	return version, nil
}

// Load returns the newest snapshot of the machine
func (s *MemoryStore[S]) Load(ctx context.Context, machineID string) (hfsm.Snapshot[S], error) {
	records, err := s.Versions(ctx, machineID)
	if err != nil {
		return hfsm.Snapshot[S]{}, err
	}
	return records[len(records)-1].Snapshot, nil
}

// LoadVersion returns one specific snapshot version
func (s *MemoryStore[S]) LoadVersion(ctx context.Context, machineID string, version ulid.ULID) (hfsm.Snapshot[S], error) {
	if err := ctx.Err(); err != nil {
		return hfsm.Snapshot[S]{}, err
	}
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(snapshotTable, idIndex, machineID+"#"+version.String())
	if err != nil {
		return hfsm.Snapshot[S]{}, fmt.Errorf("lookup snapshot %s: %w", machineID, err)
	}
	if raw == nil {
		return hfsm.Snapshot[S]{}, fmt.Errorf("machine %q version %s: %w", machineID, version, ErrNotFound)
	}
	return raw.(*entry[S]).Snapshot, nil
}

// Versions returns every saved snapshot of the machine, oldest first
func (s *MemoryStore[S]) Versions(ctx context.Context, machineID string) ([]Record[S], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn := s.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(snapshotTable, machineIndex, machineID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots %s: %w", machineID, err)
	}
	var records []Record[S]
	for next := iter.Next(); next != nil; next = iter.Next() {
		row := next.(*entry[S])
		records = append(records, Record[S]{
			MachineID: row.MachineID,
			Version:   row.Version,
			SavedAt:   row.SavedAt,
			Snapshot:  row.Snapshot,
		})
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("machine %q: %w", machineID, ErrNotFound)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Version.Compare(records[j].Version) < 0
	})
	return records, nil
}

// Delete removes every snapshot of the machine
func (s *MemoryStore[S]) Delete(ctx context.Context, machineID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := s.db.Txn(true)
	defer txn.Abort()

	switch deleted, err := txn.DeleteAll(snapshotTable, machineIndex, machineID); {
	case err != nil:
		return fmt.Errorf("delete snapshots %s: %w", machineID, err)
	case deleted == 0:
		return fmt.Errorf("machine %q: %w", machineID, ErrNotFound)
	default:
		txn.Commit()
		s.logger.WithFields(logrus.Fields{"id": machineID, "deleted": deleted}).Debug("deleted snapshots")
		return nil
	}
}

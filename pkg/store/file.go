package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/anggasct/hfsm"
)

// Format selects the file encoding of a FileStore
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// document is the on-disk layout of one saved snapshot
type document[S comparable] struct {
	MachineID string           `json:"machineId" yaml:"machineId"`
	Version   string           `json:"version" yaml:"version"`
	SavedAt   time.Time        `json:"savedAt" yaml:"savedAt"`
	Snapshot  hfsm.Snapshot[S] `json:"snapshot" yaml:"snapshot"`
}

// FileStore keeps the newest snapshot of each machine in its own file,
// <dir>/<machineID>.json or .yaml. Saving overwrites the previous version.
type FileStore[S comparable] struct {
	dir    string
	format Format
}

// NewFileStore creates a FileStore, ensuring the directory exists
func NewFileStore[S comparable](dir string, format Format) (*FileStore[S], error) {
	if format != JSON && format != YAML {
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &FileStore[S]{dir: dir, format: format}, nil
}

func (s *FileStore[S]) path(machineID string) (string, error) {
	if machineID == "" {
		return "", errEmptyID
	}
	if strings.ContainsAny(machineID, `/\`) || machineID == "." || machineID == ".." {
		return "", fmt.Errorf("invalid machine id %q", machineID)
	}
	return filepath.Join(s.dir, machineID+"."+string(s.format)), nil
}

func (s *FileStore[S]) marshal(doc document[S]) ([]byte, error) {
	if s.format == YAML {
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("yaml marshal: %w", err)
		}
		return data, nil
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}
	return data, nil
}

func (s *FileStore[S]) unmarshal(data []byte, doc *document[S]) error {
	if s.format == YAML {
		if err := yaml.Unmarshal(data, doc); err != nil {
			return fmt.Errorf("yaml unmarshal: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	return nil
}

// Save writes the snapshot, replacing the previous one
func (s *FileStore[S]) Save(ctx context.Context, machineID string, snap hfsm.Snapshot[S]) (ulid.ULID, error) {
	if err := ctx.Err(); err != nil {
		return ulid.ULID{}, err
	}
	fn, err := s.path(machineID)
	if err != nil {
		return ulid.ULID{}, err
	}

	version := ulid.Make()
	data, err := s.marshal(document[S]{
		MachineID: machineID,
		Version:   version.String(),
		SavedAt:   ulid.Time(version.Time()).UTC(),
		Snapshot:  snap,
	})
	if err != nil {
		return ulid.ULID{}, err
	}

	tmp := fn + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return ulid.ULID{}, fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, fn); err != nil {
		return ulid.ULID{}, fmt.Errorf("rename %s: %w", fn, err)
	}
	return version, nil
}

// Load reads the saved snapshot of the machine
func (s *FileStore[S]) Load(ctx context.Context, machineID string) (hfsm.Snapshot[S], error) {
	record, err := s.Record(ctx, machineID)
	if err != nil {
		return hfsm.Snapshot[S]{}, err
	}
	return record.Snapshot, nil
}

// Record reads the saved snapshot together with its version
func (s *FileStore[S]) Record(ctx context.Context, machineID string) (Record[S], error) {
	if err := ctx.Err(); err != nil {
		return Record[S]{}, err
	}
	fn, err := s.path(machineID)
	if err != nil {
		return Record[S]{}, err
	}
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record[S]{}, fmt.Errorf("machine %q: %w", machineID, ErrNotFound)
		}
		return Record[S]{}, fmt.Errorf("read %s: %w", fn, err)
	}

	var doc document[S]
	if err := s.unmarshal(data, &doc); err != nil {
		return Record[S]{}, err
	}
	version, err := ulid.ParseStrict(doc.Version)
	if err != nil {
		return Record[S]{}, fmt.Errorf("parse version of %s: %w", fn, err)
	}
	return Record[S]{
		MachineID: machineID,
		Version:   version,
		SavedAt:   doc.SavedAt,
		Snapshot:  doc.Snapshot,
	}, nil
}

// Delete removes the snapshot file of the machine
func (s *FileStore[S]) Delete(ctx context.Context, machineID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn, err := s.path(machineID)
	if err != nil {
		return err
	}
	if err := os.Remove(fn); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("machine %q: %w", machineID, ErrNotFound)
		}
		return fmt.Errorf("remove %s: %w", fn, err)
	}
	return nil
}

// Package snapshot reads and writes schema snapshots so two databases can be
// compared without both being reachable at the same time.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/structsync/structsync/internal/model"
)

// Version is the snapshot file format version written by this package.
const Version = 1

// Snapshot is a captured set of tables plus enough context to pick a SQL
// dialect when it is later compared.
type Snapshot struct {
	Version    int                 `json:"version" yaml:"version"`
	Driver     string              `json:"driver" yaml:"driver"`
	Database   string              `json:"database,omitempty" yaml:"database,omitempty"`
	CapturedAt time.Time           `json:"captured_at" yaml:"captured_at"`
	Tables     []model.TableSchema `json:"tables" yaml:"tables"`
}

// Format is a snapshot file encoding.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// FormatFor picks the encoding from a file extension. Anything other than
// .json is YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSON
	}
	return YAML
}

// TableSource is anything that can list the tables of a live database.
type TableSource interface {
	GetTables(ctx context.Context) ([]model.TableSchema, error)
	DriverName() string
}

// Capture reads every table from src.
func Capture(ctx context.Context, src TableSource, database string) (*Snapshot, error) {
	tables, err := src.GetTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("read tables: %w", err)
	}
	return &Snapshot{
		Version:    Version,
		Driver:     src.DriverName(),
		Database:   database,
		CapturedAt: time.Now().UTC(),
		Tables:     tables,
	}, nil
}

// Encode writes s to w in the given format.
func Encode(w io.Writer, f Format, s *Snapshot) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown snapshot format %q", f)
}

// Decode reads a snapshot in the given format and checks its version.
func Decode(r io.Reader, f Format) (*Snapshot, error) {
	var s Snapshot
	var err error
	switch f {
	case JSON:
		err = json.NewDecoder(r).Decode(&s)
	case YAML:
		err = yaml.NewDecoder(r).Decode(&s)
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version > Version {
		return nil, fmt.Errorf("snapshot version %d is newer than supported version %d", s.Version, Version)
	}
	if s.Tables == nil {
		s.Tables = []model.TableSchema{}
	}
	return &s, nil
}

// Write saves s to path, creating parent directories as needed.
func Write(path string, s *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	if err := Encode(f, FormatFor(path), s); err != nil {
		f.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	return f.Close()
}

// Read loads a snapshot from path.
func Read(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return Decode(f, FormatFor(path))
}

// Package collection handles the durable unit of storage: one JSON file per
// entity kind, holding an ordered array of records. Files are read in full
// and rewritten in full; there is no partial or streaming write, and no
// atomic-rename guarantee.
package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/backroom-io/backroom/internal/core"
)

// File is the on-disk backing for one collection.
type File struct {
	name string
	path string
}

// New returns a handle for the named collection under dataDir. The file is
// created on first write; it need not exist yet.
func New(dataDir, name string) *File {
	return &File{
		name: name,
		path: filepath.Join(dataDir, name+".json"),
	}
}

// Name returns the collection name.
func (f *File) Name() string {
	return f.name
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Read loads the full record sequence. A missing file yields an empty
// sequence, not an error; any other read or decode failure wraps
// core.ErrStorage.
func (f *File) Read() ([]core.Record, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", core.ErrStorage, f.path, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var records []core.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", core.ErrStorage, f.path, err)
	}
	return records, nil
}

// Write persists the full record sequence, creating the data directory if
// needed. The previous contents are replaced wholesale.
func (f *File) Write(records []core.Record) error {
	if records == nil {
		records = []core.Record{}
	}
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", core.ErrStorage, f.name, err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir for %s: %v", core.ErrStorage, f.path, err)
	}
	if err := os.WriteFile(f.path, raw, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", core.ErrStorage, f.path, err)
	}
	return nil
}

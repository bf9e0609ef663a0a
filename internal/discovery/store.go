package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileStore keeps the ledger in a JSON file:
//
//	{"discoveries": [{"id": ..., "date_found": ..., "date_last_seen": ...,
//	  "statistics": {"packet_count": n}}]}
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the ledger file location.
func (s *FileStore) Path() string {
	return s.path
}

type ledgerFile struct {
	Discoveries []recordFile `json:"discoveries"`
}

type recordFile struct {
	ID           string    `json:"id"`
	DateFound    timestamp `json:"date_found"`
	DateLastSeen timestamp `json:"date_last_seen"`
	Statistics   struct {
		PacketCount int64 `json:"packet_count"`
	} `json:"statistics"`
}

// Load reads the ledger file. A missing file is an empty ledger.
func (s *FileStore) Load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var file ledgerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	out := make([]Record, 0, len(file.Discoveries))
	for _, r := range file.Discoveries {
		out = append(out, Record{
			ID:           r.ID,
			DateFound:    time.Time(r.DateFound),
			DateLastSeen: time.Time(r.DateLastSeen),
			PacketCount:  r.Statistics.PacketCount,
		})
	}
	return out, nil
}

// Save replaces the ledger file with records.
func (s *FileStore) Save(records []Record) error {
	file := ledgerFile{Discoveries: make([]recordFile, len(records))}
	for i, r := range records {
		file.Discoveries[i].ID = r.ID
		file.Discoveries[i].DateFound = timestamp(r.DateFound)
		file.Discoveries[i].DateLastSeen = timestamp(r.DateLastSeen)
		file.Discoveries[i].Statistics.PacketCount = r.PacketCount
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data, 0o644)
}

// Remove deletes the ledger file if it exists.
func (s *FileStore) Remove() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// writeFileAtomic replaces path so a reader or a crash sees either the old
// or the new contents, never a partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Chmod(perm); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp, path); err != nil {
		return err
	}
	if d, derr := os.Open(dir); derr == nil {
		d.Sync()
		d.Close()
	}
	return nil
}

// timestamp writes RFC 3339 and also reads the zone-less ISO-8601 form,
// which it takes as local time.
type timestamp time.Time

var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format(time.RFC3339Nano))
}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*t = timestamp(parsed)
		return nil
	}
	for _, layout := range zonelessLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			*t = timestamp(parsed)
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

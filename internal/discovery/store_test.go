package discovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discoveries.json")
	s := NewFileStore(path)
	require.NoError(t, s.Save([]Record{{ID: "dns", DateFound: base, DateLastSeen: base.Add(time.Second), PacketCount: 7}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string][]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw["discoveries"], 1)
	entry := raw["discoveries"][0]
	assert.Equal(t, "dns", entry["id"])
	assert.Equal(t, "2026-03-14T15:09:26Z", entry["date_found"])
	assert.Equal(t, "2026-03-14T15:09:27Z", entry["date_last_seen"])
	assert.Equal(t, map[string]any{"packet_count": float64(7)}, entry["statistics"])

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temporary files must not be left behind")
}

func TestFileStoreReadsZonelessTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discoveries.json")
	legacy := `{"discoveries": [{"id": "https", "date_found": "2025-01-02T03:04:05.123456",
		"date_last_seen": "2025-01-02T04:00:00", "statistics": {"packet_count": 12}}]}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	recs, err := NewFileStore(path).Load()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	want := time.Date(2025, 1, 2, 3, 4, 5, 123456000, time.Local)
	assert.True(t, want.Equal(recs[0].DateFound))
	assert.EqualValues(t, 12, recs[0].PacketCount)
}

func TestFileStoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discoveries.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"discoveries": [{"id": "x", "date_found": "yesterday"}]}`), 0o644))
	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}

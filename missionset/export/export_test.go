package export_test

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justapithecus/missionset/missionset"
	"github.com/justapithecus/missionset/missionset/export"
)

const fixtureRoot = "../testdata/dataset"

func openFixture(t *testing.T) *missionset.Dataset {
	t.Helper()
	ds, err := missionset.Open(fixtureRoot)
	require.NoError(t, err)
	return ds
}

func brokenDataset(t *testing.T) *missionset.Dataset {
	t.Helper()
	store := missionset.NewMemoryFrom(map[string][]byte{
		"goals/urban/goals.json": []byte(`[]`),
		"tasks/urban/t1.json":    []byte(`{"scenario":"1","goal":"g1"}`),
		"tasks/urban/t2.json":    []byte(`{"goal":"g1"}`),
	})
	ds, err := missionset.New(missionset.NewMemoryFactoryFrom(store))
	require.NoError(t, err)
	return ds
}

func TestRows_Fixture(t *testing.T) {
	rows, err := export.Rows(t.Context(), openFixture(t))
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, export.TaskRow{
		Type:       "urban",
		TaskID:     "task_002",
		ScenarioID: "1",
		GoalIDs:    []string{"g3", "g7"},
		GoalCount:  2,
		Source:     "tasks/urban/task_002.json",
	}, rows[1])
	assert.Equal(t, "tasks/urban/task_005.json.gz", rows[4].Source)
}

func TestRows_FailsOnLoaderError(t *testing.T) {
	_, err := export.Rows(t.Context(), brokenDataset(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, missionset.ErrSchema), "got %v", err)
}

func TestRows_NilDataset(t *testing.T) {
	_, err := export.Rows(t.Context(), nil)
	assert.Error(t, err)
}

func TestCodecByName(t *testing.T) {
	for _, name := range []string{"jsonl", "parquet"} {
		c, err := export.CodecByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
	_, err := export.CodecByName("csv")
	assert.Error(t, err)
}

func TestCodecs_RoundTrip(t *testing.T) {
	rows, err := export.Rows(t.Context(), openFixture(t))
	require.NoError(t, err)

	for _, codec := range []export.Codec{export.NewJSONL(), export.NewParquet()} {
		t.Run(codec.Name(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, codec.Encode(&buf, rows))

			decoded, err := codec.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, rows, decoded)
		})
	}
}

func TestJSONL_OneRowPerLine(t *testing.T) {
	rows := []export.TaskRow{
		{Type: "urban", TaskID: "a", ScenarioID: "1", GoalIDs: []string{"g1"}, GoalCount: 1, Source: "tasks/urban/a.json"},
		{Type: "urban", TaskID: "b", ScenarioID: "2", GoalIDs: []string{"g2"}, GoalCount: 1, Source: "tasks/urban/b.json"},
	}
	var buf bytes.Buffer
	require.NoError(t, export.NewJSONL().Encode(&buf, rows))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), `"task_id":"a"`)
	assert.Contains(t, string(lines[1]), `"goal_ids":["g2"]`)
}

func TestJSONL_DecodeInvalid(t *testing.T) {
	_, err := export.NewJSONL().Decode(bytes.NewBufferString("{\"task_id\":\"a\"}\nnot json\n"))
	assert.ErrorIs(t, err, export.ErrInvalidFormat)
}

func TestParquet_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.NewParquet().Encode(&buf, nil))
	rows, err := export.NewParquet().Decode(&buf)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = export.NewParquet().Decode(bytes.NewReader(nil))
	assert.ErrorIs(t, err, export.ErrInvalidFormat)
}

func TestParquet_GoalIDsWithCommas(t *testing.T) {
	rows := []export.TaskRow{
		{Type: "urban", TaskID: "a", ScenarioID: "1", GoalIDs: []string{"g1,g2", "g3"}, GoalCount: 2, Source: "tasks/urban/a.json"},
		{Type: "urban", TaskID: "b", ScenarioID: "2", GoalIDs: []string{""}, GoalCount: 1, Source: "tasks/urban/b.json"},
	}
	var buf bytes.Buffer
	require.NoError(t, export.NewParquet().Encode(&buf, rows))

	decoded, err := export.NewParquet().Decode(&buf)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, []string{"g1,g2", "g3"}, decoded[0].GoalIDs)
	assert.Equal(t, []string{""}, decoded[1].GoalIDs)
}

func TestWriteFile_Compressed(t *testing.T) {
	ds := openFixture(t)
	dir := t.TempDir()

	tests := []struct {
		comp   export.Compressor
		reader func(*testing.T, *os.File) *bytes.Buffer
	}{
		{export.NewNoop(), func(t *testing.T, f *os.File) *bytes.Buffer {
			var buf bytes.Buffer
			_, err := buf.ReadFrom(f)
			require.NoError(t, err)
			return &buf
		}},
		{export.NewGzip(), func(t *testing.T, f *os.File) *bytes.Buffer {
			zr, err := gzip.NewReader(f)
			require.NoError(t, err)
			var buf bytes.Buffer
			_, err = buf.ReadFrom(zr)
			require.NoError(t, err)
			return &buf
		}},
		{export.NewZstd(), func(t *testing.T, f *os.File) *bytes.Buffer {
			zr, err := zstd.NewReader(f)
			require.NoError(t, err)
			defer zr.Close()
			var buf bytes.Buffer
			_, err = buf.ReadFrom(zr)
			require.NoError(t, err)
			return &buf
		}},
	}
	for _, tt := range tests {
		t.Run(tt.comp.Name(), func(t *testing.T) {
			codec := export.NewJSONL()
			path := filepath.Join(dir, "index"+codec.Extension()+tt.comp.Extension())
			require.NoError(t, export.WriteFile(t.Context(), ds, path, codec, tt.comp))

			f, err := os.Open(path)
			require.NoError(t, err)
			defer f.Close()

			rows, err := codec.Decode(tt.reader(t, f))
			require.NoError(t, err)
			assert.Len(t, rows, 5)
		})
	}
}

func TestWriteFile_FailureLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "index.jsonl")
	err := export.WriteFile(t.Context(), brokenDataset(t), path, export.NewJSONL(), nil)
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	entries, _ := os.ReadDir(filepath.Dir(path))
	assert.Empty(t, entries, "temporary files must be cleaned up")
}

func TestCompressorByName(t *testing.T) {
	for name, ext := range map[string]string{"": "", "none": "", "gzip": ".gz", "zstd": ".zst"} {
		c, err := export.CompressorByName(name)
		require.NoError(t, err)
		assert.Equal(t, ext, c.Extension())
	}
	_, err := export.CompressorByName("lz4")
	assert.Error(t, err)
}

func TestWriteSQLite_Fixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	require.NoError(t, export.WriteSQLite(t.Context(), path, openFixture(t)))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	count := func(query string, args ...any) int {
		t.Helper()
		var n int
		require.NoError(t, db.QueryRowContext(t.Context(), query, args...).Scan(&n))
		return n
	}
	assert.Equal(t, 2, count(`SELECT COUNT(*) FROM types`))
	assert.Equal(t, 20, count(`SELECT COUNT(*) FROM goals WHERE type = ?`, "urban"))
	assert.Equal(t, 2, count(`SELECT COUNT(*) FROM goals WHERE type = ?`, "warehouse"))
	assert.Equal(t, 2, count(`SELECT COUNT(*) FROM scenarios`))
	assert.Equal(t, 5, count(`SELECT COUNT(*) FROM tasks`))
	assert.Equal(t, 1, count(`SELECT COUNT(*) FROM scenarios WHERE has_dashboard_image = 1`))

	var goals []string
	rows, err := db.QueryContext(t.Context(),
		`SELECT goal_id FROM task_goals WHERE type = ? AND task_id = ? ORDER BY position`, "urban", "task_003")
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		goals = append(goals, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"g2", "g11"}, goals)

	var attrs string
	require.NoError(t, db.QueryRowContext(t.Context(),
		`SELECT attributes FROM tasks WHERE id = ?`, "task_002").Scan(&attrs))
	assert.JSONEq(t, `{"robots":["ugv-1"],"time_limit":600}`, attrs)
}

func TestWriteSQLite_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	require.NoError(t, export.WriteSQLite(t.Context(), path, openFixture(t)))
	require.NoError(t, export.WriteSQLite(t.Context(), path, openFixture(t)))
}

func TestWriteSQLite_FailsOnLoaderError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	err := export.WriteSQLite(t.Context(), path, brokenDataset(t))
	assert.ErrorIs(t, err, missionset.ErrSchema)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "failed export must not leave a database behind")
}

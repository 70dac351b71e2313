package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/justapithecus/missionset/internal/testutil"
	"github.com/justapithecus/missionset/missionset"
	"github.com/justapithecus/missionset/missionset/export"
	"github.com/justapithecus/missionset/missionset/s3"
)

const fixtureRoot = "../../missionset/testdata/dataset"

// runCLI executes the CLI against the fixture dataset.
func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(t.Context(), append([]string{"--root", fixtureRoot}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestTypes(t *testing.T) {
	code, out, _ := runCLI(t, "types")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "urban\nwarehouse\n", out)
}

func TestTypes_JSONAndYAML(t *testing.T) {
	code, out, _ := runCLI(t, "types", "--output", "json")
	require.Equal(t, ExitSuccess, code)
	var types []string
	require.NoError(t, json.UnmarshalFromString(out, &types))
	assert.Equal(t, []string{"urban", "warehouse"}, types)

	code, out, _ = runCLI(t, "types", "-o", "yaml")
	require.Equal(t, ExitSuccess, code)
	types = nil
	require.NoError(t, yaml.Unmarshal([]byte(out), &types))
	assert.Equal(t, []string{"urban", "warehouse"}, types)
}

func TestRootFromEnvironment(t *testing.T) {
	t.Setenv(missionset.RootEnv, fixtureRoot)
	var out, errOut bytes.Buffer
	code := run(t.Context(), []string{"types"}, &out, &errOut)
	require.Equal(t, ExitSuccess, code, errOut.String())
	assert.Contains(t, out.String(), "urban")
}

func TestMetadata(t *testing.T) {
	code, out, _ := runCLI(t, "metadata", "-o", "yaml")
	require.Equal(t, ExitSuccess, code)
	var meta missionset.Metadata
	require.NoError(t, yaml.Unmarshal([]byte(out), &meta))
	assert.Equal(t, "urban-missions", meta.Name)
	assert.Equal(t, "1.0.0", meta.Version)
}

func TestGoals(t *testing.T) {
	code, out, _ := runCLI(t, "goals", "urban")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "QUANTIFIER")
	assert.Contains(t, out, `prop/car[license_plate="00001"]`)
	assert.Contains(t, out, "building/hospital")

	code, out, _ = runCLI(t, "goals", "urban", "-o", "json")
	require.Equal(t, ExitSuccess, code)
	var goals []map[string]any
	require.NoError(t, json.UnmarshalFromString(out, &goals))
	require.Len(t, goals, 20)
	assert.Equal(t, "g1", goals[0]["id"])
}

func TestScenarios(t *testing.T) {
	code, out, _ := runCLI(t, "scenarios", "urban")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "1\n2\n", out)
}

func TestScenario(t *testing.T) {
	code, out, _ := runCLI(t, "scenario", "urban", "2")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "scenario urban/2")
	assert.Contains(t, out, "(missing)")
	assert.Contains(t, out, "cargo")
}

func TestTasks_TypeFilter(t *testing.T) {
	code, out, _ := runCLI(t, "tasks", "--type", "urban", "-o", "json")
	require.Equal(t, ExitSuccess, code)
	var tasks []missionset.Task
	require.NoError(t, json.UnmarshalFromString(out, &tasks))
	assert.Len(t, tasks, 5)

	code, out, _ = runCLI(t, "tasks", "--type", "warehouse", "-o", "json")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "[]\n", out)
}

func TestTask(t *testing.T) {
	code, out, _ := runCLI(t, "task", "urban", "1", "g7")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "task_002")

	code, _, errOut := runCLI(t, "task", "urban", "2", "g1")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, errOut, "error:")
}

func TestResolve(t *testing.T) {
	code, out, _ := runCLI(t, "resolve", "urban", "task_003", "-o", "json")
	require.Equal(t, ExitSuccess, code)
	var got struct {
		Scenario struct {
			ID string `json:"scenario_id"`
		} `json:"scenario"`
		Goals []struct {
			ID string `json:"id"`
		} `json:"goals"`
	}
	require.NoError(t, json.UnmarshalFromString(out, &got))
	assert.Equal(t, "2", got.Scenario.ID)
	require.Len(t, got.Goals, 2)
	assert.Equal(t, "g11", got.Goals[1].ID)

	code, _, _ = runCLI(t, "resolve", "urban", "task_004")
	assert.Equal(t, ExitError, code, "dangling references are loader errors")
}

func TestSample(t *testing.T) {
	code, first, _ := runCLI(t, "sample", "3", "--seed", "9", "-o", "json")
	require.Equal(t, ExitSuccess, code)
	_, second, _ := runCLI(t, "sample", "3", "--seed", "9", "-o", "json")
	assert.Equal(t, first, second)

	code, _, _ = runCLI(t, "sample", "50")
	assert.Equal(t, ExitError, code)

	code, _, _ = runCLI(t, "sample", "three")
	assert.Equal(t, ExitUsage, code)
}

func TestExport(t *testing.T) {
	dir := t.TempDir()

	jsonl := filepath.Join(dir, "tasks.jsonl")
	code, _, errOut := runCLI(t, "export", "--format", "jsonl", "--out", jsonl)
	require.Equal(t, ExitSuccess, code, errOut)
	f, err := os.Open(jsonl)
	require.NoError(t, err)
	defer f.Close()
	rows, err := export.NewJSONL().Decode(f)
	require.NoError(t, err)
	assert.Len(t, rows, 5)

	code, _, errOut = runCLI(t, "export", "--format", "parquet", "--out", filepath.Join(dir, "tasks.parquet"))
	require.Equal(t, ExitSuccess, code, errOut)

	code, _, errOut = runCLI(t, "export", "--format", "sqlite", "--out", filepath.Join(dir, "index.db"))
	require.Equal(t, ExitSuccess, code, errOut)

	code, _, errOut = runCLI(t, "export", "--format", "jsonl", "--compress", "zstd", "--out", filepath.Join(dir, "tasks.jsonl.zst"))
	require.Equal(t, ExitSuccess, code, errOut)
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"bogus"}},
		{"missing argument", []string{"goals"}},
		{"too many arguments", []string{"scenario", "urban", "1", "extra"}},
		{"unknown flag", []string{"types", "--nope"}},
		{"bad output", []string{"types", "-o", "xml"}},
		{"bad log level", []string{"types", "--log-level", "loud"}},
		{"export without out", []string{"export"}},
		{"unknown export format", []string{"export", "--format", "csv", "--out", "x"}},
		{"compressed sqlite", []string{"export", "--format", "sqlite", "--compress", "gzip", "--out", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, tt.args...)
			assert.Equal(t, ExitUsage, code)
			assert.True(t, strings.HasPrefix(errOut, "error:"), errOut)
		})
	}
}

func TestLoaderErrorExitCode(t *testing.T) {
	code, _, errOut := runCLI(t, "goals", "arctic")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, errOut, "goals/arctic/goals.json")
}

func TestS3Root(t *testing.T) {
	mock := s3.NewMockS3Client()
	mock.Put("bench/goals/harbor/goals.json", []byte(`[{"id":"h1","target":{"category":"vessel","type":"tug"},"success_condition":{"field":"status","operator":"EQ","value":"docked"},"quantifier":"EXISTS"}]`))
	mock.Put("bench/tasks/harbor/t1.json", []byte(`{"scenario":"1","goal":"h1"}`))

	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	var gotCfg s3.ClientConfig
	a.newS3Client = func(_ context.Context, cfg s3.ClientConfig) (s3.API, error) {
		gotCfg = cfg
		return mock, nil
	}
	cmd := newRootCmd(a)
	cmd.SetArgs([]string{"--root", "s3://missions/bench", "--s3-endpoint", "http://localhost:9000", "--s3-region", "us-east-1", "types"})
	require.NoError(t, cmd.ExecuteContext(t.Context()), errOut.String())

	assert.Equal(t, "harbor\n", out.String())
	assert.Equal(t, "us-east-1", gotCfg.Region)
	assert.True(t, gotCfg.UsePathStyle)
}

func TestS3Root_EndpointFromEnvironment(t *testing.T) {
	t.Setenv(envS3Endpoint, "http://minio:9000")
	t.Setenv(envRegion, "eu-west-1")

	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	var gotCfg s3.ClientConfig
	a.newS3Client = func(_ context.Context, cfg s3.ClientConfig) (s3.API, error) {
		gotCfg = cfg
		return s3.NewMockS3Client(), nil
	}
	cmd := newRootCmd(a)
	cmd.SetArgs([]string{"--root", "s3://missions", "types"})
	require.NoError(t, cmd.ExecuteContext(t.Context()))

	assert.Equal(t, "http://minio:9000", gotCfg.Endpoint)
	assert.Equal(t, "eu-west-1", gotCfg.Region)
}

func TestExport_LoaderErrorLeavesNoOutput(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, testutil.WriteTree(root, map[string]string{
		"goals/urban/goals.json": `[]`,
		"tasks/urban/ok.json":    `{"scenario":"1","goal":"g1"}`,
		"tasks/urban/bad.json":   `{"scenario":"1"}`,
	}))
	out := filepath.Join(t.TempDir(), "index.db")

	var stdout, stderr bytes.Buffer
	code := run(t.Context(), []string{"--root", root, "export", "--format", "sqlite", "--out", out}, &stdout, &stderr)
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr.String(), "tasks/urban/bad.json")

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestExport_RejectsOutputInsideRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, testutil.WriteTree(root, map[string]string{
		"goals/urban/goals.json": `[]`,
		"tasks/urban/ok.json":    `{"scenario":"1","goal":"g1"}`,
	}))

	for _, out := range []string{
		filepath.Join(root, "tasks", "urban", "index.jsonl"),
		filepath.Join(root, "index.db"),
		filepath.Join(root, "tasks", "..", "index.parquet"),
	} {
		t.Run(filepath.Base(out), func(t *testing.T) {
			format := strings.TrimPrefix(filepath.Ext(out), ".")
			if format == "db" {
				format = "sqlite"
			}
			var stdout, stderr bytes.Buffer
			code := run(t.Context(), []string{"--root", root, "export", "--format", format, "--out", out}, &stdout, &stderr)
			assert.Equal(t, ExitUsage, code, stderr.String())
			assert.Contains(t, stderr.String(), "inside the dataset root")

			_, err := os.Stat(out)
			assert.True(t, os.IsNotExist(err))
		})
	}

	// A sibling sharing the root's name as a prefix is outside it.
	sibling := root + "-index.jsonl"
	t.Cleanup(func() { _ = os.Remove(sibling) })
	var stdout, stderr bytes.Buffer
	code := run(t.Context(), []string{"--root", root, "export", "--out", sibling}, &stdout, &stderr)
	assert.Equal(t, ExitSuccess, code, stderr.String())
}

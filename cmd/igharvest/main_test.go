package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igharvest/internal/config"
	"igharvest/internal/model"
	"igharvest/internal/store/sqlite"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DBPath = filepath.Join(dir, "igharvest.db")
	path := filepath.Join(dir, "igharvest.yaml")
	require.NoError(t, config.Save(path, cfg))
	return path
}

func TestInitWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "igharvest.yaml")
	out, err := execute(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Config written to:")
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestActivityAndTokenCommands(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, "activity", "add", "--config", cfg, "--name", "Week 1", "--course", "3",
		"--mode", "tag", "--search", "#course", "--start", "2024-01-01")
	require.NoError(t, err)
	assert.Contains(t, out, "activity 1")

	_, err = execute(t, "tokens", "add", "--config", cfg, "--activity", "1", "--token", "master-tok", "--username", "tutor")
	require.NoError(t, err)
	_, err = execute(t, "tokens", "add", "--config", cfg, "--activity", "1", "--user", "7", "--token", "alice-tok", "--username", "alice")
	require.NoError(t, err)

	out, err = execute(t, "tokens", "list", "--config", cfg, "--activity", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "master")
	assert.Contains(t, out, "alice")

	out, err = execute(t, "activity", "list", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Week 1")
	assert.Contains(t, out, "true")

	_, err = execute(t, "tokens", "disconnect", "--config", cfg, "--activity", "1")
	require.NoError(t, err)
	out, err = execute(t, "activity", "list", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "false")
}

func TestLinkCohortAndKPIs(t *testing.T) {
	cfg := testConfig(t)
	_, err := execute(t, "activity", "add", "--config", cfg, "--name", "A")
	require.NoError(t, err)

	out, err := execute(t, "link", "add", "--config", cfg, "--activity", "1", "--user", "7", "--social-id", "45", "--social-name", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "https://www.instagram.com/bob")

	_, err = execute(t, "cohort", "add", "--config", cfg, "--activity", "1", "7", "8")
	require.NoError(t, err)
	_, err = execute(t, "cohort", "add", "--config", cfg, "--activity", "1", "x")
	assert.Error(t, err)

	out, err = execute(t, "kpis", "--config", cfg, "--activity", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "igposts")

	out, err = execute(t, "report", "--config", cfg, "--activity", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "A: 0 interactions")
}

func TestActivityAddRejectsBadInput(t *testing.T) {
	cfg := testConfig(t)
	_, err := execute(t, "activity", "add", "--config", cfg, "--name", "A", "--mode", "feed")
	assert.ErrorContains(t, err, "invalid mode")
	_, err = execute(t, "activity", "add", "--config", cfg, "--name", "A", "--start", "yesterday")
	assert.ErrorContains(t, err, "invalid date")
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2024-03-01", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), d)
	d, err = parseDate("", true)
	require.NoError(t, err)
	assert.True(t, d.IsZero())
	d, err = parseDate("2024-03-01T10:00:00Z", true)
	require.NoError(t, err)
	assert.Equal(t, 10, d.Hour(), "explicit times are kept as given")
}

func TestBareEndDateCoversWholeDay(t *testing.T) {
	start, err := parseDate("2024-01-01", false)
	require.NoError(t, err)
	end, err := parseDate("2024-01-31", true)
	require.NoError(t, err)
	act := model.Activity{Start: start, End: end}

	assert.True(t, act.InWindow(time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)))
	assert.True(t, act.InWindow(time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, act.InWindow(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, act.InWindow(start))
}

func TestActivityAddStoresWholeDayWindow(t *testing.T) {
	cfg := testConfig(t)
	_, err := execute(t, "activity", "add", "--config", cfg, "--name", "Jan", "--start", "2024-01-01", "--end", "2024-01-31")
	require.NoError(t, err)

	st, err := sqlite.Open(filepath.Join(filepath.Dir(cfg), "igharvest.db"))
	require.NoError(t, err)
	defer st.Close()
	act, err := st.Activity(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC), act.End)
}

func TestReportLinksLatestInteraction(t *testing.T) {
	cfg := testConfig(t)
	_, err := execute(t, "activity", "add", "--config", cfg, "--name", "Photos", "--start", "2024-01-01", "--end", "2024-01-31")
	require.NoError(t, err)

	st, err := sqlite.Open(filepath.Join(filepath.Dir(cfg), "igharvest.db"))
	require.NoError(t, err)
	at := time.Date(2024, 1, 31, 18, 0, 0, 0, time.UTC)
	require.NoError(t, st.BulkInsert(context.Background(), 1, []model.Interaction{{
		UID: "17_42", Source: model.Source, Type: model.Reply, NativeType: model.NativeComment,
		NativeFrom: "45", NativeFromName: "bob", ParentUID: "17", Timestamp: &at, Description: "nice picture there",
	}}))
	require.NoError(t, st.Close())

	out, err := execute(t, "report", "--config", cfg, "--activity", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Photos: 1 interactions")
	assert.Contains(t, out, "https://www.instagram.com/bob")
	assert.Contains(t, out, "latest https://www.instagram.com/p/17/permalink/42")
}

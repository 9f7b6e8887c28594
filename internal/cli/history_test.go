package cli

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/plexsched/internal/engine"
)

func TestHistory_NewestFirst(t *testing.T) {
	home := t.TempDir()
	seedActions(t, home)
	fake, plebs := seedCatalog()

	opts := &RootOptions{Client: fake, RunIDs: engine.NewFixedGenerator("run-1", "run-2")}
	plebs.Episode(1).FailWith(errors.New("server busy"))
	_, err := execute(t, opts, "--home", home, "cron", "--today", "2016-07-04")
	require.Error(t, err)

	plebs.Episode(1).FailWith(nil)
	_, err = execute(t, opts, "--home", home, "cron", "--today", "2016-07-04")
	require.NoError(t, err)

	out, err := execute(t, nil, "--home", home, "--format", "json", "history")
	require.NoError(t, err)

	var resp struct {
		Data HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Runs, 2)

	latest, first := resp.Data.Runs[0], resp.Data.Runs[1]
	assert.Equal(t, "run-2", latest.ID)
	assert.Equal(t, "ok", latest.Status)
	assert.Equal(t, 1, latest.Applied, "retry applies only the failed action")
	assert.Equal(t, 1, latest.Total)

	assert.Equal(t, "run-1", first.ID)
	assert.Equal(t, "aborted", first.Status)
	assert.Equal(t, int64(2), first.FailedActionID)
	assert.Contains(t, first.Error, "server busy")
	assert.Equal(t, "2016-07-04", first.Today)

	out, err = execute(t, nil, "--home", home, "history", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "STARTED")
	assert.Contains(t, out, "run-2")
	assert.NotContains(t, out, "run-1")
}

func TestHistory_Empty(t *testing.T) {
	out, err := execute(t, nil, "--home", t.TempDir(), "history")
	require.NoError(t, err)
	assert.Equal(t, "No cycles recorded.\n", out)
}

func TestHistory_InvalidLimit(t *testing.T) {
	_, err := execute(t, nil, "--home", t.TempDir(), "history", "--limit", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

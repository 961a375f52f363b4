package runstate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutRecord(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	run, err := mgr.Load()
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestSaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	mgr, err := NewManager(dir)
	require.NoError(t, err)

	run := mgr.Begin("me")
	_, err = uuid.Parse(run.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRunning, run.Outcome)

	run.Expected, run.Collected, run.Quality, run.Passes = 100, 95, 0.95, 1
	run.NewFollows = 3
	run.Finish(OutcomeSuccess, nil)
	require.NoError(t, mgr.Save(run))

	_, err = os.Stat(mgr.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := mgr.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, run.ID, loaded.ID)
	assert.True(t, loaded.Succeeded())
	assert.Equal(t, 95, loaded.Collected)
	assert.Equal(t, 3, loaded.NewFollows)
	assert.Equal(t, formatVersion, loaded.Version)
	assert.False(t, loaded.FinishedAt.Before(loaded.StartedAt))
}

func TestFinishRecordsError(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	run := mgr.Begin("me")
	run.Finish(OutcomeCollectionFailed, errors.New("collected 40 of 100"))
	assert.False(t, run.Succeeded())
	assert.Equal(t, "collected 40 of 100", run.Error)
}

func TestLoadCorruptRecord(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(mgr.Path(), []byte("{not json"), 0644))

	_, err = mgr.Load()
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, mgr.Delete())

	require.NoError(t, mgr.Save(mgr.Begin("me")))
	require.NoError(t, mgr.Delete())
	run, err := mgr.Load()
	require.NoError(t, err)
	assert.Nil(t, run)
}

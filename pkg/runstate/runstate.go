package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"igtracker/pkg/logger"
)

const (
	fileName      = "last_cycle.json"
	formatVersion = 1
)

// Outcome classifies how a cycle ended
type Outcome string

const (
	OutcomeRunning           Outcome = "running"
	OutcomeSuccess           Outcome = "success"
	OutcomeCollectionFailed  Outcome = "collection_failed"
	OutcomePersistenceFailed Outcome = "persistence_failed"
	OutcomeFailed            Outcome = "failed"
)

// Run is the record of one tracking cycle
type Run struct {
	ID                  string        `json:"id"`
	Username            string        `json:"username"`
	StartedAt           time.Time     `json:"started_at"`
	FinishedAt          time.Time     `json:"finished_at,omitempty"`
	Outcome             Outcome       `json:"outcome"`
	Expected            int           `json:"expected"`
	Collected           int           `json:"collected"`
	Quality             float64       `json:"quality"`
	Passes              int           `json:"passes"`
	NewFollows          int           `json:"new_follows"`
	Unfollows           int           `json:"unfollows"`
	ReciprocityFailures int           `json:"reciprocity_failures"`
	Error               string        `json:"error,omitempty"`
	Duration            time.Duration `json:"duration"`
	Version             int           `json:"version"`
}

// Finish stamps the end of the run
func (r *Run) Finish(outcome Outcome, err error) {
	r.FinishedAt = time.Now().UTC()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)
	r.Outcome = outcome
	if err != nil {
		r.Error = err.Error()
	}
}

// Succeeded reports whether the run committed a snapshot
func (r *Run) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// Manager reads and writes the run record
type Manager struct {
	path   string
	logger logger.Logger
}

// NewManager stores the record in dir, creating it if needed
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Manager{
		path:   filepath.Join(dir, fileName),
		logger: logger.ForComponent(nil, "runstate"),
	}, nil
}

// Path returns the record's location
func (m *Manager) Path() string { return m.path }

// Begin starts a new run record. It is not saved until Save is called.
func (m *Manager) Begin(username string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Username:  username,
		StartedAt: time.Now().UTC(),
		Outcome:   OutcomeRunning,
		Version:   formatVersion,
	}
}

// Load returns the last saved run, or nil when none exists
func (m *Manager) Load() (*Run, error) {
	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open run record: %w", err)
	}
	defer file.Close()

	var run Run
	if err := json.NewDecoder(file).Decode(&run); err != nil {
		return nil, fmt.Errorf("failed to decode run record: %w", err)
	}
	return &run, nil
}

// Save writes run atomically
func (m *Manager) Save(run *Run) error {
	tempPath := m.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary run record: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(run); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode run record: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync run record: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close run record: %w", err)
	}
	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace run record: %w", err)
	}

	m.logger.DebugWithFields("Run record saved", map[string]interface{}{
		"id":      run.ID,
		"outcome": string(run.Outcome),
	})
	return nil
}

// Delete removes the record
func (m *Manager) Delete() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete run record: %w", err)
	}
	return nil
}

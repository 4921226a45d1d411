package watch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// RunState is what survives a client restart: the job being watched and how
// far along it was last seen.
type RunState struct {
	JobID       uuid.UUID `json:"job_id"`
	LastPercent float64   `json:"last_percent"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StateFile persists RunState as JSON on disk.
type StateFile struct {
	path string
}

// NewStateFile builds a state file at the given path.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// DefaultStatePath returns ~/.slidecast/run.json.
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".slidecast", "run.json"), nil
}

// Load reads the persisted state. A missing file yields (nil, nil).
func (s *StateFile) Load() (*RunState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read run state: %w", err)
	}
	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode run state: %w", err)
	}
	if state.JobID == uuid.Nil {
		return nil, nil
	}
	return &state, nil
}

// Save writes the state, creating the parent directory if needed.
func (s *StateFile) Save(state RunState) error {
	state.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode run state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write run state: %w", err)
	}
	return nil
}

// Clear removes the state file. A missing file is not an error.
func (s *StateFile) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear run state: %w", err)
	}
	return nil
}

// TrackState registers a listener that keeps the state file in step with the
// monitor: each snapshot is persisted, and the file is cleared once the job
// ends. Returns the handle so the caller can detach it.
func TrackState(monitor *Monitor, file *StateFile) ListenerHandle {
	return monitor.AddListener(func(ev ProgressEvent) {
		if ev.Finished {
			_ = file.Clear()
			return
		}
		_ = file.Save(RunState{JobID: ev.JobID, LastPercent: ev.Fraction * 100})
	})
}

// Resume re-attaches the monitor to a job left unfinished by a previous
// session. State at or past 100 percent is stale and discarded. A job that
// ended while the client was away resolves in a single fetch: the first
// poll delivers the terminal event and the watch tears itself down.
func Resume(monitor *Monitor, file *StateFile) (uuid.UUID, bool, error) {
	state, err := file.Load()
	if err != nil {
		return uuid.Nil, false, err
	}
	if state == nil {
		return uuid.Nil, false, nil
	}
	if state.LastPercent >= 100 {
		_ = file.Clear()
		return uuid.Nil, false, nil
	}
	monitor.Start(state.JobID)
	return state.JobID, true, nil
}

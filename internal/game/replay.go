package game

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Replay is the ordered record of one battle: every applied mutation
// with the events it produced and a snapshot of the resulting state.
// Steps are appended by the owning session and replayed step by step
// for post-game review.
type Replay struct {
	BattleID string       `json:"battle_id"`
	Steps    []ReplayStep `json:"steps"`

	cursor int
	mu     sync.RWMutex
}

// ReplayStep is one recorded mutation.
type ReplayStep struct {
	Index      int        `json:"index"`
	ActionKind ActionKind `json:"action_kind,omitempty"` // empty for sandbox mutations
	Actor      int        `json:"actor"`
	Sandbox    bool       `json:"sandbox,omitempty"`
	Events     []Event    `json:"events"`
	State      *GameState `json:"state"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// NewReplay creates an empty replay for the battle.
func NewReplay(battleID string) *Replay {
	return &Replay{BattleID: battleID}
}

// Record appends a resolved action. The state is snapshotted, so later
// mutations never leak into recorded steps.
func (r *Replay) Record(act Action, events []Event, state *GameState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Steps = append(r.Steps, ReplayStep{
		Index:      len(r.Steps),
		ActionKind: act.Kind(),
		Actor:      act.Actor(),
		Events:     events,
		State:      state.Clone(),
		RecordedAt: time.Now(),
	})
}

// RecordSandbox appends a sandbox mutation.
func (r *Replay) RecordSandbox(player int, events []Event, state *GameState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Steps = append(r.Steps, ReplayStep{
		Index:      len(r.Steps),
		Actor:      player,
		Sandbox:    true,
		Events:     events,
		State:      state.Clone(),
		RecordedAt: time.Now(),
	})
}

// Size returns the number of recorded steps.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Steps)
}

// Start rewinds the playback cursor to the first step.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursor = 0
}

// Next returns the step at the cursor and advances it, or nil at the end.
func (r *Replay) Next() *ReplayStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor >= len(r.Steps) {
		return nil
	}
	step := &r.Steps[r.cursor]
	r.cursor++
	return step
}

// Previous steps the cursor back and returns that step, or nil at the
// beginning.
func (r *Replay) Previous() *ReplayStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor == 0 {
		return nil
	}
	r.cursor--
	return &r.Steps[r.cursor]
}

// Save writes the replay as gzipped JSON under dir and returns the file
// path. The file name is derived from the battle ID.
func (r *Replay) Save(dir string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create replay dir: %w", err)
	}
	path := filepath.Join(dir, r.BattleID+".replay.json.gz")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create replay file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(r); err != nil {
		gz.Close()
		return "", fmt.Errorf("encode replay: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("flush replay: %w", err)
	}
	return path, nil
}

// LoadReplay reads a replay written by Save.
func LoadReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read replay: %w", err)
	}
	defer gz.Close()

	var r Replay
	if err := json.NewDecoder(gz).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode replay: %w", err)
	}
	return &r, nil
}

package engine

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types written to the trace.
const (
	EventRunStart = "run_start"
	EventRound    = "round"
	EventChange   = "change_detected"
	EventPhase    = "phase_transition"
	EventRunEnd   = "run_end"
)

// Event is one line of the JSONL trace. Payload carries the
// type-specific data (round metrics, phase names, final result).
type Event struct {
	ID        string `json:"id"`
	RunID     string `json:"run_id"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
	Round     int    `json:"round"`
	Node      string `json:"node,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// Recorder appends events to a JSONL trace file. Safe for concurrent
// use; the engine records from the round loop, tests may record from
// helpers.
type Recorder struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

func NewRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Recorder{f: f, enc: json.NewEncoder(f)}, nil
}

// Record writes one event line. Errors are returned, not fatal: a run
// is still valid if its trace is truncated.
func (r *Recorder) Record(runID, eventType string, round int, node string, payload any) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(Event{
		ID:        uuid.NewString(),
		RunID:     runID,
		Timestamp: time.Now().UnixMilli(),
		Type:      eventType,
		Round:     round,
		Node:      node,
		Payload:   payload,
	})
}

func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}

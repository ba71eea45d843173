package jobs

import (
	"errors"
	"fmt"
	"sync"

	"whisper-batch/internal/domain"
)

// ErrJobAlreadyRunning is returned when starting a second batch while one is active.
var ErrJobAlreadyRunning = errors.New("transcription already running")

// ErrNoRunningJob is returned when no batch is in flight for the request.
var ErrNoRunningJob = errors.New("no running transcription")

// Manager tracks the single allowed active batch and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Job
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Job{
			Status: domain.JobStatusIdle,
		},
	}
}

// Start claims the single run slot for a new batch of total inputs.
func (m *Manager) Start(jobID string, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isRunning(m.current.Status) {
		return ErrJobAlreadyRunning
	}

	m.current = domain.Job{
		ID:     jobID,
		Status: domain.JobStatusExtracting,
		Total:  total,
	}
	return nil
}

// Transition validates and applies state transitions for the current batch.
func (m *Manager) Transition(status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" && status != domain.JobStatusIdle {
		return fmt.Errorf("cannot transition without an active job")
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// Current returns a snapshot of the current batch.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset clears job metadata and returns manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Job{Status: domain.JobStatusIdle}
}

// IsRunning reports whether a batch is in flight.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isRunning(m.current.Status)
}

// Finish moves the batch identified by jobID to a terminal status and frees
// the run slot. Any other job is left untouched and ErrNoRunningJob is returned.
func (m *Manager) Finish(jobID string, status domain.JobStatus) error {
	switch status {
	case domain.JobStatusDone, domain.JobStatusFailed, domain.JobStatusCancelled:
	default:
		return fmt.Errorf("not a terminal status: %s", status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID != jobID || !isRunning(m.current.Status) {
		return ErrNoRunningJob
	}
	m.current.Status = status
	return nil
}

// isRunning checks if a status represents active batch execution.
func isRunning(status domain.JobStatus) bool {
	switch status {
	case domain.JobStatusExtracting, domain.JobStatusTranscribing, domain.JobStatusWriting:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the job state machine. Running stages may
// follow each other in any order because each input restarts the cycle.
func isValidTransition(from, to domain.JobStatus) bool {
	switch {
	case from == domain.JobStatusIdle:
		return to == domain.JobStatusExtracting
	case isRunning(from):
		return isRunning(to) || to == domain.JobStatusDone || to == domain.JobStatusFailed || to == domain.JobStatusCancelled
	case from == domain.JobStatusDone, from == domain.JobStatusFailed, from == domain.JobStatusCancelled:
		return to == domain.JobStatusExtracting || to == domain.JobStatusIdle
	default:
		return false
	}
}

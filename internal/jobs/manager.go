// Package jobs tracks the single allowed in-flight job, its state machine,
// and the event stream observers consume.
package jobs

import (
	"errors"
	"fmt"
	"sync"

	"speech-transcriber/internal/domain"
)

// ErrBusy is returned when submitting work while a job is active. Submissions
// are rejected rather than queued or cancel-and-replaced.
var ErrBusy = errors.New("a job is already running")

// ErrNoRunningJob is returned when cancel is requested with nothing active.
var ErrNoRunningJob = errors.New("no running job")

// ErrModelNotReady is returned when transcription starts before a model load.
var ErrModelNotReady = errors.New("model is not loaded")

// ErrAudioNotReady is returned when transcription starts before an audio load.
var ErrAudioNotReady = errors.New("audio is not loaded")

// Manager tracks the active job and enforces the stage transition rules.
// Model and audio readiness are reached independently and in either order,
// and both persist across jobs so a retry reuses the loaded model and the
// decoded audio.
type Manager struct {
	mu         sync.RWMutex
	current    domain.Job
	modelReady bool
	audioReady bool
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Job{Stage: domain.StageIdle},
	}
}

// Begin admits a new job and moves it to its entry stage. A second
// submission while one is active is rejected with ErrBusy; a transcription
// request additionally requires both model and audio readiness.
func (m *Manager) Begin(job domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isRunning(m.current.Stage) {
		return ErrBusy
	}

	switch job.Kind {
	case domain.JobKindModelLoad:
		job.Stage = domain.StageModelLoading
	case domain.JobKindAudioLoad:
		job.Stage = domain.StageAudioLoading
	case domain.JobKindTranscription:
		if !m.modelReady {
			return ErrModelNotReady
		}
		if !m.audioReady {
			return ErrAudioNotReady
		}
		job.Stage = domain.StageResampling
	default:
		return fmt.Errorf("unknown job kind: %s", job.Kind)
	}

	m.current = job
	return nil
}

// Transition validates and applies a stage transition for the current job.
// Reaching model or audio readiness latches the corresponding flag.
func (m *Manager) Transition(stage domain.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" && stage != domain.StageIdle {
		return fmt.Errorf("cannot transition without an active job")
	}
	if stage == m.current.Stage {
		return nil
	}
	if !isValidTransition(m.current.Stage, stage) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Stage, stage)
	}

	m.current.Stage = stage
	switch stage {
	case domain.StageModelReady:
		m.modelReady = true
	case domain.StageAudioReady:
		m.audioReady = true
	}
	return nil
}

// Cancel moves an active job to cancelled state.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isRunning(m.current.Stage) {
		return ErrNoRunningJob
	}
	m.current.Stage = domain.StageCancelled
	return nil
}

// Current returns a snapshot of the current job.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsRunning reports whether the current stage is an active one.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isRunning(m.current.Stage)
}

// ModelReady reports whether a model load has completed at least once.
func (m *Manager) ModelReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.modelReady
}

// AudioReady reports whether an audio load has completed at least once.
func (m *Manager) AudioReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.audioReady
}

// Reset clears job metadata and returns the manager to idle. Readiness
// flags persist: the cached model and decoded audio outlive individual jobs.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Job{Stage: domain.StageIdle}
}

// isRunning checks whether a stage represents active background execution.
func isRunning(stage domain.Stage) bool {
	switch stage {
	case domain.StageModelLoading, domain.StageAudioLoading, domain.StageResampling, domain.StageTranscribing:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed state machine edges.
func isValidTransition(from, to domain.Stage) bool {
	switch from {
	case domain.StageModelLoading:
		return to == domain.StageModelReady || to == domain.StageFailed || to == domain.StageCancelled
	case domain.StageAudioLoading:
		return to == domain.StageAudioReady || to == domain.StageFailed || to == domain.StageCancelled
	case domain.StageResampling:
		return to == domain.StageTranscribing || to == domain.StageFailed || to == domain.StageCancelled
	case domain.StageTranscribing:
		return to == domain.StageCompleted || to == domain.StageFailed || to == domain.StageCancelled
	case domain.StageIdle, domain.StageModelReady, domain.StageAudioReady,
		domain.StageCompleted, domain.StageFailed, domain.StageCancelled:
		return to == domain.StageIdle
	default:
		return false
	}
}

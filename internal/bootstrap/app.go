// Package bootstrap wires configuration, the jobs state machine, the audio
// decoder, and the inference engine into the orchestrator the observer layer
// talks to.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"speech-transcriber/internal/audio"
	"speech-transcriber/internal/config"
	"speech-transcriber/internal/diagnostics"
	"speech-transcriber/internal/domain"
	"speech-transcriber/internal/engine"
	"speech-transcriber/internal/jobs"
	"speech-transcriber/internal/transcribe"
)

// modelEngine isolates the inference engine behind an interface.
type modelEngine interface {
	LoadModel(modelPath string, forceCPU bool) (*engine.ModelHandle, error)
	Transcribe(ctx context.Context, buf audio.Buffer) (string, error)
	Handle() *engine.ModelHandle
}

// audioDecoder isolates the container decoder behind an interface.
type audioDecoder interface {
	Decode(ctx context.Context, path string) (audio.Buffer, error)
}

// pipelineRunner isolates the transcription pipeline behind an interface.
type pipelineRunner interface {
	Run(ctx context.Context, req transcribe.Request) (transcribe.Result, error)
}

// App exposes the orchestrator operations: load a model, load audio, run one
// transcription job at a time, cancel cooperatively, and observe everything
// through the event bus. All pipeline work happens on background goroutines;
// observers are never blocked on.
type App struct {
	Store       config.Store
	Jobs        *jobs.Manager
	Engine      modelEngine
	Decoder     audioDecoder
	Pipeline    pipelineRunner
	Diagnostics domain.DiagnosticReport
	checker     *diagnostics.Checker
	events      *jobs.EventBus

	mu          sync.Mutex
	settings    domain.Settings
	activeJobID string
	cancel      context.CancelFunc
	audioBuf    audio.Buffer
	hasAudio    bool
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewJSONStore(filepath.Join(homeDir, ".speech-transcriber", "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	eng := engine.New()
	return &App{
		Store:       store,
		Jobs:        jobs.NewManager(),
		Engine:      eng,
		Decoder:     audio.NewDecoder(),
		Pipeline:    transcribe.NewPipeline(eng),
		Diagnostics: report,
		checker:     checker,
		events:      jobs.NewEventBus(1000),
		settings:    settings,
	}, nil
}

// NewForTests wires an App from injectable collaborators.
func NewForTests(store config.Store, eng modelEngine, dec audioDecoder, pipe pipelineRunner) *App {
	settings, _ := store.Load()
	return &App{
		Store:    store,
		Jobs:     jobs.NewManager(),
		Engine:   eng,
		Decoder:  dec,
		Pipeline: pipe,
		events:   jobs.NewEventBus(100),
		settings: settings,
	}
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns environment checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.settings = settings
	a.mu.Unlock()
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
	return a.Diagnostics, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.settings = settings
	a.mu.Unlock()
	return settings, nil
}

// SaveSettings normalizes and persists settings.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.settings = normalized
	a.mu.Unlock()
	return normalized, nil
}

// LoadModel starts an asynchronous model load. The engine tries the
// accelerated device first and falls back to the CPU internally; only total
// failure of both reaches the event stream. Rejected with ErrBusy while any
// job is running, including transcription.
func (a *App) LoadModel(modelPath string) (domain.Job, error) {
	job := domain.Job{
		ID:        uuid.NewString(),
		Kind:      domain.JobKindModelLoad,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.Jobs.Begin(job); err != nil {
		return domain.Job{}, err
	}

	ctx := a.beginWork(job.ID)
	a.publishStage(job.ID, domain.StageModelLoading, "Loading model "+filepath.Base(modelPath))

	go a.runModelLoad(ctx, job.ID, modelPath)
	return a.Jobs.Current(), nil
}

// runModelLoad executes the two-attempt device selection off the caller's
// goroutine and reports the effective device.
func (a *App) runModelLoad(ctx context.Context, jobID, modelPath string) {
	defer a.clearActiveJob(jobID)

	forceCPU := a.currentSettings().Device == config.DeviceCPU
	handle, err := a.Engine.LoadModel(modelPath, forceCPU)
	if ctx.Err() != nil {
		// The library offers no load interruption; a cancel request is
		// honored here, at the first checkpoint after it returns.
		a.finishCancelled(jobID)
		return
	}
	if err != nil {
		a.finishFailed(jobID, err)
		return
	}

	if handle.Device == domain.DeviceCPU && !forceCPU {
		log.Warn().Str("model", modelPath).Msg("accelerated device unavailable, using cpu fallback")
	}

	a.rememberModelPath(modelPath)
	_ = a.Jobs.Transition(domain.StageModelReady)
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeCompleted,
		Stage:   domain.StageModelReady,
		Device:  handle.Device,
		Message: "Model ready on " + string(handle.Device),
	})
}

// LoadAudio starts an asynchronous decode of the file at path. The decoded
// waveform is cached at its native rate and channel count; normalization
// happens inside the transcription job.
func (a *App) LoadAudio(path string) (domain.Job, error) {
	job := domain.Job{
		ID:        uuid.NewString(),
		Kind:      domain.JobKindAudioLoad,
		AudioPath: path,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.Jobs.Begin(job); err != nil {
		return domain.Job{}, err
	}

	ctx := a.beginWork(job.ID)
	a.publishStage(job.ID, domain.StageAudioLoading, "Decoding "+filepath.Base(path))

	go a.runAudioLoad(ctx, job.ID, path)
	return a.Jobs.Current(), nil
}

// runAudioLoad decodes the container and caches the resulting buffer.
func (a *App) runAudioLoad(ctx context.Context, jobID, path string) {
	defer a.clearActiveJob(jobID)

	buf, err := a.Decoder.Decode(ctx, path)
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		a.finishCancelled(jobID)
		return
	}
	if err != nil {
		a.finishFailed(jobID, err)
		return
	}

	a.mu.Lock()
	a.audioBuf = buf
	a.hasAudio = true
	a.mu.Unlock()

	_ = a.Jobs.Transition(domain.StageAudioReady)
	a.publishEvent(jobs.Event{
		JobID: jobID,
		Type:  jobs.EventTypeCompleted,
		Stage: domain.StageAudioReady,
		Message: fmt.Sprintf("Decoded %d frames at %d Hz, %d channel(s)",
			buf.Frames(), buf.SampleRate, buf.Channels),
	})
}

// StartTranscription submits the one allowed transcription job over the
// cached audio and loaded model. Busy, model-not-ready and audio-not-ready
// submissions are rejected synchronously without touching the active job.
func (a *App) StartTranscription() (domain.Job, error) {
	a.mu.Lock()
	input := a.audioBuf
	a.mu.Unlock()

	job := domain.Job{
		ID:        uuid.NewString(),
		Kind:      domain.JobKindTranscription,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.Jobs.Begin(job); err != nil {
		return domain.Job{}, err
	}

	ctx := a.beginWork(job.ID)
	go a.runTranscriptionJob(ctx, job.ID, input)
	return a.Jobs.Current(), nil
}

// runTranscriptionJob executes the pipeline and maps outcomes to job events.
func (a *App) runTranscriptionJob(ctx context.Context, jobID string, input audio.Buffer) {
	defer a.clearActiveJob(jobID)

	req := transcribe.Request{
		Audio: input,
		OnStage: func(stage domain.Stage) {
			if err := a.Jobs.Transition(stage); err == nil {
				a.publishStage(jobID, stage, "Entered "+string(stage)+" stage")
			}
		},
		OnProgress: func(fraction float64) {
			a.publishEvent(jobs.Event{
				JobID:    jobID,
				Type:     jobs.EventTypeProgress,
				Progress: fraction,
			})
		},
	}

	result, err := a.Pipeline.Run(ctx, req)
	if errors.Is(err, context.Canceled) {
		a.finishCancelled(jobID)
		return
	}
	if err != nil {
		a.finishFailed(jobID, err)
		return
	}

	_ = a.Jobs.Transition(domain.StageCompleted)
	a.publishEvent(jobs.Event{
		JobID: jobID,
		Type:  jobs.EventTypeCompleted,
		Stage: domain.StageCompleted,
		Text:  result.Text,
	})
}

// Cancel requests cooperative cancellation of the running job. The job keeps
// running until the next checkpoint; observers see a pending notice now and
// the cancelled terminal event once the checkpoint is reached.
func (a *App) Cancel() error {
	a.mu.Lock()
	cancel := a.cancel
	jobID := a.activeJobID
	a.mu.Unlock()

	if cancel == nil || jobID == "" {
		return jobs.ErrNoRunningJob
	}

	// The notice goes out before the context fires so it can never be
	// sequenced after the worker's terminal cancelled event.
	a.publishStage(jobID, a.Jobs.Current().Stage, "Cancellation requested; stopping at next checkpoint")
	cancel()
	return nil
}

// CurrentJob returns current job metadata and stage.
func (a *App) CurrentJob() domain.Job {
	return a.Jobs.Current()
}

// Device returns the device mode of the loaded model, if any.
func (a *App) Device() (domain.Device, bool) {
	handle := a.Engine.Handle()
	if handle == nil {
		return "", false
	}
	return handle.Device, true
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// SubscribeEvents registers a live event channel for an observer.
func (a *App) SubscribeEvents() (<-chan jobs.Event, func()) {
	return a.events.Subscribe()
}

// beginWork installs cancellation state for a newly admitted job.
func (a *App) beginWork(jobID string) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.activeJobID = jobID
	a.cancel = cancel
	a.mu.Unlock()
	return ctx
}

// finishCancelled marks the job cancelled and emits its terminal event.
func (a *App) finishCancelled(jobID string) {
	if err := a.Jobs.Cancel(); err != nil && !errors.Is(err, jobs.ErrNoRunningJob) {
		log.Warn().Err(err).Str("job", jobID).Msg("cancel transition")
	}
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeCancelled,
		Stage:   domain.StageCancelled,
		Message: "Job cancelled",
	})
}

// finishFailed marks the job failed and emits its terminal event. The loaded
// model and any previously decoded audio stay valid for the next attempt.
func (a *App) finishFailed(jobID string, err error) {
	_ = a.Jobs.Transition(domain.StageFailed)
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeFailed,
		Stage:   domain.StageFailed,
		Code:    failureCode(err),
		Message: err.Error(),
	})
}

// publishStage sends a normalized stage event.
func (a *App) publishStage(jobID string, stage domain.Stage, message string) {
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStage,
		Stage:   stage,
		Message: message,
	})
}

// publishEvent stores event history and fans out to subscribers.
func (a *App) publishEvent(event jobs.Event) {
	a.events.Publish(event)
}

// clearActiveJob clears cancellation handles for finished job IDs.
func (a *App) clearActiveJob(jobID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeJobID == jobID {
		a.activeJobID = ""
		if a.cancel != nil {
			a.cancel()
		}
		a.cancel = nil
	}
}

// currentSettings snapshots the in-memory settings.
func (a *App) currentSettings() domain.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// rememberModelPath persists the last successfully loaded model path.
func (a *App) rememberModelPath(modelPath string) {
	a.mu.Lock()
	settings := a.settings
	settings.ModelPath = modelPath
	a.settings = settings
	a.mu.Unlock()

	if err := a.Store.Save(settings); err != nil {
		log.Warn().Err(err).Msg("persist model path")
	}
}

// failureCode maps error categories to stable identifiers observers can
// render actionable messages from.
func failureCode(err error) string {
	switch {
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, audio.ErrNoAudioTrack):
		return "no_audio_track"
	case errors.Is(err, audio.ErrDecode):
		return "decode_error"
	case errors.Is(err, audio.ErrInvalidAudio):
		return "invalid_audio"
	case errors.Is(err, engine.ErrModelLoad):
		return "model_load_error"
	case errors.Is(err, engine.ErrPreconditionViolated):
		return "precondition_violated"
	case errors.Is(err, engine.ErrEmptyAudio):
		return "empty_audio"
	case errors.Is(err, engine.ErrTranscription):
		return "transcription_error"
	case errors.Is(err, engine.ErrNoModel):
		return "model_not_loaded"
	case errors.Is(err, jobs.ErrBusy):
		return "busy"
	default:
		return "internal_error"
	}
}

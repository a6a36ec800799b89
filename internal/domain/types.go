package domain

import "time"

// Stage tracks the orchestrator state machine for transcription work.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageModelLoading Stage = "model_loading"
	StageModelReady   Stage = "model_ready"
	StageAudioLoading Stage = "audio_loading"
	StageAudioReady   Stage = "audio_ready"
	StageResampling   Stage = "resampling"
	StageTranscribing Stage = "transcribing"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
	StageCancelled    Stage = "cancelled"
)

// JobKind distinguishes the user actions that produce background jobs.
type JobKind string

const (
	JobKindModelLoad     JobKind = "model_load"
	JobKindAudioLoad     JobKind = "audio_load"
	JobKindTranscription JobKind = "transcription"
)

// Device identifies which inference backend ended up in effect.
type Device string

const (
	DeviceAccelerated Device = "accelerated"
	DeviceCPU         Device = "cpu"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ModelPath string `json:"modelPath"`
	Device    string `json:"device"`
}

// Job stores identity and lifecycle state for one background operation.
type Job struct {
	ID        string    `json:"id"`
	Kind      JobKind   `json:"kind"`
	AudioPath string    `json:"audioPath,omitempty"`
	Stage     Stage     `json:"stage"`
	CreatedAt time.Time `json:"createdAt"`
}

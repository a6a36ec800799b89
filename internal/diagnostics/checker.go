// Package diagnostics validates the runtime environment before jobs run.
package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"speech-transcriber/internal/domain"
)

// Checker validates external tools and required filesystem paths.
type Checker struct {
	lookPath   func(string) (string, error)
	getenv     func(string) string
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		getenv:     os.Getenv,
		stat:       os.Stat,
		readDir:    os.ReadDir,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all startup checks and returns a combined report. The
// accelerated runtime check can only warn: its absence is recovered by the
// CPU fallback and never blocks transcription.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkFFmpeg(),
		c.checkModelPath(settings.ModelPath),
		c.checkAcceleratedRuntime(),
		c.checkTempDir(),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkFFmpeg verifies the converter used for Opus/AAC/WMA/WebM inputs.
// WAV, MP3, FLAC and Vorbis decode natively, so a missing ffmpeg only
// narrows the accepted formats.
func (c *Checker) checkFFmpeg() domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "tool_ffmpeg",
		Name: "ffmpeg",
	}

	path, err := c.lookPath("ffmpeg")
	if err != nil {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "ffmpeg not found in PATH."
		item.Hint = "Opus, M4A/AAC, WMA and WebM inputs need ffmpeg; WAV, MP3, FLAC and OGG/Vorbis decode without it."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item
}

// checkModelPath validates the configured model file or model directory.
func (c *Checker) checkModelPath(modelPath string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "model_path",
		Name: "Model path",
	}

	if strings.TrimSpace(modelPath) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Model path is empty."
		item.Hint = "Set a model file path or a directory containing whisper models."
		return item
	}

	info, err := c.stat(modelPath)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("Model path does not exist: %s", modelPath)
		} else {
			item.Message = fmt.Sprintf("Cannot access model path: %s", modelPath)
		}
		item.Hint = "Download a whisper.cpp model (models download) or configure an existing one."
		return item
	}

	if !info.IsDir() {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Model file found: %s", modelPath)
		return item
	}

	entries, err := c.readDir(modelPath)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot read model directory: %s", modelPath)
		item.Hint = "Check permissions for the model directory."
		return item
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("Model directory is valid: %s", modelPath)
			return item
		}
	}

	item.Status = domain.DiagnosticStatusFail
	item.Message = fmt.Sprintf("No model files found in directory: %s", modelPath)
	item.Hint = "Place a .bin or .gguf model file here or point to a model file directly."
	return item
}

// checkAcceleratedRuntime probes for a CUDA installation.
func (c *Checker) checkAcceleratedRuntime() domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "accelerated_runtime",
		Name: "Accelerated runtime",
	}

	if c.getenv("CUDA_PATH") != "" {
		item.Status = domain.DiagnosticStatusPass
		item.Message = "CUDA runtime detected via CUDA_PATH."
		return item
	}
	if path, err := c.lookPath("nvidia-smi"); err == nil {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("NVIDIA driver tools found at %s", path)
		return item
	}

	item.Status = domain.DiagnosticStatusWarn
	item.Message = "No accelerated runtime detected; inference will run on the CPU."
	item.Hint = "Install the CUDA runtime to enable GPU inference. CPU mode works without it."
	return item
}

// checkTempDir validates that decode scratch space is writable.
func (c *Checker) checkTempDir() domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "temp_dir",
		Name: "Temporary directory",
	}

	tmpFile, err := c.createTemp("", ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Temporary directory is not writable."
		item.Hint = "Decoding compressed containers needs writable scratch space (TMPDIR)."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable: %s", filepath.Dir(tmpPath))
	return item
}

// NewCheckerForTests creates a checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	getenv func(string) string,
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		getenv:     getenv,
		stat:       stat,
		readDir:    readDir,
		createTemp: createTemp,
		remove:     remove,
	}
}

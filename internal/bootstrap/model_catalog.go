package bootstrap

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"speech-transcriber/internal/domain"
)

const modelDownloadTimeout = 45 * time.Minute

const modelRepoBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

var modelCatalog = []domain.ModelOption{
	{
		ID:          "tiny.en",
		Name:        "Tiny (English)",
		FileName:    "ggml-tiny.en.bin",
		URL:         modelRepoBaseURL + "ggml-tiny.en.bin",
		SizeLabel:   "~75 MB",
		Description: "Fastest, English-only model.",
	},
	{
		ID:          "tiny",
		Name:        "Tiny (Multilingual)",
		FileName:    "ggml-tiny.bin",
		URL:         modelRepoBaseURL + "ggml-tiny.bin",
		SizeLabel:   "~75 MB",
		Description: "Fastest multilingual model.",
	},
	{
		ID:          "base.en",
		Name:        "Base (English)",
		FileName:    "ggml-base.en.bin",
		URL:         modelRepoBaseURL + "ggml-base.en.bin",
		SizeLabel:   "~142 MB",
		Description: "Balanced speed/quality, English-only.",
	},
	{
		ID:          "base",
		Name:        "Base (Multilingual)",
		FileName:    "ggml-base.bin",
		URL:         modelRepoBaseURL + "ggml-base.bin",
		SizeLabel:   "~142 MB",
		Description: "Balanced speed/quality, multilingual.",
	},
	{
		ID:          "small.en",
		Name:        "Small (English)",
		FileName:    "ggml-small.en.bin",
		URL:         modelRepoBaseURL + "ggml-small.en.bin",
		SizeLabel:   "~466 MB",
		Description: "Higher quality, English-only.",
	},
	{
		ID:          "small",
		Name:        "Small (Multilingual)",
		FileName:    "ggml-small.bin",
		URL:         modelRepoBaseURL + "ggml-small.bin",
		SizeLabel:   "~466 MB",
		Description: "Higher quality multilingual model.",
	},
	{
		ID:          "medium.en",
		Name:        "Medium (English)",
		FileName:    "ggml-medium.en.bin",
		URL:         modelRepoBaseURL + "ggml-medium.en.bin",
		SizeLabel:   "~1.5 GB",
		Description: "High quality, English-only.",
	},
	{
		ID:          "medium",
		Name:        "Medium (Multilingual)",
		FileName:    "ggml-medium.bin",
		URL:         modelRepoBaseURL + "ggml-medium.bin",
		SizeLabel:   "~1.5 GB",
		Description: "High quality multilingual model.",
	},
	{
		ID:          "large-v3",
		Name:        "Large v3",
		FileName:    "ggml-large-v3.bin",
		URL:         modelRepoBaseURL + "ggml-large-v3.bin",
		SizeLabel:   "~2.9 GB",
		Description: "Highest quality multilingual model.",
	},
	{
		ID:          "large-v3-turbo",
		Name:        "Large v3 Turbo",
		FileName:    "ggml-large-v3-turbo.bin",
		URL:         modelRepoBaseURL + "ggml-large-v3-turbo.bin",
		SizeLabel:   "~1.6 GB",
		Description: "Faster large-v3 variant.",
	},
}

// ListModels returns the built-in whisper.cpp presets, marking entries that
// already exist in a known model directory.
func (a *App) ListModels() []domain.ModelOption {
	models := make([]domain.ModelOption, len(modelCatalog))
	copy(models, modelCatalog)

	settings, err := a.Store.Load()
	markDownloadedModels(models, knownModelDirs(settings, err == nil))
	return models
}

// DownloadModel fetches the preset with the given ID into the configured
// model directory and updates settings.ModelPath to the downloaded file.
func (a *App) DownloadModel(modelID string) (domain.Settings, error) {
	model, found := modelByID(strings.TrimSpace(modelID))
	if !found {
		return domain.Settings{}, &UnknownModelError{ID: modelID}
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, err
	}

	downloadDir, err := resolveModelDownloadDir(settings.ModelPath)
	if err != nil {
		return domain.Settings{}, err
	}

	targetPath := filepath.Join(downloadDir, model.FileName)
	log.Info().Str("model", model.ID).Str("dest", targetPath).Msg("downloading model")
	onProgress := func(received, total int64) {
		if total > 0 {
			log.Info().Str("model", model.ID).Int64("received", received).Int64("total", total).
				Msgf("download %d%%", received*100/total)
		}
	}
	if err := downloadURLToFile(targetPath, model.URL, modelDownloadTimeout, onProgress); err != nil {
		return domain.Settings{}, err
	}

	settings.ModelPath = targetPath
	if err := a.Store.Save(settings); err != nil {
		return domain.Settings{}, err
	}

	a.mu.Lock()
	a.settings = settings
	a.mu.Unlock()
	return settings, nil
}

func modelByID(id string) (domain.ModelOption, bool) {
	for _, model := range modelCatalog {
		if model.ID == id {
			return model, true
		}
	}
	return domain.ModelOption{}, false
}

// UnknownModelError reports a model ID with no catalog preset.
type UnknownModelError struct {
	ID string
}

func (e *UnknownModelError) Error() string {
	return "unknown model id: " + e.ID
}

// resolveModelDownloadDir maps settings.ModelPath to a directory: the path
// itself when it is (or looks like) a directory, its parent when it names a
// model file.
func resolveModelDownloadDir(modelPath string) (string, error) {
	trimmed := strings.TrimSpace(modelPath)
	if trimmed == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(homeDir, ".speech-transcriber", "models"), nil
	}

	if info, err := os.Stat(trimmed); err == nil {
		if info.IsDir() {
			return trimmed, nil
		}
		return filepath.Dir(trimmed), nil
	}

	ext := strings.ToLower(filepath.Ext(trimmed))
	if ext == ".bin" || ext == ".gguf" {
		return filepath.Dir(trimmed), nil
	}
	return trimmed, nil
}

// knownModelDirs collects directories that may already hold downloaded
// models: the default location plus whatever the settings point at.
func knownModelDirs(settings domain.Settings, hasSettings bool) []string {
	seen := map[string]struct{}{}
	add := func(path string) {
		p := filepath.Clean(strings.TrimSpace(path))
		if p == "" || p == "." {
			return
		}
		seen[p] = struct{}{}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		add(filepath.Join(homeDir, ".speech-transcriber", "models"))
	}

	if hasSettings && strings.TrimSpace(settings.ModelPath) != "" {
		modelPath := strings.TrimSpace(settings.ModelPath)
		if info, err := os.Stat(modelPath); err == nil && !info.IsDir() {
			add(filepath.Dir(modelPath))
		} else {
			add(modelPath)
		}
	}

	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	return dirs
}

func markDownloadedModels(models []domain.ModelOption, modelDirs []string) {
	for i := range models {
		for _, dir := range modelDirs {
			candidate := filepath.Join(dir, models[i].FileName)
			info, err := os.Stat(candidate)
			if err != nil || info.IsDir() {
				continue
			}
			models[i].Downloaded = true
			models[i].LocalPath = candidate
			break
		}
	}
}

// downloadURLToFile streams a URL into destinationPath via a sibling temp
// file, renaming only after the full body has been written. A partial
// download never replaces an existing model file. onProgress, when non-nil,
// is called at most once per crossed decile with bytes received so far.
func downloadURLToFile(destinationPath, sourceURL string, timeout time.Duration, onProgress func(received, total int64)) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return err
	}

	tmpPath := destinationPath + ".download"
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "speech-transcriber")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &downloadStatusError{status: resp.Status}
	}

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	body := io.Reader(resp.Body)
	if onProgress != nil {
		body = &progressReader{r: resp.Body, total: resp.ContentLength, onProgress: onProgress}
	}

	_, copyErr := io.Copy(file, body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return copyErr
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return closeErr
	}

	if err := os.Rename(tmpPath, destinationPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

type downloadStatusError struct {
	status string
}

func (e *downloadStatusError) Error() string {
	return "unexpected HTTP status: " + e.status
}

// progressReader reports download progress once per crossed decile.
type progressReader struct {
	r          io.Reader
	total      int64
	received   int64
	lastDecile int64
	onProgress func(received, total int64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.received += int64(n)
	if p.total > 0 {
		if decile := p.received * 10 / p.total; decile > p.lastDecile {
			p.lastDecile = decile
			p.onProgress(p.received, p.total)
		}
	}
	return n, err
}

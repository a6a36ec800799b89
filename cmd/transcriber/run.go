package transcriber

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"speech-transcriber/internal/bootstrap"
	"speech-transcriber/internal/config"
	"speech-transcriber/internal/domain"
	"speech-transcriber/internal/jobs"
)

var (
	runModelPath string
	runForceCPU  bool
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <audio-file>",
	Short: "Transcribe one audio file",
	Long: `Load a whisper model, decode the audio file, and print the transcript
to stdout. Progress and stage changes are logged to stderr. Interrupting with
Ctrl+C requests cancellation; the job stops at its next checkpoint.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscription,
}

func init() {
	runCmd.Flags().StringVarP(&runModelPath, "model", "m", "", "path to a whisper.cpp model file (defaults to the configured model)")
	runCmd.Flags().BoolVar(&runForceCPU, "cpu", false, "pin inference to the CPU (persisted in settings)")
	rootCmd.AddCommand(runCmd)
}

func runTranscription(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New()
	if err != nil {
		return err
	}

	if report := app.GetDiagnostics(); report.HasFailures {
		for _, item := range report.Items {
			if item.Status == domain.DiagnosticStatusFail {
				log.Warn().Str("check", item.Name).Msg(item.Message)
			}
		}
	}

	modelPath, err := resolveRunModelPath(app)
	if err != nil {
		return err
	}
	if runForceCPU {
		settings, err := app.GetSettings()
		if err != nil {
			return err
		}
		settings.Device = config.DeviceCPU
		if _, err := app.SaveSettings(settings); err != nil {
			return err
		}
	}

	events, unsubscribe := app.SubscribeEvents()
	defer unsubscribe()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)
	go func() {
		for range interrupts {
			if err := app.Cancel(); err != nil && !errors.Is(err, jobs.ErrNoRunningJob) {
				log.Warn().Err(err).Msg("cancel request")
			}
		}
	}()

	job, err := app.LoadModel(modelPath)
	if err != nil {
		return err
	}
	if _, err := awaitJob(events, job.ID); err != nil {
		return err
	}

	job, err = app.LoadAudio(args[0])
	if err != nil {
		return err
	}
	if _, err := awaitJob(events, job.ID); err != nil {
		return err
	}

	job, err = app.StartTranscription()
	if err != nil {
		return err
	}
	final, err := awaitJob(events, job.ID)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), final.Text)
	return nil
}

// resolveRunModelPath prefers the --model flag and falls back to the
// persisted model path when it names a file.
func resolveRunModelPath(app *bootstrap.App) (string, error) {
	if runModelPath != "" {
		return runModelPath, nil
	}

	settings, err := app.GetSettings()
	if err != nil {
		return "", err
	}
	info, err := os.Stat(settings.ModelPath)
	if err != nil || info.IsDir() {
		return "", errors.New("no model configured; pass --model or run 'models download'")
	}
	return settings.ModelPath, nil
}

// awaitJob drains events for one job until its terminal event, logging
// stages and progress along the way.
func awaitJob(events <-chan jobs.Event, jobID string) (jobs.Event, error) {
	for event := range events {
		if event.JobID != jobID {
			continue
		}

		switch event.Type {
		case jobs.EventTypeStage:
			log.Info().Str("stage", string(event.Stage)).Msg(event.Message)
		case jobs.EventTypeProgress:
			log.Debug().Float64("progress", event.Progress).Msg("progress")
		case jobs.EventTypeCompleted:
			if event.Device != "" {
				log.Info().Str("device", string(event.Device)).Msg(event.Message)
			}
			return event, nil
		case jobs.EventTypeFailed:
			return event, fmt.Errorf("%s (%s)", event.Message, event.Code)
		case jobs.EventTypeCancelled:
			return event, errors.New("job cancelled")
		}
	}
	return jobs.Event{}, errors.New("event stream closed before the job finished")
}

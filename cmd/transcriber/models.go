package transcriber

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"speech-transcriber/internal/bootstrap"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List and download whisper.cpp models",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available model presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap.New()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSIZE\tSTATUS\tDESCRIPTION")
		for _, model := range app.ListModels() {
			status := "-"
			if model.Downloaded {
				status = model.LocalPath
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", model.ID, model.SizeLabel, status, model.Description)
		}
		return w.Flush()
	},
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download <model-id>",
	Short: "Download a model preset and make it the configured model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap.New()
		if err != nil {
			return err
		}

		settings, err := app.DownloadModel(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Model ready: %s\n", settings.ModelPath)
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd, modelsDownloadCmd)
	rootCmd.AddCommand(modelsCmd)
}

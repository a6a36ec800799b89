package transcriber

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"speech-transcriber/internal/bootstrap"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment for tools and models",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap.New()
		if err != nil {
			return err
		}

		report, err := app.RefreshDiagnostics()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, item := range report.Items {
			fmt.Fprintf(out, "[%s] %s: %s\n", strings.ToUpper(string(item.Status)), item.Name, item.Message)
			if item.Hint != "" {
				fmt.Fprintf(out, "       %s\n", item.Hint)
			}
		}

		if report.HasFailures {
			return fmt.Errorf("environment has failing checks")
		}
		fmt.Fprintln(out, "All checks passed.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

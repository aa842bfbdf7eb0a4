package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"metriscope/app"
	"metriscope/internal/config"
	"metriscope/internal/render"
)

func main() {
	godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "metriscope",
		Short: "Analyze tabular product-metrics exports from the command line",
	}
	rootCmd.AddCommand(newAnalyzeCmd(), newPreviewCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newAnalyzeCmd() *cobra.Command {
	var format string
	var out string
	var quick bool
	var noTransform bool

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Run the full analysis pipeline over a CSV/TSV/XLSX file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, raw, err := buildService(args[0])
			if err != nil {
				return err
			}
			rep, err := service.Analyze(context.Background(), app.AnalyzeRequest{
				Filename:         args[0],
				Raw:              raw,
				DisableTransform: noTransform,
			})
			if err != nil {
				return err
			}

			var payload []byte
			switch format {
			case "markdown":
				payload = []byte(render.Markdown(rep))
			case "json":
				var v any = rep
				if quick {
					v = rep.Quick()
				}
				payload, err = json.MarshalIndent(v, "", "  ")
				if err != nil {
					return err
				}
				payload = append(payload, '\n')
			default:
				return fmt.Errorf("unknown format %q (want json or markdown)", format)
			}
			if out != "" {
				return os.WriteFile(out, payload, 0o644)
			}
			_, err = os.Stdout.Write(payload)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or markdown")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&quick, "quick", false, "return the reduced quick-analysis shape")
	cmd.Flags().BoolVar(&noTransform, "no-transform", false, "normalize only, never aggregate event-level data")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	var noTransform bool

	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Show what ingestion would do without running the analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, raw, err := buildService(args[0])
			if err != nil {
				return err
			}
			preview, err := service.Preview(app.AnalyzeRequest{
				Filename:         args[0],
				Raw:              raw,
				DisableTransform: noTransform,
			})
			if err != nil {
				return err
			}
			return printJSON(preview)
		},
	}
	cmd.Flags().BoolVar(&noTransform, "no-transform", false, "normalize only, never aggregate event-level data")
	return cmd
}

func buildService(path string) (*app.AnalysisService, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	// The CLI runs the deterministic engine only; no enhancement, no archive
	return app.NewAnalysisService(cfg.Analysis, nil, nil), raw, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

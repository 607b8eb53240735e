package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/studyforge/notesd/internal/activity"
	"github.com/studyforge/notesd/internal/completion"
	"github.com/studyforge/notesd/internal/config"
	"github.com/studyforge/notesd/internal/continuation"
	"github.com/studyforge/notesd/internal/coverage"
	"github.com/studyforge/notesd/internal/outline"
	"github.com/studyforge/notesd/internal/secrets"
)

type continueOutput struct {
	Notes       string           `json:"notes" yaml:"notes"`
	IsComplete  bool             `json:"isComplete" yaml:"isComplete"`
	State       string           `json:"state" yaml:"state"`
	Attempts    int              `json:"attempts" yaml:"attempts"`
	Error       string           `json:"error,omitempty" yaml:"error,omitempty"`
	ActivityLog []activity.Entry `json:"activityLog" yaml:"activityLog"`
}

type analyzeOutput struct {
	IsComplete     bool `json:"isComplete" yaml:"isComplete"`
	outline.Report `yaml:",inline"`
	Coverage       *coverage.Report `json:"coverage,omitempty" yaml:"coverage,omitempty"`
}

func newContinueCmd(opts *rootOptions) *cobra.Command {
	var notesPath, sourcePath, title string
	cmd := &cobra.Command{
		Use:   "continue",
		Short: "Continue truncated notes from a file",
		Long: `Continue notes until the completion marker appears or attempts run out.

The result is printed with its activity log. A failed run still prints the
log and exits non-zero.

Examples:
  notesd continue --notes notes.md --source lecture.txt --title "Week 3"
  cat notes.md | notesd continue --notes - --source lecture.txt -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			current, err := readInput(notesPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			source, err := readInput(sourcePath, cmd.InOrStdin())
			if err != nil {
				return err
			}

			logger, err := initLogger(cfg, "stderr", nil)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			scrubber, err := secrets.New(nil)
			if err != nil {
				return err
			}
			engine, err := newEngine(cfg, scrubber, logger.Underlying())
			if err != nil {
				return err
			}

			res, runErr := engine.Continue(cmd.Context(), continuation.Request{
				CurrentNotes: current,
				SourceText:   source,
				Title:        title,
			})
			out := continueOutput{
				Notes:       res.Notes,
				IsComplete:  res.IsComplete,
				State:       res.State.String(),
				Attempts:    res.Attempts,
				ActivityLog: res.Log,
			}
			if runErr != nil {
				out.Error = continuation.UserMessage(runErr)
			}
			if err := render(cmd.OutOrStdout(), opts.output, out); err != nil {
				return err
			}
			if runErr != nil {
				return errors.New(out.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&notesPath, "notes", "", "file with the current notes (- for stdin)")
	cmd.Flags().StringVar(&sourcePath, "source", "", "file with the source text")
	cmd.Flags().StringVar(&title, "title", "", "document title")
	_ = cmd.MarkFlagRequired("notes")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func newCoverageCmd(opts *rootOptions) *cobra.Command {
	var notesPath, sourcePath string
	var threshold int
	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Estimate how much of the source vocabulary the notes cover",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, err := warnThreshold(cmd, opts, threshold)
			if err != nil {
				return err
			}
			notes, err := readInput(notesPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			source, err := readInput(sourcePath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			report := coverage.Analyze(source, completion.StripMarker(notes), limit)
			return render(cmd.OutOrStdout(), opts.output, report)
		},
	}

	cmd.Flags().StringVar(&notesPath, "notes", "", "file with the notes (- for stdin)")
	cmd.Flags().StringVar(&sourcePath, "source", "", "file with the source text")
	cmd.Flags().IntVar(&threshold, "threshold", coverage.DefaultWarnThreshold, "score below which the report warns (default from coverage.warn_threshold)")
	_ = cmd.MarkFlagRequired("notes")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var notesPath, sourcePath string
	var threshold int
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report completeness, heading structure and optional coverage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, err := warnThreshold(cmd, opts, threshold)
			if err != nil {
				return err
			}
			notes, err := readInput(notesPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			source, err := readInput(sourcePath, cmd.InOrStdin())
			if err != nil {
				return err
			}

			out := analyzeOutput{
				IsComplete: completion.IsComplete(notes),
				Report:     outline.Inspect(notes),
			}
			if source != "" {
				report := coverage.Analyze(source, completion.StripMarker(notes), limit)
				out.Coverage = &report
			}
			return render(cmd.OutOrStdout(), opts.output, out)
		},
	}

	cmd.Flags().StringVar(&notesPath, "notes", "", "file with the notes (- for stdin)")
	cmd.Flags().StringVar(&sourcePath, "source", "", "file with the source text; enables coverage")
	cmd.Flags().IntVar(&threshold, "threshold", coverage.DefaultWarnThreshold, "coverage warning threshold (default from coverage.warn_threshold)")
	_ = cmd.MarkFlagRequired("notes")
	return cmd
}

// warnThreshold prefers an explicit --threshold over the configured one.
func warnThreshold(cmd *cobra.Command, opts *rootOptions, flag int) (int, error) {
	if cmd.Flags().Changed("threshold") {
		return flag, nil
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return 0, err
	}
	return cfg.Coverage.WarnThreshold, nil
}

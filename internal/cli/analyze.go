package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"resumeanalyzer/internal/analysis"
	"resumeanalyzer/internal/errors"
	"resumeanalyzer/internal/types"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [resume-file] [job-description-file]",
	Short: "Analyze a resume against a job description",
	Long: `Analyze a resume against a job description and produce a match analysis,
an ATS-optimized rewritten resume and a tailored cover letter.

The command runs the same generate-validate pipeline as the HTTP service,
without the billing gate. Without an AI API key it falls back to a
deterministic keyword-based analysis.`,
	Args:    cobra.ExactArgs(2),
	PreRunE: validateAnalyzeFlags,
	RunE:    runAnalyze,
}

var (
	analyzeOutputFile   string
	analyzeOutputFormat string
)

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOutputFile, "output", "o", "", "Output file path (default: stdout)")
	analyzeCmd.Flags().StringVar(&analyzeOutputFormat, "format", "", "Output format: json or text")

	_ = analyzeCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "text"}, cobra.ShellCompDirectiveNoFileComp
	})
}

func validateAnalyzeFlags(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	if analyzeOutputFormat == "" {
		analyzeOutputFormat = cfg.App.DefaultFormat
	}
	switch analyzeOutputFormat {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("unsupported output format: %q (must be 'json' or 'text')", analyzeOutputFormat)
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	resumeText, err := readInputFile(args[0])
	if err != nil {
		return err
	}
	jobDescription, err := readInputFile(args[1])
	if err != nil {
		return err
	}

	backend, err := analysis.NewBackend(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.LogError(err, "Failed to close AI backend")
		}
	}()

	logger.Info("Starting analysis",
		"resume_chars", len(resumeText),
		"job_chars", len(jobDescription),
		"output_format", analyzeOutputFormat)

	orchestrator := analysis.NewOrchestrator(backend, cfg, logger)
	outcome, err := orchestrator.Analyze(cmd.Context(), types.AnalysisRequest{
		ResumeText:     resumeText,
		JobDescription: jobDescription,
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	rendered, err := renderOutcome(outcome, analyzeOutputFormat)
	if err != nil {
		return err
	}

	if analyzeOutputFile != "" {
		if err := os.WriteFile(analyzeOutputFile, []byte(rendered), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		logger.Info("Analysis written", "output_file", analyzeOutputFile)
		return nil
	}

	fmt.Println(rendered)
	return nil
}

// readInputFile reads one input file, mapping failures onto the IO error codes.
func readInputFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", path), err)
		}
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("File not readable: %s", path), err)
	}
	return string(content), nil
}

func renderOutcome(outcome *types.AnalysisOutcome, format string) (string, error) {
	if format == "json" {
		response := types.AnalyzeResponse{
			Analysis:           outcome.Result.Analysis,
			RewrittenResume:    outcome.Result.RewrittenResume,
			CoverLetter:        outcome.Result.CoverLetter,
			ValidationSummary:  outcome.Validation.ValidationSummary,
			ImprovedMatchScore: outcome.Validation.ImprovedMatchScore,
			BaselineMatchScore: outcome.BaselineMatchScore,
		}
		data, err := json.MarshalIndent(response, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode analysis: %w", err)
		}
		return string(data), nil
	}

	var b strings.Builder
	section := func(title, body string) {
		b.WriteString("=== " + title + " ===\n")
		b.WriteString(strings.TrimRight(body, "\n"))
		b.WriteString("\n\n")
	}

	section("Analysis", outcome.Result.Analysis)
	section("Rewritten Resume", outcome.Result.RewrittenResume)
	section("Cover Letter", outcome.Result.CoverLetter)
	section("Validation", outcome.Validation.ValidationSummary)

	b.WriteString(fmt.Sprintf("Baseline match score: %d\n", outcome.BaselineMatchScore))
	if outcome.Validation.ImprovedMatchScore != nil {
		b.WriteString(fmt.Sprintf("Improved match score: %d\n", *outcome.Validation.ImprovedMatchScore))
	}
	b.WriteString(fmt.Sprintf("Generation attempts: %d", outcome.Attempts))

	return b.String(), nil
}

package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/benvon/smart-todo-capture/internal/app"
	"github.com/benvon/smart-todo-capture/internal/logger"
	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/benvon/smart-todo-capture/internal/pipeline"
	"github.com/benvon/smart-todo-capture/internal/services/extraction"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewExtractCmd runs one transcript file through the pipeline
func NewExtractCmd() *cobra.Command {
	var (
		file   string
		source string
		title  string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract tasks from a transcript file",
		Long:  "Run a transcript through extraction and deduplication. With --dry-run nothing is written. Use --file - to read stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			taskSource := models.TaskSource(source)
			if !taskSource.Valid() {
				return fmt.Errorf("unknown source %q", source)
			}
			content, err := readTranscript(cmd, file)
			if err != nil {
				return err
			}

			log, debug, err := commandLogger(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync(log) }()

			cfg, db, err := connect()
			if err != nil {
				return err
			}
			defer closeDB(db)

			extractor, err := app.NewExtractor(cfg, log, debug)
			if err != nil {
				return err
			}
			processor := app.NewProcessor(cfg, db, extractor, log, dryRun)

			if title == "" && file != "-" {
				title = filepath.Base(file)
			}
			outcome, err := processor.ProcessTranscript(cmd.Context(), pipeline.TranscriptInput{
				Content:  content,
				Source:   taskSource,
				Metadata: extraction.Metadata{Subject: title},
			})
			if err != nil {
				return fmt.Errorf("extraction failed: %w", err)
			}
			log.Info("extract_finished",
				zap.Bool("dry_run", dryRun),
				zap.Int("candidates", outcome.Candidates),
				zap.Int("created", len(outcome.Created)),
				zap.Int("duplicates", len(outcome.Duplicates)),
			)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(outcome)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Transcript file, or - for stdin (required)")
	cmd.Flags().StringVar(&source, "source", string(models.TaskSourceManual), "Source channel of the transcript")
	cmd.Flags().StringVar(&title, "title", "", "Meeting or document title (defaults to the file name)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print what would be created without saving")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readTranscript(cmd *cobra.Command, file string) (string, error) {
	var (
		b   []byte
		err error
	)
	if file == "-" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read transcript: %w", err)
	}
	return string(b), nil
}

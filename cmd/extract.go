package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tiksound/application/extraction"
	"tiksound/domain/media"
	"tiksound/domain/pipeline"
	"tiksound/infrastructure/filesystem"

	"github.com/spf13/cobra"
)

var (
	extractURL       string
	extractOutputDir string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the original sound of a single clip",
	Long: `Run the extraction pipeline once from the terminal.

The clip is probed and classified first; overlaid-music clips are reported and
nothing is downloaded. Original-sound clips are downloaded, transcoded to MP3
and left in the scratch directory, or moved to --output-dir when given.

Example:
  tiksound extract --url https://www.tiktok.com/@user/video/7234567890123456789
  tiksound extract --url https://vm.tiktok.com/ZMabc123/ --output-dir ~/Music`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVar(&extractURL, "url", "", "TikTok video URL (required)")
	extractCmd.Flags().StringVar(&extractOutputDir, "output-dir", "", "Directory to move the MP3 into (default: keep in scratch directory)")
	extractCmd.MarkFlagRequired("url")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	log, err := setupLogger(cfg)
	if err != nil {
		return err
	}

	comps := NewComponents(cfg, log)
	if err := comps.Scratch.Ensure(); err != nil {
		return err
	}
	if err := comps.VerifyTools(cmd.Context()); err != nil {
		return err
	}

	return RunExtractWithDependencies(
		cmd.Context(),
		ExtractDependencies{
			Prober:     comps.Prober,
			Classifier: comps.Classifier,
			Fetcher:    comps.Fetcher,
			Extractor:  comps.Extractor,
			Scratch:    comps.Scratch,
		},
		extractURL,
		extractOutputDir,
		DefaultOutput,
	)
}

// ExtractDependencies are the pipeline collaborators used by the extract command
type ExtractDependencies struct {
	Prober     media.MetadataProber
	Classifier media.Classifier
	Fetcher    media.VideoFetcher
	Extractor  media.AudioExtractor
	Scratch    extraction.Scratch
}

// RunExtractWithDependencies runs the extract command with injected dependencies (for testing)
func RunExtractWithDependencies(
	ctx context.Context,
	deps ExtractDependencies,
	rawURL string,
	outputDir string,
	output OutputWriter,
) error {
	start := time.Now()

	progress := func(state pipeline.State) {
		switch state {
		case pipeline.StateProbing:
			fmt.Fprintf(output, "[1/4] Reading clip metadata...\n")
		case pipeline.StateFetching:
			fmt.Fprintf(output, "[2/4] Downloading video...\n")
		case pipeline.StateExtracting:
			fmt.Fprintf(output, "[3/4] Extracting audio...\n")
		case pipeline.StateCleaningUp:
			fmt.Fprintf(output, "[4/4] Cleaning up...\n")
		}
	}

	svc := extraction.NewService(
		deps.Prober,
		deps.Classifier,
		deps.Fetcher,
		deps.Extractor,
		deps.Scratch,
		extraction.WithStateObserver(progress),
	)

	result := svc.Extract(ctx, rawURL)

	switch result.Outcome {
	case pipeline.OutcomeRejected:
		return fmt.Errorf("invalid TikTok URL %q: %w", rawURL, result.Err)

	case pipeline.OutcomeFiltered:
		fmt.Fprintf(output, "\n%q has overlaid sound (decided by %s); nothing extracted.\n",
			result.Title(), result.Classification.MatchedBy)
		return nil

	case pipeline.OutcomeFailed:
		return fmt.Errorf("extraction failed during %s: %w", result.Stage, result.Err)
	}

	path := result.Artifact.Path
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		dst := filepath.Join(outputDir, result.Artifact.Name)
		if err := filesystem.MoveFile(path, dst); err != nil {
			return err
		}
		path = dst
	}

	fmt.Fprintln(output)
	fmt.Fprintf(output, "Title:      %s\n", result.Title())
	fmt.Fprintf(output, "Matched by: %s\n", result.Classification.MatchedBy)
	fmt.Fprintf(output, "Audio:      %s\n", path)
	fmt.Fprintf(output, "Completed in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

//go:build integration

package steps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tiksound/cmd"
	"tiksound/domain/detection"
	"tiksound/domain/media"
	"tiksound/infrastructure/filesystem"

	"github.com/cucumber/godog"
)

// fakeProber returns canned metadata
type fakeProber struct {
	meta  media.VideoMetadata
	calls int
}

func (p *fakeProber) Probe(ctx context.Context, src media.SourceReference) (*media.VideoMetadata, error) {
	p.calls++
	m := p.meta
	return &m, nil
}

// fakeFetcher writes a small video file the way yt-dlp would
type fakeFetcher struct {
	failAfterWrite bool
	calls          int
}

func (f *fakeFetcher) Fetch(ctx context.Context, src media.SourceReference, dir, baseName string) (string, error) {
	f.calls++
	path := filepath.Join(dir, baseName+".mp4")
	if err := os.WriteFile(path, []byte("fake video"), 0644); err != nil {
		return "", err
	}
	if f.failAfterWrite {
		return "", fmt.Errorf("%w: yt-dlp exited with status 1", media.ErrDownloadFailed)
	}
	return path, nil
}

// fakeAudioExtractor writes a non-empty MP3 placeholder
type fakeAudioExtractor struct{}

func (fakeAudioExtractor) Extract(ctx context.Context, videoPath, outputPath string) error {
	return os.WriteFile(outputPath, []byte("ID3 fake mp3"), 0644)
}

// extractContext holds test state for extraction scenarios
type extractContext struct {
	scratchDir      string
	outputDir       string
	prober          *fakeProber
	fetcher         *fakeFetcher
	defaultOriginal bool
	output          *bytes.Buffer
	err             error
}

// SharedExtractContext is reset before each scenario via Before hook
var SharedExtractContext *extractContext

func getExtractContext() *extractContext {
	return SharedExtractContext
}

func InitializeExtractScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		SharedExtractContext = &extractContext{
			prober:          &fakeProber{},
			fetcher:         &fakeFetcher{},
			defaultOriginal: true,
			output:          &bytes.Buffer{},
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		e := getExtractContext()
		if e != nil {
			for _, dir := range []string{e.scratchDir, e.outputDir} {
				if dir != "" {
					os.RemoveAll(dir)
				}
			}
		}
		SharedExtractContext = nil
		return c, nil
	})

	ctx.Step(`^an empty scratch directory$`, anEmptyScratchDirectory)
	ctx.Step(`^the clip metadata:$`, theClipMetadata)
	ctx.Step(`^unmatched clips are treated as overlaid sound$`, unmatchedClipsAreTreatedAsOverlaidSound)
	ctx.Step(`^the downloader fails after writing a partial file$`, theDownloaderFailsAfterWritingAPartialFile)
	ctx.Step(`^I extract "([^"]*)"$`, iExtract)
	ctx.Step(`^I extract "([^"]*)" into an output directory$`, iExtractIntoAnOutputDirectory)
	ctx.Step(`^the extraction should succeed$`, theExtractionShouldSucceed)
	ctx.Step(`^the extraction should fail with "([^"]*)"$`, theExtractionShouldFailWith)
	ctx.Step(`^the output should contain "([^"]*)"$`, theOutputShouldContain)
	ctx.Step(`^the scratch directory should contain (\d+) audio files? and (\d+) video files?$`, theScratchDirectoryShouldContain)
	ctx.Step(`^the output directory should contain (\d+) audio files?$`, theOutputDirectoryShouldContain)
	ctx.Step(`^nothing should have been downloaded$`, nothingShouldHaveBeenDownloaded)
	ctx.Step(`^metadata should not have been probed$`, metadataShouldNotHaveBeenProbed)
}

func anEmptyScratchDirectory() error {
	e := getExtractContext()
	dir, err := os.MkdirTemp("", "tiksound-scratch-*")
	if err != nil {
		return err
	}
	e.scratchDir = dir
	return nil
}

func theClipMetadata(table *godog.Table) error {
	e := getExtractContext()
	meta := media.VideoMetadata{}
	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			return fmt.Errorf("expected key/value rows")
		}
		key, value := row.Cells[0].Value, row.Cells[1].Value
		switch key {
		case "title":
			meta.Title = value
		case "description":
			meta.Description = value
		case "uploader":
			meta.Uploader = value
		case "uploader_id":
			meta.UploaderID = value
		case "tags":
			meta.Tags = strings.Split(value, ",")
		case "format_note":
			meta.FormatNote = value
		case "duration":
			d, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", value, err)
			}
			meta.Duration = &d
		default:
			return fmt.Errorf("unknown metadata key %q", key)
		}
	}
	e.prober.meta = meta
	return nil
}

func unmatchedClipsAreTreatedAsOverlaidSound() error {
	getExtractContext().defaultOriginal = false
	return nil
}

func theDownloaderFailsAfterWritingAPartialFile() error {
	getExtractContext().fetcher.failAfterWrite = true
	return nil
}

func runExtract(url string) {
	e := getExtractContext()
	e.err = cmd.RunExtractWithDependencies(
		context.Background(),
		cmd.ExtractDependencies{
			Prober:     e.prober,
			Classifier: detection.NewClassifier(detection.WithDefaultOriginal(e.defaultOriginal)),
			Fetcher:    e.fetcher,
			Extractor:  fakeAudioExtractor{},
			Scratch:    filesystem.NewScratchDir(e.scratchDir),
		},
		url,
		e.outputDir,
		e.output,
	)
}

func iExtract(url string) error {
	runExtract(url)
	return nil
}

func iExtractIntoAnOutputDirectory(url string) error {
	e := getExtractContext()
	dir, err := os.MkdirTemp("", "tiksound-out-*")
	if err != nil {
		return err
	}
	e.outputDir = dir
	runExtract(url)
	return nil
}

func theExtractionShouldSucceed() error {
	e := getExtractContext()
	if e.err != nil {
		return fmt.Errorf("expected success, got error: %v\noutput:\n%s", e.err, e.output.String())
	}
	return nil
}

func theExtractionShouldFailWith(expected string) error {
	e := getExtractContext()
	if e.err == nil {
		return fmt.Errorf("expected an error containing %q, got none", expected)
	}
	if !strings.Contains(e.err.Error(), expected) {
		return fmt.Errorf("expected error containing %q, got: %v", expected, e.err)
	}
	return nil
}

func theOutputShouldContain(expected string) error {
	e := getExtractContext()
	if !strings.Contains(e.output.String(), expected) {
		return fmt.Errorf("expected output to contain %q, got:\n%s", expected, e.output.String())
	}
	return nil
}

func countScratchFiles(dir string) (audio, video int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, err
	}
	for _, entry := range entries {
		switch kind, _ := media.KindOf(entry.Name()); kind {
		case media.KindAudio:
			audio++
		case media.KindVideo:
			video++
		}
	}
	return audio, video, nil
}

func theScratchDirectoryShouldContain(audio, video int) error {
	e := getExtractContext()
	gotAudio, gotVideo, err := countScratchFiles(e.scratchDir)
	if err != nil {
		return err
	}
	if gotAudio != audio || gotVideo != video {
		return fmt.Errorf("expected %d audio and %d video files, got %d and %d", audio, video, gotAudio, gotVideo)
	}
	return nil
}

func theOutputDirectoryShouldContain(audio int) error {
	e := getExtractContext()
	got, _, err := countScratchFiles(e.outputDir)
	if err != nil {
		return err
	}
	if got != audio {
		return fmt.Errorf("expected %d audio files in output directory, got %d", audio, got)
	}
	return nil
}

func nothingShouldHaveBeenDownloaded() error {
	if n := getExtractContext().fetcher.calls; n != 0 {
		return fmt.Errorf("expected no downloads, got %d", n)
	}
	return nil
}

func metadataShouldNotHaveBeenProbed() error {
	if n := getExtractContext().prober.calls; n != 0 {
		return errors.New("metadata was probed for rejected input")
	}
	return nil
}

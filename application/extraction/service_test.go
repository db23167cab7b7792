package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tiksound/domain/detection"
	"tiksound/domain/media"
	"tiksound/domain/pipeline"
	"tiksound/infrastructure/filesystem"
)

const validURL = "https://www.tiktok.com/@creator/video/7234567890123456789"

type stubProber struct {
	meta  *media.VideoMetadata
	err   error
	calls atomic.Int32
}

func (p *stubProber) Probe(ctx context.Context, src media.SourceReference) (*media.VideoMetadata, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return p.meta, nil
}

// stubFetcher writes a fake video under dir so cleanup behaviour can be observed
type stubFetcher struct {
	err       error
	writeFile bool
	calls     atomic.Int32
}

func (f *stubFetcher) Fetch(ctx context.Context, src media.SourceReference, dir, baseName string) (string, error) {
	f.calls.Add(1)
	path := filepath.Join(dir, baseName+".mp4")
	if f.writeFile {
		if err := os.WriteFile(path, []byte("video bytes"), 0644); err != nil {
			return "", err
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return path, nil
}

type stubExtractor struct {
	err     error
	partial bool
	calls   atomic.Int32

	mu     sync.Mutex
	lastIn string
}

func (e *stubExtractor) Extract(ctx context.Context, videoPath, outputPath string) error {
	e.calls.Add(1)
	e.mu.Lock()
	e.lastIn = videoPath
	e.mu.Unlock()
	if e.partial {
		_ = os.WriteFile(outputPath, []byte("partial"), 0644)
	}
	if e.err != nil {
		return e.err
	}
	return os.WriteFile(outputPath, []byte("ID3 mp3 bytes"), 0644)
}

type fixture struct {
	dir       string
	prober    *stubProber
	fetcher   *stubFetcher
	extractor *stubExtractor
	states    []pipeline.State
	svc       *Service
}

func newFixture(t *testing.T, meta media.VideoMetadata) *fixture {
	t.Helper()
	f := &fixture{
		dir:       t.TempDir(),
		prober:    &stubProber{meta: &meta},
		fetcher:   &stubFetcher{writeFile: true},
		extractor: &stubExtractor{},
	}
	f.svc = NewService(
		f.prober,
		detection.NewClassifier(detection.WithDefaultOriginal(false)),
		f.fetcher,
		f.extractor,
		filesystem.NewScratchDir(f.dir),
		WithStateObserver(func(s pipeline.State) { f.states = append(f.states, s) }),
	)
	return f
}

func (f *fixture) files(t *testing.T) (videos, audios []string) {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		kind, _ := media.KindOf(e.Name())
		switch kind {
		case media.KindVideo:
			videos = append(videos, e.Name())
		case media.KindAudio:
			audios = append(audios, e.Name())
		}
	}
	return videos, audios
}

func originalMeta() media.VideoMetadata {
	return media.VideoMetadata{Title: "dance - original sound", Uploader: "creator", UploaderID: "someone"}
}

func overlayMeta() media.VideoMetadata {
	dur := 30.0
	return media.VideoMetadata{Title: "dance", Uploader: "a", UploaderID: "b", Duration: &dur}
}

func TestExtract_Succeeded(t *testing.T) {
	f := newFixture(t, originalMeta())

	result := f.svc.Extract(context.Background(), validURL)

	if result.Outcome != pipeline.OutcomeSucceeded {
		t.Fatalf("expected success, got %s (%v)", result.Outcome, result.Err)
	}
	if result.JobID == "" {
		t.Error("expected a job id")
	}
	if result.Title() != "dance - original sound" {
		t.Errorf("title = %q", result.Title())
	}
	if result.Artifact == nil || !media.IsAudioArtifactName(result.Artifact.Name) {
		t.Fatalf("unexpected artifact %+v", result.Artifact)
	}
	if result.Artifact.Path != filepath.Join(f.dir, result.Artifact.Name) {
		t.Errorf("artifact path %q not in scratch dir", result.Artifact.Path)
	}

	videos, audios := f.files(t)
	if len(videos) != 0 {
		t.Errorf("intermediate video should be removed, found %v", videos)
	}
	if len(audios) != 1 || audios[0] != result.Artifact.Name {
		t.Errorf("expected exactly the artifact, found %v", audios)
	}

	want := []pipeline.State{
		pipeline.StateValidating, pipeline.StateProbing, pipeline.StateFetching,
		pipeline.StateExtracting, pipeline.StateCleaningUp, pipeline.StateDone,
	}
	if fmt.Sprint(f.states) != fmt.Sprint(want) {
		t.Errorf("states = %v, want %v", f.states, want)
	}
	if !strings.HasPrefix(filepath.Base(f.extractor.lastIn), "video_") {
		t.Errorf("extractor got %q", f.extractor.lastIn)
	}
}

func TestExtract_RejectedBeforeAnySideEffect(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"not-a-url",
		"https://www.youtube.com/watch?v=abc",
		"https://tiktok.com.evil.example/video/1",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			f := newFixture(t, originalMeta())

			result := f.svc.Extract(context.Background(), in)

			if result.Outcome != pipeline.OutcomeRejected {
				t.Fatalf("expected rejected, got %s", result.Outcome)
			}
			if !errors.Is(result.Err, media.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", result.Err)
			}
			if f.prober.calls.Load()+f.fetcher.calls.Load()+f.extractor.calls.Load() != 0 {
				t.Error("no collaborator may be called for rejected input")
			}
			videos, audios := f.files(t)
			if len(videos)+len(audios) != 0 {
				t.Error("no files may be created for rejected input")
			}
			if result.State() != pipeline.StateRejected {
				t.Errorf("state = %s", result.State())
			}
		})
	}
}

func TestExtract_FilteredCreatesNoFiles(t *testing.T) {
	f := newFixture(t, overlayMeta())

	result := f.svc.Extract(context.Background(), validURL)

	if result.Outcome != pipeline.OutcomeFiltered {
		t.Fatalf("expected filtered, got %s", result.Outcome)
	}
	if result.Classification == nil || result.Classification.OriginalSound {
		t.Errorf("unexpected classification %+v", result.Classification)
	}
	if f.fetcher.calls.Load() != 0 || f.extractor.calls.Load() != 0 {
		t.Error("filtered clips must not be downloaded")
	}
	videos, audios := f.files(t)
	if len(videos)+len(audios) != 0 {
		t.Errorf("filtered run left files: %v %v", videos, audios)
	}
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture)
		stage    pipeline.Stage
		sentinel error
	}{
		{
			name:     "probe tool missing",
			setup:    func(f *fixture) { f.prober.err = fmt.Errorf("yt-dlp: %w", media.ErrToolUnavailable) },
			stage:    pipeline.StageProbe,
			sentinel: media.ErrToolUnavailable,
		},
		{
			name:     "probe output unparsable",
			setup:    func(f *fixture) { f.prober.err = media.ErrMetadataUnparsable },
			stage:    pipeline.StageProbe,
			sentinel: media.ErrMetadataUnparsable,
		},
		{
			name:     "download fails after writing a partial file",
			setup:    func(f *fixture) { f.fetcher.err = fmt.Errorf("%w: exit 1", media.ErrDownloadFailed) },
			stage:    pipeline.StageFetch,
			sentinel: media.ErrDownloadFailed,
		},
		{
			name:     "extraction fails",
			setup:    func(f *fixture) { f.extractor.err = media.ErrExtractionFailed; f.extractor.partial = true },
			stage:    pipeline.StageExtract,
			sentinel: media.ErrExtractionFailed,
		},
		{
			name:     "extraction empty",
			setup:    func(f *fixture) { f.extractor.err = media.ErrExtractionEmpty },
			stage:    pipeline.StageExtract,
			sentinel: media.ErrExtractionEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, originalMeta())
			tt.setup(f)

			result := f.svc.Extract(context.Background(), validURL)

			if result.Outcome != pipeline.OutcomeFailed {
				t.Fatalf("expected failed, got %s", result.Outcome)
			}
			if result.Stage != tt.stage {
				t.Errorf("stage = %s, want %s", result.Stage, tt.stage)
			}
			if !errors.Is(result.Err, tt.sentinel) {
				t.Errorf("expected %v in chain, got %v", tt.sentinel, result.Err)
			}
			if result.Artifact != nil {
				t.Error("failed result must not carry an artifact")
			}
			videos, audios := f.files(t)
			if len(videos)+len(audios) != 0 {
				t.Errorf("failed run left files: %v %v", videos, audios)
			}
			if f.states[len(f.states)-1] != pipeline.StateFailed {
				t.Errorf("last state = %s", f.states[len(f.states)-1])
			}
		})
	}
}

type stickyScratch struct {
	*filesystem.ScratchDir
}

func (s stickyScratch) Remove(path string) error {
	if strings.HasPrefix(filepath.Base(path), "video_") {
		return errors.New("device busy")
	}
	return s.ScratchDir.Remove(path)
}

func TestExtract_CleanupFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t, originalMeta())
	svc := NewService(f.prober, detection.NewClassifier(), f.fetcher, f.extractor,
		stickyScratch{filesystem.NewScratchDir(f.dir)})

	result := svc.Extract(context.Background(), validURL)

	if result.Outcome != pipeline.OutcomeSucceeded {
		t.Fatalf("expected success, got %s (%v)", result.Outcome, result.Err)
	}
	videos, _ := f.files(t)
	if len(videos) != 1 {
		t.Errorf("expected the undeletable video to remain, got %v", videos)
	}
}

func TestExtract_ConcurrentRequestsUseDistinctNames(t *testing.T) {
	f := newFixture(t, originalMeta())
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(f.prober, detection.NewClassifier(), &stubFetcher{writeFile: true}, &stubExtractor{},
		filesystem.NewScratchDir(f.dir), WithClock(func() time.Time { return fixed }))

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []pipeline.Result
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := svc.Extract(context.Background(), validURL)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, r := range results {
		if r.Outcome != pipeline.OutcomeSucceeded {
			t.Fatalf("request failed: %v", r.Err)
		}
		if seen[r.Artifact.Name] {
			t.Fatalf("artifact name reused: %s", r.Artifact.Name)
		}
		seen[r.Artifact.Name] = true
	}
	_, audios := f.files(t)
	if len(audios) != n {
		t.Errorf("expected %d audio files, got %d", n, len(audios))
	}
}

func TestDownload(t *testing.T) {
	f := newFixture(t, originalMeta())
	result := f.svc.Extract(context.Background(), validURL)
	if result.Outcome != pipeline.OutcomeSucceeded {
		t.Fatalf("setup failed: %v", result.Err)
	}
	if err := os.WriteFile(filepath.Join(f.dir, "video_1_abc.mp4"), []byte("v"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("existing artifact", func(t *testing.T) {
		file, info, err := f.svc.Download(result.Artifact.Name)
		if err != nil {
			t.Fatalf("Download() error: %v", err)
		}
		defer file.Close()
		if info.Size() == 0 {
			t.Error("expected non-empty file")
		}
	})

	for _, name := range []string{
		"audio_1_missing.mp3",
		"video_1_abc.mp4",
		"../" + result.Artifact.Name,
		"",
		"audio_1_abc.wav",
	} {
		t.Run("not found "+name, func(t *testing.T) {
			_, _, err := f.svc.Download(name)
			if !errors.Is(err, media.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

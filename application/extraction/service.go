// Package extraction runs the probe, classify, fetch, extract and cleanup pipeline for one clip.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tiksound/domain/media"
	"tiksound/domain/pipeline"
	"tiksound/infrastructure/filesystem"
)

// Scratch is the directory the pipeline writes into and serves from
type Scratch interface {
	Root() string
	Path(name string) string
	Remove(path string) error
	RemovePrefix(prefix string) (int, error)
	Open(name string) (*os.File, fs.FileInfo, error)
}

var _ Scratch = (*filesystem.ScratchDir)(nil)

// StateObserver is called on every state transition of a run
type StateObserver func(state pipeline.State)

// Service coordinates one extraction per call. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	prober     media.MetadataProber
	classifier media.Classifier
	fetcher    media.VideoFetcher
	extractor  media.AudioExtractor
	scratch    Scratch
	now        func() time.Time
	logger     *zap.Logger
	observer   StateObserver
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source used for scratch names
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStateObserver registers a callback for state transitions
func WithStateObserver(fn StateObserver) Option {
	return func(s *Service) {
		s.observer = fn
	}
}

// NewService creates a new extraction service
func NewService(
	prober media.MetadataProber,
	classifier media.Classifier,
	fetcher media.VideoFetcher,
	extractor media.AudioExtractor,
	scratch Scratch,
	opts ...Option,
) *Service {
	s := &Service{
		prober:     prober,
		classifier: classifier,
		fetcher:    fetcher,
		extractor:  extractor,
		scratch:    scratch,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extract runs the pipeline for rawURL. Invalid input is rejected before any
// process is spawned or file is written. The returned result never carries a
// partially written artifact.
func (s *Service) Extract(ctx context.Context, rawURL string) pipeline.Result {
	r := s.newRun()
	defer r.finish()

	r.to(pipeline.StateValidating)
	src, err := media.ParseSourceReference(rawURL)
	if err != nil {
		r.to(pipeline.StateRejected)
		r.log.Info("request rejected", zap.Error(err))
		return pipeline.Rejected(r.id, err)
	}
	r.log = r.log.With(zap.String("url", src.String()))

	r.to(pipeline.StateProbing)
	meta, err := s.prober.Probe(ctx, src)
	if err != nil {
		return r.fail(pipeline.StageProbe, err)
	}

	classification := s.classifier.Classify(*meta)
	r.log.Info("clip classified",
		zap.String("title", meta.Title),
		zap.Bool("original_sound", classification.OriginalSound),
		zap.String("matched_by", classification.MatchedBy),
	)
	if !classification.OriginalSound {
		r.to(pipeline.StateFiltered)
		return pipeline.Filtered(r.id, classification)
	}

	now := s.now()
	videoBase := media.NewScratchName(media.KindVideo, now)
	audioName := media.NewScratchName(media.KindAudio, now) + media.AudioExtension
	audioPath := s.scratch.Path(audioName)

	r.to(pipeline.StateFetching)
	videoPath, err := s.fetcher.Fetch(ctx, src, s.scratch.Root(), videoBase)
	if err != nil {
		s.discardVideo(r, videoBase)
		return r.fail(pipeline.StageFetch, err)
	}

	r.to(pipeline.StateExtracting)
	if err := s.extractor.Extract(ctx, videoPath, audioPath); err != nil {
		s.discardVideo(r, videoBase)
		if rmErr := s.scratch.Remove(audioPath); rmErr != nil {
			r.log.Warn("failed to remove partial audio", zap.Error(rmErr))
		}
		return r.fail(pipeline.StageExtract, err)
	}

	r.to(pipeline.StateCleaningUp)
	if err := s.scratch.Remove(videoPath); err != nil {
		// the sweeper reclaims it later
		r.log.Warn("failed to remove intermediate video",
			zap.String("file", videoPath),
			zap.Error(err),
		)
	}

	r.to(pipeline.StateDone)
	artifact := media.ScratchFile{
		Kind: media.KindAudio,
		Name: audioName,
		Path: audioPath,
	}
	r.log.Info("audio extracted", zap.String("file", audioName))
	return pipeline.Succeeded(r.id, classification, artifact)
}

// Download opens an audio artifact by its bare file name. Names that are not
// audio artifacts, contain path components or do not exist yield media.ErrNotFound.
func (s *Service) Download(name string) (*os.File, fs.FileInfo, error) {
	if !media.IsAudioArtifactName(name) {
		return nil, nil, fmt.Errorf("%w: %q", media.ErrNotFound, name)
	}
	f, info, err := s.scratch.Open(name)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, info, nil
}

func (s *Service) discardVideo(r *run, videoBase string) {
	n, err := s.scratch.RemovePrefix(videoBase)
	if err != nil {
		r.log.Warn("failed to remove video from failed request", zap.Error(err))
		return
	}
	if n > 0 {
		r.log.Debug("removed video from failed request", zap.Int("files", n))
	}
}

// run tracks the state of a single pipeline invocation
type run struct {
	id       string
	state    pipeline.State
	started  time.Time
	log      *zap.Logger
	observer StateObserver
}

func (s *Service) newRun() *run {
	id := uuid.NewString()
	return &run{
		id:       id,
		state:    pipeline.StateIdle,
		started:  time.Now(),
		log:      s.logger.With(zap.String("job_id", id)),
		observer: s.observer,
	}
}

func (r *run) to(next pipeline.State) {
	if !r.state.CanTransition(next) {
		r.log.Error("illegal pipeline transition",
			zap.String("from", string(r.state)),
			zap.String("to", string(next)),
		)
	}
	r.state = next
	r.log.Debug("pipeline state", zap.String("state", string(next)))
	if r.observer != nil {
		r.observer(next)
	}
}

func (r *run) fail(stage pipeline.Stage, err error) pipeline.Result {
	r.to(pipeline.StateFailed)
	r.log.Error("pipeline failed",
		zap.String("stage", string(stage)),
		zap.Error(err),
	)
	return pipeline.Failed(r.id, stage, err)
}

func (r *run) finish() {
	r.log.Debug("pipeline finished",
		zap.String("state", string(r.state)),
		zap.Duration("took", time.Since(r.started)),
	)
}

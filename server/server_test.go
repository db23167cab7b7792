package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiksound/application/extraction"
	"tiksound/domain/detection"
	"tiksound/domain/media"
	"tiksound/domain/pipeline"
	"tiksound/infrastructure/filesystem"
	"tiksound/infrastructure/ratelimit"
)

const tiktokURL = "https://www.tiktok.com/@creator/video/7234567890123456789"

type fakeProber struct {
	meta media.VideoMetadata
	err  error
}

func (p *fakeProber) Probe(ctx context.Context, src media.SourceReference) (*media.VideoMetadata, error) {
	if p.err != nil {
		return nil, p.err
	}
	m := p.meta
	return &m, nil
}

type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) Fetch(ctx context.Context, src media.SourceReference, dir, base string) (string, error) {
	path := filepath.Join(dir, base+".mp4")
	if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
		return "", err
	}
	if f.err != nil {
		return "", f.err
	}
	return path, nil
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(ctx context.Context, videoPath, outputPath string) error {
	return os.WriteFile(outputPath, []byte("ID3-audio-bytes"), 0644)
}

type testEnv struct {
	dir     string
	prober  *fakeProber
	fetcher *fakeFetcher
	server  *Server
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		dir:     t.TempDir(),
		prober:  &fakeProber{meta: media.VideoMetadata{Title: "my original sound"}},
		fetcher: &fakeFetcher{},
	}
	svc := extraction.NewService(
		env.prober,
		detection.NewClassifier(detection.WithDefaultOriginal(false)),
		env.fetcher,
		fakeExtractor{},
		filesystem.NewScratchDir(env.dir),
	)
	opts = append([]Option{
		WithPublicBaseURL("http://example.test/"),
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
	}, opts...)
	env.server = New(svc, opts...)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) countFiles(t *testing.T) (videos, audios int) {
	t.Helper()
	entries, err := os.ReadDir(e.dir)
	require.NoError(t, err)
	for _, entry := range entries {
		switch kind, _ := media.KindOf(entry.Name()); kind {
		case media.KindVideo:
			videos++
		case media.KindAudio:
			audios++
		}
	}
	return videos, audios
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func extractBody(url string) string {
	return fmt.Sprintf(`{"url": %q}`, url)
}

func TestExtract_InvalidURL(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/extract", extractBody("not-a-url"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, MsgInvalidURL, body["message"])

	videos, audios := env.countFiles(t)
	assert.Zero(t, videos+audios)
}

func TestExtract_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/extract", `{"url":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", decode(t, rec)["status"])
}

func TestExtract_Filtered(t *testing.T) {
	env := newTestEnv(t)
	dur := 42.0
	env.prober.meta = media.VideoMetadata{Title: "trend", Uploader: "x", UploaderID: "y", Duration: &dur}

	rec := env.do(t, http.MethodPost, "/extract", extractBody(tiktokURL))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, false, body["originalSound"])
	assert.Equal(t, MsgOverlay, body["message"])
	assert.NotContains(t, body, "downloadUrl")

	videos, audios := env.countFiles(t)
	assert.Zero(t, videos+audios)
}

func TestExtract_Success(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/extract", extractBody(tiktokURL))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, true, body["originalSound"])
	assert.Equal(t, MsgOriginal, body["message"])
	assert.Equal(t, "my original sound", body["title"])

	downloadURL, _ := body["downloadUrl"].(string)
	require.True(t, strings.HasPrefix(downloadURL, "http://example.test/download/audio_"), downloadURL)
	assert.True(t, strings.HasSuffix(downloadURL, ".mp3"))

	videos, audios := env.countFiles(t)
	assert.Equal(t, 0, videos)
	assert.Equal(t, 1, audios)

	// the link resolves
	path := strings.TrimPrefix(downloadURL, "http://example.test")
	dl := env.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, "audio/mpeg", dl.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="tiktok_sound_1700000000000.mp3"`, dl.Header().Get("Content-Disposition"))
	assert.Equal(t, "public, max-age=600", dl.Header().Get("Cache-Control"))
	assert.Equal(t, "ID3-audio-bytes", dl.Body.String())

	// and so does the root alias
	alias := env.do(t, http.MethodGet, "/"+filepath.Base(path), "")
	assert.Equal(t, http.StatusOK, alias.Code)
}

func TestExtract_DownloaderFailure(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.err = fmt.Errorf("%w: yt-dlp exited 1", media.ErrDownloadFailed)

	rec := env.do(t, http.MethodPost, "/extract", extractBody(tiktokURL))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, MsgFailed, body["message"])
	assert.NotContains(t, rec.Body.String(), "yt-dlp", "diagnostics must not leak")

	videos, audios := env.countFiles(t)
	assert.Zero(t, videos+audios)
}

func TestExtract_ProbeToolMissing(t *testing.T) {
	env := newTestEnv(t)
	env.prober.err = fmt.Errorf("yt-dlp: %w", media.ErrToolUnavailable)

	rec := env.do(t, http.MethodPost, "/extract", extractBody(tiktokURL))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, MsgFailed, decode(t, rec)["message"])
}

func TestDownload_NotFound(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "video_1_abc.mp4"), []byte("v"), 0644))

	for _, path := range []string{
		"/download/audio_1_missing.mp3",
		"/download/video_1_abc.mp4",
		"/nothing.mp3",
	} {
		t.Run(path, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, path, "")
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	}

	rec := env.do(t, http.MethodGet, "/download/audio_1_missing.mp3", "")
	assert.Equal(t, MsgFileNotFound, decode(t, rec)["error"])
}

func TestHealth(t *testing.T) {
	t.Run("shallow", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodGet, "/health", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, MsgHealthy, body["message"])
	})

	t.Run("deep failing", func(t *testing.T) {
		env := newTestEnv(t, WithHealthCheck(func(ctx context.Context) error {
			return errors.New("ffmpeg not found")
		}))
		rec := env.do(t, http.MethodGet, "/health?deep=1", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.NotContains(t, rec.Body.String(), "ffmpeg not found")
	})

	t.Run("deep passing", func(t *testing.T) {
		env := newTestEnv(t, WithHealthCheck(func(ctx context.Context) error { return nil }))
		rec := env.do(t, http.MethodGet, "/health?deep=1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", decode(t, rec)["tools"])
	})
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(10 * time.Second)
	env := newTestEnv(t, WithLimiter(limiter, 10*time.Second))

	first := env.do(t, http.MethodPost, "/extract", extractBody(tiktokURL))
	assert.Equal(t, http.StatusOK, first.Code)

	second := env.do(t, http.MethodPost, "/extract", extractBody(tiktokURL))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	body := decode(t, second)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Too many requests. Please wait 10 seconds before trying again.", body["message"])
	assert.Equal(t, "10", second.Header().Get("Retry-After"))

	// downloads and health are not limited
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", "").Code)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	env := newTestEnv(t, WithLimiter(brokenLimiter{}, 10*time.Second))

	rec := env.do(t, http.MethodPost, "/extract", extractBody(tiktokURL))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/extract", nil)
	req.RemoteAddr = "10.0.0.5:51234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "10.0.0.5", New(nil).clientKey(req))
	assert.Equal(t, "203.0.113.9", New(nil, WithTrustProxy(true)).clientKey(req))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.0.0.5", New(nil, WithTrustProxy(true)).clientKey(req))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodOptions, "/extract", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

type panickyPipeline struct{}

func (panickyPipeline) Extract(ctx context.Context, rawURL string) pipeline.Result {
	panic("boom")
}

func (panickyPipeline) Download(name string) (*os.File, os.FileInfo, error) {
	return nil, nil, media.ErrNotFound
}

func TestRecoverer(t *testing.T) {
	s := New(panickyPipeline{})
	req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(extractBody(tiktokURL)))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, MsgFailed, decode(t, rec)["message"])
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/extract", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

//go:build integration

package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"time"

	"tiksound/application/extraction"
	"tiksound/domain/detection"
	"tiksound/domain/media"
	"tiksound/infrastructure/filesystem"
	"tiksound/infrastructure/ratelimit"
	"tiksound/server"

	"github.com/cucumber/godog"
)

// apiContext holds test state for HTTP scenarios
type apiContext struct {
	dir             string
	prober          *fakeProber
	fetcher         *fakeFetcher
	defaultOriginal bool
	limiter         ratelimit.Limiter
	limitWindow     time.Duration
	handler         http.Handler
	response        *httptest.ResponseRecorder
	body            map[string]any
}

// SharedAPIContext is reset before each scenario via Before hook
var SharedAPIContext *apiContext

func getAPIContext() *apiContext {
	return SharedAPIContext
}

func InitializeAPIScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		SharedAPIContext = &apiContext{
			prober:          &fakeProber{},
			fetcher:         &fakeFetcher{},
			defaultOriginal: true,
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if a := getAPIContext(); a != nil && a.dir != "" {
			os.RemoveAll(a.dir)
		}
		SharedAPIContext = nil
		return c, nil
	})

	ctx.Step(`^the API is running with an empty scratch directory$`, theAPIIsRunningWithAnEmptyScratchDirectory)
	ctx.Step(`^the API treats unmatched clips as overlaid sound$`, theAPITreatsUnmatchedClipsAsOverlaidSound)
	ctx.Step(`^the API clip title is "([^"]*)"$`, theAPIClipTitleIs)
	ctx.Step(`^the API downloader fails$`, theAPIDownloaderFails)
	ctx.Step(`^the API limits each client to one request per "([^"]*)"$`, theAPILimitsEachClient)
	ctx.Step(`^I GET "([^"]*)"$`, iGET)
	ctx.Step(`^I POST "([^"]*)" with url "([^"]*)"$`, iPOSTWithURL)
	ctx.Step(`^I follow the download URL$`, iFollowTheDownloadURL)
	ctx.Step(`^the response status should be (\d+)$`, theResponseStatusShouldBe)
	ctx.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, theJSONFieldShouldBe)
	ctx.Step(`^the JSON field "([^"]*)" should be (true|false)$`, theJSONFieldShouldBeBool)
	ctx.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, theResponseHeaderShouldBe)
	ctx.Step(`^the scratch directory should be empty$`, theScratchDirectoryShouldBeEmpty)
	ctx.Step(`^the scratch directory should hold (\d+) audio files? and (\d+) video files?$`, theScratchDirectoryShouldHold)
}

func theAPIIsRunningWithAnEmptyScratchDirectory() error {
	a := getAPIContext()
	dir, err := os.MkdirTemp("", "tiksound-api-*")
	if err != nil {
		return err
	}
	a.dir = dir
	return nil
}

func theAPITreatsUnmatchedClipsAsOverlaidSound() error {
	getAPIContext().defaultOriginal = false
	return nil
}

func theAPIClipTitleIs(title string) error {
	getAPIContext().prober.meta = media.VideoMetadata{Title: title, Uploader: "a", UploaderID: "b"}
	return nil
}

func theAPIDownloaderFails() error {
	getAPIContext().fetcher.failAfterWrite = true
	return nil
}

func theAPILimitsEachClient(window string) error {
	a := getAPIContext()
	d, err := time.ParseDuration(window)
	if err != nil {
		return err
	}
	a.limiter = ratelimit.NewMemoryLimiter(d)
	a.limitWindow = d
	return nil
}

// apiHandler builds the server lazily so Given steps can adjust collaborators first
func apiHandler() http.Handler {
	a := getAPIContext()
	if a.handler != nil {
		return a.handler
	}
	svc := extraction.NewService(
		a.prober,
		detection.NewClassifier(detection.WithDefaultOriginal(a.defaultOriginal)),
		a.fetcher,
		fakeAudioExtractor{},
		filesystem.NewScratchDir(a.dir),
	)
	opts := []server.Option{server.WithPublicBaseURL("http://tiksound.test")}
	if a.limiter != nil {
		opts = append(opts, server.WithLimiter(a.limiter, a.limitWindow))
	}
	a.handler = server.New(svc, opts...).Handler()
	return a.handler
}

func serve(req *http.Request) error {
	a := getAPIContext()
	a.response = httptest.NewRecorder()
	apiHandler().ServeHTTP(a.response, req)

	a.body = nil
	if strings.HasPrefix(a.response.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(a.response.Body.Bytes(), &a.body); err != nil {
			return fmt.Errorf("invalid JSON response: %w", err)
		}
	}
	return nil
}

func iGET(path string) error {
	return serve(httptest.NewRequest(http.MethodGet, path, nil))
}

func iPOSTWithURL(path, videoURL string) error {
	payload, _ := json.Marshal(map[string]string{"url": videoURL})
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	return serve(req)
}

func iFollowTheDownloadURL() error {
	a := getAPIContext()
	raw, ok := a.body["downloadUrl"].(string)
	if !ok {
		return fmt.Errorf("no downloadUrl in response: %v", a.body)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	return iGET(u.Path)
}

func theResponseStatusShouldBe(code int) error {
	a := getAPIContext()
	if a.response.Code != code {
		return fmt.Errorf("expected status %d, got %d: %s", code, a.response.Code, a.response.Body.String())
	}
	return nil
}

func theJSONFieldShouldBe(field, expected string) error {
	a := getAPIContext()
	got, ok := a.body[field]
	if !ok {
		return fmt.Errorf("field %q missing from %v", field, a.body)
	}
	if fmt.Sprint(got) != expected {
		return fmt.Errorf("expected %s=%q, got %q", field, expected, got)
	}
	return nil
}

func theJSONFieldShouldBeBool(field, expected string) error {
	a := getAPIContext()
	got, ok := a.body[field].(bool)
	if !ok {
		return fmt.Errorf("field %q missing or not a boolean in %v", field, a.body)
	}
	if fmt.Sprint(got) != expected {
		return fmt.Errorf("expected %s=%s, got %v", field, expected, got)
	}
	return nil
}

func theResponseHeaderShouldBe(name, expected string) error {
	a := getAPIContext()
	if got := a.response.Header().Get(name); got != expected {
		return fmt.Errorf("expected header %s=%q, got %q", name, expected, got)
	}
	return nil
}

func theScratchDirectoryShouldBeEmpty() error {
	return theScratchDirectoryShouldHold(0, 0)
}

func theScratchDirectoryShouldHold(audio, video int) error {
	a := getAPIContext()
	gotAudio, gotVideo, err := countScratchFiles(a.dir)
	if err != nil {
		return err
	}
	if gotAudio != audio || gotVideo != video {
		return fmt.Errorf("expected %d audio and %d video files, got %d and %d", audio, video, gotAudio, gotVideo)
	}
	return nil
}

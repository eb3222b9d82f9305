package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"

	"github.com/soundforge/studio/internal/generator"
	"github.com/soundforge/studio/internal/handler"
	"github.com/soundforge/studio/internal/history"
	"github.com/soundforge/studio/internal/intake"
	"github.com/soundforge/studio/internal/service"
	"github.com/soundforge/studio/internal/tracker"
	ws "github.com/soundforge/studio/internal/websocket"
)

const testAudioURL = "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-4.mp3"

// testApp holds all components needed for testing
type testApp struct {
	app     *fiber.App
	history *history.History
}

type appOptions struct {
	interval time.Duration
	seed     bool
}

// setupApp creates a Fiber app wired like main.go with the default
// Redis-free configuration: file history on an in-memory fs, in-memory job
// records, local dispatch and the simulated generator.
func setupApp(t *testing.T, opts appOptions) *testApp {
	t.Helper()

	if opts.interval == 0 {
		opts.interval = time.Millisecond
	}

	var historyOpts []history.Option
	if opts.seed {
		historyOpts = append(historyOpts, history.WithSeed(history.DefaultSeed(time.Now())))
	}
	musicHistory := history.New(history.NewFileStore(afero.NewMemMapFs(), "/data/history.json"), historyOpts...)
	if err := musicHistory.Load(context.Background()); err != nil {
		t.Fatalf("failed to load history: %v", err)
	}

	gen := generator.NewSimulated(opts.interval, 10, testAudioURL)
	jobTracker := tracker.New(gen, musicHistory, tracker.WithTimeout(time.Minute))
	t.Cleanup(func() { jobTracker.Shutdown(context.Background()) })

	validate := validator.New()
	jobIntake, err := intake.New(validate)
	if err != nil {
		t.Fatalf("failed to create intake: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub()
	go hub.Run(ctx)

	svc := service.NewGenerationService(jobIntake, jobTracker, musicHistory, service.NewMemoryJobRecords(time.Hour), hub, nil)

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"generator": "simulated",
				"suno":      false,
				"r2":        false,
				"history":   "file",
				"busy":      jobTracker.IsBusy(),
			},
		})
	})

	routes := &handler.Routes{
		Generation: handler.NewGenerationHandler(svc, validate),
		History:    handler.NewHistoryHandler(svc, validate),
		Stream:     handler.NewStreamHandler(svc, hub),
	}
	routes.Register(app)

	return &testApp{app: app, history: musicHistory}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// errorCode extracts error.code from an error envelope.
func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	e, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := e["code"].(string)
	return code
}

// waitForStatus polls the job until it reaches want or the deadline passes.
func waitForStatus(t *testing.T, app *fiber.App, jobID, want string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := doRequest(app, http.MethodGet, "/api/generations/"+jobID, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		body := parseJSON(t, resp)
		if body["status"] == want {
			return body
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %q", jobID, want)
	return nil
}

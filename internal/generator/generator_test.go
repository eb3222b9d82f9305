package generator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soundforge/studio/internal/client"
	"github.com/soundforge/studio/internal/model"
)

var req = model.GenerationRequest{Prompt: "lofi rain", Genre: "Lo-Fi", DurationSeconds: 90}

func TestSimulatedReachesHundred(t *testing.T) {
	g := NewSimulated(time.Millisecond, 10, "https://example.com/song.mp3")

	var seen []int
	url, err := g.Generate(context.Background(), "job", req, func(p int) { seen = append(seen, p) })
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if url != "https://example.com/song.mp3" {
		t.Errorf("url = %q", url)
	}
	if len(seen) != 10 || seen[0] != 10 || seen[9] != 100 {
		t.Errorf("progress = %v, want 10..100 in steps of 10", seen)
	}
}

func TestSimulatedDefaults(t *testing.T) {
	g := NewSimulated(0, 0, "")
	if g.Interval != 300*time.Millisecond || g.Step != 10 {
		t.Errorf("defaults = %v/%d, want 300ms/10", g.Interval, g.Step)
	}
}

func TestSimulatedUnevenStepCapsAtHundred(t *testing.T) {
	g := NewSimulated(time.Millisecond, 30, "u")
	var seen []int
	if _, err := g.Generate(context.Background(), "job", req, func(p int) { seen = append(seen, p) }); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []int{30, 60, 90, 100}
	if len(seen) != len(want) || seen[3] != 100 {
		t.Errorf("progress = %v, want %v", seen, want)
	}
}

func TestSimulatedCanceled(t *testing.T) {
	g := NewSimulated(time.Hour, 10, "u")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Generate(ctx, "job", req, func(int) {}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

type fakeAPI struct {
	submitErr error
	polls     []client.MusicResult
	final     *client.MusicResult
	got       *client.GenerateMusicRequest
}

func (f *fakeAPI) GenerateMusic(ctx context.Context, r *client.GenerateMusicRequest) (*client.GenerateMusicResponse, error) {
	f.got = r
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &client.GenerateMusicResponse{TaskID: "task-9"}, nil
}

func (f *fakeAPI) PollMusicStatus(ctx context.Context, taskID string, interval, maxWait time.Duration, onPoll func(*client.MusicResult)) (*client.MusicResult, error) {
	for i := range f.polls {
		onPoll(&f.polls[i])
	}
	if f.final == nil {
		return nil, errors.New("music generation failed: failed")
	}
	return f.final, nil
}

func TestSunoProgressAndResult(t *testing.T) {
	api := &fakeAPI{
		polls: []client.MusicResult{{Status: "processing"}, {Status: "processing", Progress: 40}, {Status: "processing", Progress: 120}},
		final: &client.MusicResult{Status: "completed", AudioURL: "https://cdn.example.com/x.mp3"},
	}
	g := NewSuno(api, time.Millisecond, time.Second)

	var seen []int
	url, err := g.Generate(context.Background(), "job", req, func(p int) { seen = append(seen, p) })
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if url != "https://cdn.example.com/x.mp3" {
		t.Errorf("url = %q", url)
	}
	if api.got.Prompt != "lofi rain" || api.got.Style != "Lo-Fi" || api.got.Duration != 90 {
		t.Errorf("submitted = %+v", api.got)
	}
	want := []int{5, 10, 40, 95}
	if len(seen) != len(want) {
		t.Fatalf("progress = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("progress = %v, want %v", seen, want)
		}
	}
}

func TestSunoSubmitError(t *testing.T) {
	g := NewSuno(&fakeAPI{submitErr: errors.New("unauthorized")}, time.Millisecond, time.Second)
	if _, err := g.Generate(context.Background(), "job", req, func(int) {}); err == nil {
		t.Fatal("expected submit error")
	}
}

func TestSunoEmptyAudio(t *testing.T) {
	g := NewSuno(&fakeAPI{final: &client.MusicResult{Status: "completed"}}, time.Millisecond, time.Second)
	if _, err := g.Generate(context.Background(), "job", req, func(int) {}); err == nil {
		t.Fatal("expected error for missing audio url")
	}
}

type fakeStorage struct {
	key         string
	body        string
	contentType string
}

func (s *fakeStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.key, s.body, s.contentType = key, string(data), contentType
	return s.GetPublicURL(key), nil
}

func (s *fakeStorage) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return s.GetPublicURL(key) + "?signed", nil
}

func (s *fakeStorage) GetPublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

func (s *fakeStorage) KeyFromURL(url string) (string, bool) {
	return "", false
}

type fixedGenerator string

func (g fixedGenerator) Generate(ctx context.Context, jobID string, req model.GenerationRequest, progress func(int)) (string, error) {
	progress(100)
	return string(g), nil
}

func TestMirroredUploadsAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		io.WriteString(w, "RIFF....")
	}))
	defer srv.Close()

	storage := &fakeStorage{}
	g := NewMirrored(fixedGenerator(srv.URL+"/song.wav?token=abc"), storage, srv.Client())

	url, err := g.Generate(context.Background(), "job-1", req, func(int) {})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if storage.key != "assets/job-1.wav" || storage.body != "RIFF...." || storage.contentType != "audio/wav" {
		t.Errorf("uploaded = %+v", storage)
	}
	if url != "https://cdn.example.com/assets/job-1.wav" {
		t.Errorf("url = %q", url)
	}
}

func TestMirroredSourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	g := NewMirrored(fixedGenerator(srv.URL+"/gone.mp3"), &fakeStorage{}, srv.Client())
	if _, err := g.Generate(context.Background(), "job", req, func(int) {}); err == nil {
		t.Fatal("expected error for 404 source")
	}
}

func TestAssetKey(t *testing.T) {
	if got := AssetKey("j", "https://x/y/song.mp3?sig=1"); got != "assets/j.mp3" {
		t.Errorf("AssetKey = %q", got)
	}
	if got := AssetKey("j", "https://x/stream"); got != "assets/j.mp3" {
		t.Errorf("AssetKey = %q", got)
	}
}

func TestEstimates(t *testing.T) {
	tests := []struct {
		name string
		gen  interface {
			Estimate(model.GenerationRequest) time.Duration
		}
		want time.Duration
	}{
		{"defaults", NewSimulated(0, 0, "u"), 3 * time.Second},
		{"uneven step", NewSimulated(time.Second, 30, "u"), 4 * time.Second},
		{"mirrored simulated", NewMirrored(NewSimulated(time.Second, 50, "u"), nil, nil), 2 * time.Second},
		{"mirrored suno", NewMirrored(NewSuno(nil, time.Second, time.Minute), nil, nil), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.gen.Estimate(req); got != tt.want {
				t.Errorf("Estimate = %v, want %v", got, tt.want)
			}
		})
	}
}

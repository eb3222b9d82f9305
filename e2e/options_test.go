package e2e

import (
	"net/http"
	"testing"
)

func TestOptions(t *testing.T) {
	ta := setupApp(t, appOptions{})

	resp, err := doRequest(ta.app, http.MethodGet, "/api/options", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	genres, ok := body["genres"].([]interface{})
	if !ok || len(genres) != 10 || genres[0] != "Lo-Fi" {
		t.Errorf("unexpected genres: %v", body["genres"])
	}
	if body["defaultGenre"] != "Custom" {
		t.Errorf("expected default genre Custom, got %v", body["defaultGenre"])
	}
	if body["defaultDuration"] != float64(120) {
		t.Errorf("expected default duration 120, got %v", body["defaultDuration"])
	}

	allowed := map[float64]bool{}
	for _, d := range body["allowedDurations"].([]interface{}) {
		allowed[d.(float64)] = true
	}
	presets, ok := body["durations"].([]interface{})
	if !ok || len(presets) != 5 {
		t.Fatalf("unexpected durations: %v", body["durations"])
	}
	for _, p := range presets {
		preset := p.(map[string]interface{})
		if preset["label"] == "" || !allowed[preset["value"].(float64)] {
			t.Errorf("preset %v is not an accepted duration", preset)
		}
	}
}

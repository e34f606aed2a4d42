package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeSessions struct {
	ids []uint16
}

func (f fakeSessions) SessionCount() int    { return len(f.ids) }
func (f fakeSessions) SessionIDs() []uint16 { return f.ids }

func TestHealthAndState(t *testing.T) {
	sessions := fakeSessions{ids: []uint16{3, 7}}
	api := New(sessions)
	ts := httptest.NewServer(api.Echo())
	defer ts.Close()

	healthResp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer healthResp.Body.Close()
	if healthResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", healthResp.StatusCode)
	}
	var health healthResponse
	if err := json.NewDecoder(healthResp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" || health.Sessions != 2 {
		t.Fatalf("unexpected health payload: %#v", health)
	}

	stateResp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state: %v", err)
	}
	defer stateResp.Body.Close()
	if stateResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /api/state, got %d", stateResp.StatusCode)
	}
	var state stateResponse
	if err := json.NewDecoder(stateResp.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if len(state.Sessions) != 2 {
		t.Fatalf("unexpected state payload: %#v", state)
	}
}

func TestHealthEmpty(t *testing.T) {
	api := New(fakeSessions{})
	ts := httptest.NewServer(api.Echo())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state: %v", err)
	}
	defer resp.Body.Close()
	var state stateResponse
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Sessions == nil || len(state.Sessions) != 0 {
		t.Fatalf("expected empty-but-non-nil sessions, got %#v", state.Sessions)
	}
}

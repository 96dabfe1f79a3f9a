package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) *RoomManager {
	t.Helper()
	cfg := DefaultConfig()
	m := NewRoomManager(cfg)
	t.Cleanup(m.Close)
	return m
}

func TestAdminConfigGetAndUpdate(t *testing.T) {
	m := newTestManager(t)

	rec := httptest.NewRecorder()
	body := `{"simulateDelayMinMs":20,"simulateDelayMaxMs":10}`
	m.HandleAdminConfig(rec, httptest.NewRequest(http.MethodPost, "/admin/config?room=r1", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("post status = %d body=%s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	m.HandleAdminConfig(rec, httptest.NewRequest(http.MethodGet, "/admin/config?room=r1", nil))
	var got netConfig
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	// max 小于 min 时被抬到 min
	if *got.SimulateDelayMinMs != 20 || *got.SimulateDelayMaxMs != 20 {
		t.Fatalf("delay = [%d,%d], want [20,20]", *got.SimulateDelayMinMs, *got.SimulateDelayMaxMs)
	}
	if got.Rules == nil || *got.Rules != DefaultConfig().Rules {
		t.Fatalf("rules = %+v", got.Rules)
	}

	rec = httptest.NewRecorder()
	m.HandleAdminConfig(rec, httptest.NewRequest(http.MethodPost, "/admin/config?room=r1", strings.NewReader(`{"rules":{"syncRate":60}}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("rules update status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	m.HandleAdminConfig(rec, httptest.NewRequest(http.MethodDelete, "/admin/config", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("delete status = %d", rec.Code)
	}
}

func TestMetricsAndRooms(t *testing.T) {
	m := newTestManager(t)

	rec := httptest.NewRecorder()
	m.HandleMetrics(rec, httptest.NewRequest(http.MethodGet, "/metrics?room=nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing room status = %d", rec.Code)
	}

	for _, id := range []string{"b", "a"} {
		if _, err := m.GetOrCreateRoom(id); err != nil {
			t.Fatal(err)
		}
	}
	rec = httptest.NewRecorder()
	m.HandleMetrics(rec, httptest.NewRequest(http.MethodGet, "/metrics?room=a", nil))
	var metrics struct {
		Room    string         `json:"room"`
		Metrics map[string]any `json:"metrics"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&metrics); err != nil {
		t.Fatal(err)
	}
	if metrics.Room != "a" || metrics.Metrics["tick_count"] == nil {
		t.Fatalf("metrics = %+v", metrics)
	}

	rec = httptest.NewRecorder()
	m.HandleRooms(rec, httptest.NewRequest(http.MethodGet, "/admin/rooms", nil))
	var rooms []RoomInfo
	if err := json.NewDecoder(rec.Body).Decode(&rooms); err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 2 || rooms[0].ID != "a" || rooms[1].ID != "b" || !rooms[0].Running {
		t.Fatalf("rooms = %+v", rooms)
	}
}

func TestClosedManagerRefusesRooms(t *testing.T) {
	m := newTestManager(t)
	m.Close()

	if _, err := m.GetOrCreateRoom("late"); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("err = %v, want ErrManagerClosed", err)
	}
	rec := httptest.NewRecorder()
	m.HandleWS(rec, httptest.NewRequest(http.MethodGet, "/ws?room=late", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ws status = %d, want 503", rec.Code)
	}
	rec = httptest.NewRecorder()
	m.HandleAdminConfig(rec, httptest.NewRequest(http.MethodGet, "/admin/config?room=late", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("admin status = %d, want 503", rec.Code)
	}
	if _, ok := m.Room("late"); ok {
		t.Fatalf("room created after close")
	}
}

func TestSchemaEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleSchema(rec, httptest.NewRequest(http.MethodGet, "/schema", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"properties"`) {
		t.Fatalf("schema status=%d body=%s", rec.Code, rec.Body)
	}
}

package agents_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/agent-chat/internal/agents"
	"github.com/JaimeStill/agent-chat/pkg/logging"
	"github.com/JaimeStill/agent-chat/pkg/routes"
	"github.com/google/uuid"
)

func newMux(t *testing.T) (*http.ServeMux, *agents.Registry, *agents.PresetStore) {
	t.Helper()
	reg := newRegistry(t)
	presets := agents.NewPresetStore()
	h := agents.NewHandler(reg, presets, logging.Discard(), pageConfig)

	mux := http.NewServeMux()
	routes.Register(mux, "/api", h.Routes())
	return mux, reg, presets
}

func TestHandler_List(t *testing.T) {
	mux, reg, _ := newMux(t)
	mustCreate(t, reg, "price", 2, true)
	mustCreate(t, reg, "boq", 1, true)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/agents", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []agents.Agent
	json.NewDecoder(rec.Body).Decode(&got)
	if len(got) != 2 || got[0].Name != "boq" {
		t.Errorf("body = %v", names(got))
	}
}

func TestHandler_CreateAndFind(t *testing.T) {
	mux, _, _ := newMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/agents",
		strings.NewReader(`{"name":"boq","system_prompt":"count"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}

	var created agents.Agent
	json.NewDecoder(rec.Body).Decode(&created)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/agents/"+created.ID.String(), nil))
	if rec.Code != http.StatusOK {
		t.Errorf("find status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/agents/"+uuid.NewString(), nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d", rec.Code)
	}
}

func TestHandler_Select(t *testing.T) {
	mux, reg, _ := newMux(t)
	boq := mustCreate(t, reg, "boq", 1, true)
	price := mustCreate(t, reg, "price", 2, true)

	body, _ := json.Marshal(agents.SelectRequest{
		Mode:    "multi",
		Current: []uuid.UUID{boq.ID, price.ID},
		Toggled: boq.ID,
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/agents/select", strings.NewReader(string(body))))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var sel agents.Selection
	json.NewDecoder(rec.Body).Decode(&sel)
	if len(sel) != 1 || sel[0] != price.ID {
		t.Errorf("selection = %v, want [price]", sel)
	}
}

func TestHandler_Presets(t *testing.T) {
	mux, reg, presets := newMux(t)
	boq := mustCreate(t, reg, "boq", 1, true)

	body := `{"agent_ids":["` + boq.ID.String() + `"]}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("PUT", "/api/agents/presets/quick", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", rec.Code, rec.Body)
	}

	if _, err := presets.Find(context.Background(), "quick"); err != nil {
		t.Fatalf("preset not saved: %v", err)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/agents/presets/quick/apply", nil))
	var sel agents.Selection
	json.NewDecoder(rec.Body).Decode(&sel)
	if len(sel) != 1 || sel[0] != boq.ID {
		t.Errorf("apply = %v", sel)
	}

	body = `{"agent_ids":["` + uuid.NewString() + `"]}`
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("PUT", "/api/agents/presets/bad", strings.NewReader(body)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown agent status = %d", rec.Code)
	}
}

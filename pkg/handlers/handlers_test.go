package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/agent-chat/pkg/handlers"
	"github.com/JaimeStill/agent-chat/pkg/logging"
)

func TestRespondJSON(t *testing.T) {
	w := httptest.NewRecorder()
	handlers.RespondJSON(w, http.StatusCreated, map[string]string{"id": "c1"})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["id"] != "c1" {
		t.Errorf("body = %v", body)
	}
}

func TestRespondError(t *testing.T) {
	w := httptest.NewRecorder()
	handlers.RespondError(w, logging.Discard(), http.StatusNotFound, errors.New("conversation not found"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"error":"conversation not found"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestDecodeJSON(t *testing.T) {
	type request struct {
		Text string `json:"text"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"text":"hello"}`, false},
		{"unknown field", `{"text":"hello","extra":1}`, true},
		{"malformed", `{"text":`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			got, err := handlers.DecodeJSON[request](r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.Text != "hello" {
				t.Errorf("Text = %q", got.Text)
			}
		})
	}
}

package agents_test

import (
	"errors"
	"testing"

	"github.com/JaimeStill/agent-chat/internal/agents"
	"github.com/JaimeStill/agent-chat/internal/messages"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    messages.ContentType
		wantErr bool
	}{
		{
			name:    "direct json",
			content: `{"type":"list","data":{"items":["a"]},"summary":"one item"}`,
			want:    messages.ContentList,
		},
		{
			name:    "fenced json",
			content: "Here you go:\n```json\n{\"type\":\"text\",\"data\":{\"text\":\"hi\"},\"summary\":\"s\"}\n```",
			want:    messages.ContentText,
		},
		{name: "empty", content: "  ", wantErr: true},
		{name: "prose", content: "I could not find anything.", wantErr: true},
		{name: "missing type", content: `{"data":{}}`, wantErr: true},
		{name: "missing data", content: `{"type":"text"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := agents.ParseResponse(tt.content)
			if tt.wantErr {
				if !errors.Is(err, agents.ErrMalformed) {
					t.Fatalf("ParseResponse() error = %v, want ErrMalformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseResponse() error = %v", err)
			}
			if resp.Type != tt.want {
				t.Errorf("type = %s, want %s", resp.Type, tt.want)
			}
		})
	}
}

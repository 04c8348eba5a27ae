package agents

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/JaimeStill/agent-chat/internal/messages"
)

var jsonBlockRegex = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")

// Response is an agent's structured reply.
type Response struct {
	Type    messages.ContentType `json:"type"`
	Data    map[string]any       `json:"data"`
	Summary string               `json:"summary"`
}

// ParseResponse extracts a Response from model output. It first attempts
// direct JSON unmarshaling, then falls back to a fenced code block.
func ParseResponse(content string) (*Response, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformed)
	}

	var resp Response
	if err := json.Unmarshal([]byte(content), &resp); err == nil {
		return validateResponse(resp)
	}

	matches := jsonBlockRegex.FindStringSubmatch(content)
	if len(matches) >= 2 {
		cleaned := strings.TrimSpace(matches[1])
		if err := json.Unmarshal([]byte(cleaned), &resp); err == nil {
			return validateResponse(resp)
		}
	}

	return nil, fmt.Errorf("%w: could not parse JSON from response", ErrMalformed)
}

func validateResponse(r Response) (*Response, error) {
	if r.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if r.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrMalformed)
	}
	r.Summary = strings.TrimSpace(r.Summary)
	return &r, nil
}

// Package conversations manages conversation records. Messages live in the
// messages package and are removed with their conversation.
package conversations

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateCommand struct {
	Title string `json:"title"`
}

type UpdateCommand struct {
	Title string `json:"title"`
}

const maxTitle = 200

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if len(title) > maxTitle {
		return "", ErrInvalidTitle
	}
	if title == "" {
		title = "New conversation"
	}
	return title, nil
}

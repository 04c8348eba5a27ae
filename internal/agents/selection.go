package agents

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Mode controls how a toggle changes a Selection.
type Mode string

const (
	// ModeSingle makes every toggle an exclusive choice.
	ModeSingle Mode = "single"
	// ModeMulti adds an agent on first toggle and removes it on the next.
	ModeMulti Mode = "multi"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeSingle, ModeMulti:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Selection is an ordered set of agent ids. Order is the order agents were
// added and becomes pipeline invocation order.
type Selection []uuid.UUID

// NewSelection builds a Selection from ids, keeping the first occurrence
// of each duplicate.
func NewSelection(ids ...uuid.UUID) Selection {
	out := make(Selection, 0, len(ids))
	for _, id := range ids {
		if !out.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

func (s Selection) Contains(id uuid.UUID) bool {
	return slices.Contains(s, id)
}

// Select applies a toggle of id to current and returns the new selection.
// current is never modified.
func Select(mode Mode, current Selection, toggled uuid.UUID) Selection {
	if mode == ModeSingle {
		return Selection{toggled}
	}

	i := slices.Index(current, toggled)
	if i >= 0 {
		return slices.Delete(slices.Clone(current), i, i+1)
	}
	return append(slices.Clone(current), toggled)
}

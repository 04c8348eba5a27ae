package pipeline

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const encoding = "cl100k_base"

var loaderOnce sync.Once

// Budget caps the token count of prior-context sections in a prompt.
type Budget struct {
	enc   *tiktoken.Tiktoken
	limit int
}

// NewBudget uses the embedded BPE ranks, so no network access is needed.
func NewBudget(limit int) (*Budget, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", encoding, err)
	}
	return &Budget{enc: enc, limit: limit}, nil
}

func (b *Budget) Limit() int {
	return b.limit
}

func (b *Budget) Count(text string) int {
	return len(b.enc.Encode(text, nil, nil))
}

// Fit drops sections from the front until the remainder fits the limit.
// A non-positive limit keeps everything; configuration keeps zero for the
// default, so a negative limit is how trimming is turned off.
func (b *Budget) Fit(sections []string) []string {
	if b.limit <= 0 {
		return sections
	}

	counts := make([]int, len(sections))
	total := 0
	for i, s := range sections {
		counts[i] = b.Count(s)
		total += counts[i]
	}

	start := 0
	for start < len(sections) && total > b.limit {
		total -= counts[start]
		start++
	}
	return sections[start:]
}

// Truncate cuts text to at most limit tokens. A non-positive limit returns
// text unchanged.
func (b *Budget) Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	tokens := b.enc.Encode(text, nil, nil)
	if len(tokens) <= limit {
		return text
	}
	return b.enc.Decode(tokens[:limit])
}

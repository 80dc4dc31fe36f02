package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Tiktoken counts tokens with a real BPE encoding so passage budgets line up
// with what embedding models actually see.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Words is the fallback counter used when no BPE encoding is available.
// Whitespace-delimited words undercount BPE tokens slightly but keep
// passage sizes in the same ballpark.
type Words struct{}

func (Words) Count(text string) int {
	return len(strings.Fields(text))
}

package assistant

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

// MaxHistoryTokens bounds the prior turns sent upstream.
const MaxHistoryTokens = 1500

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

// countTokens returns the cl100k token count of text, or a four characters
// per token estimate when the codec cannot be loaded.
func countTokens(text string) int {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			log.Warn().Err(err).Msg("Tokenizer unavailable, estimating history size")
			return
		}
		codec = c
	})
	if codec != nil {
		if ids, _, err := codec.Encode(text); err == nil {
			return len(ids)
		}
	}
	return (len(text) + 3) / 4
}

// trimHistory keeps the newest messages whose combined size fits budget.
func trimHistory(history []Message, budget int) []Message {
	total := 0
	for i := len(history) - 1; i >= 0; i-- {
		total += countTokens(history[i].Text)
		if total > budget {
			return history[i+1:]
		}
	}
	return history
}

package embedder

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts the tokens of a chunk candidate
type TokenCounter interface {
	Count(text string) int
}

// WordCounter approximates tokens by whitespace separated words
type WordCounter struct{}

func (WordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// TikTokenCounter counts tokens with an OpenAI byte pair encoding
type TikTokenCounter struct {
	tke *tiktoken.Tiktoken
}

// NewTikTokenCounter accepts an encoding name such as "cl100k_base"
func NewTikTokenCounter(encoding string) (*TikTokenCounter, error) {
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tiktoken encoding %s: %w", encoding, err)
	}
	return &TikTokenCounter{tke: tke}, nil
}

func (ttc *TikTokenCounter) Count(text string) int {
	return len(ttc.tke.Encode(text, nil, nil))
}

// NewTokenCounter resolves a tokenizer setting. Empty or "words" counts
// words, a known model name such as "gpt-4o" uses the model's encoding,
// anything else is taken as an encoding name.
func NewTokenCounter(name string) (TokenCounter, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "words") {
		return WordCounter{}, nil
	}
	if tke, err := tiktoken.EncodingForModel(name); err == nil {
		return &TikTokenCounter{tke: tke}, nil
	}
	return NewTikTokenCounter(name)
}

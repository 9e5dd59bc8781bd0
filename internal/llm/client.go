// Package llm provides text generation via a hosted language model API.
package llm

import "context"

// Client generates an answer for a prompt.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Mock is a test double that records prompts and returns canned output.
type Mock struct {
	Response string
	Err      error
	Prompts  []string
}

func (m *Mock) Generate(_ context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

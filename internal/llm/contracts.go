package llm

import "context"

// Prompt is one system + user message pair.
type Prompt struct {
	System string
	User   string
}

// Response is the raw text a generator produced.
type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Generator turns a prompt into free text. The pipeline depends only on this.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, p Prompt) (Response, error)

func (f GeneratorFunc) Generate(ctx context.Context, p Prompt) (Response, error) {
	return f(ctx, p)
}

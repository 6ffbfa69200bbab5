// Package subq decomposes complex queries into tool-bound
// sub-questions, dispatches them concurrently, and synthesizes a final
// answer from the partial answers.
package subq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	quarry "github.com/davrk/quarry"
)

const decompositionPrompt = `You are given a user question and a list of retrieval tools. Break the question into the smallest set of atomic sub-questions that together answer it, and assign each sub-question to the single most relevant tool.

Tools:
%s

User question: %s

Respond with only a JSON array, where each element is {"tool": "<tool name>", "sub_question": "<question text>"}. Use only the tool names listed above. No code fences, no commentary.`

// Generator produces an ordered list of tool-bound sub-questions for a
// query. Identical input does not guarantee identical output — the
// decomposition is model-driven and non-determinism is part of the
// contract.
type Generator interface {
	Generate(ctx context.Context, query string, tools []quarry.ToolDescriptor) ([]quarry.SubQuestion, error)
}

// LLMGenerator implements Generator with a single decomposition prompt
// embedding every tool's name and description.
type LLMGenerator struct {
	provider  quarry.Provider
	maxSubQs  int
	maxTokens int
	logger    *slog.Logger
}

var _ Generator = (*LLMGenerator)(nil)

// GeneratorOption configures an LLMGenerator.
type GeneratorOption func(*LLMGenerator)

// MaxSubQuestions caps how many sub-questions one decomposition may
// produce; excess entries are dropped with a warning (default 8).
func MaxSubQuestions(n int) GeneratorOption {
	return func(g *LLMGenerator) { g.maxSubQs = n }
}

// GeneratorMaxTokens caps the decomposition model output (default 512).
func GeneratorMaxTokens(n int) GeneratorOption {
	return func(g *LLMGenerator) { g.maxTokens = n }
}

// GeneratorLogger sets a structured logger.
func GeneratorLogger(l *slog.Logger) GeneratorOption {
	return func(g *LLMGenerator) { g.logger = l }
}

// NewGenerator creates an LLMGenerator backed by p.
func NewGenerator(p quarry.Provider, opts ...GeneratorOption) *LLMGenerator {
	g := &LLMGenerator{provider: p, maxSubQs: 8, maxTokens: 512}
	for _, o := range opts {
		o(g)
	}
	if g.logger == nil {
		g.logger = nopLogger
	}
	return g
}

// Generate decomposes query against the given tools. Unparsable model
// output and references to unknown tools surface as
// *quarry.ErrMalformedDecomposition after one corrective retry; no
// invented tools ever pass through.
func (g *LLMGenerator) Generate(ctx context.Context, query string, tools []quarry.ToolDescriptor) ([]quarry.SubQuestion, error) {
	if len(tools) == 0 {
		return nil, &quarry.ErrConfig{Field: "tools", Reason: "at least one tool descriptor required"}
	}

	var toolList strings.Builder
	known := make(map[string]bool, len(tools))
	for _, t := range tools {
		fmt.Fprintf(&toolList, "- %s: %s\n", t.Name, t.Description)
		known[t.Name] = true
	}
	prompt := fmt.Sprintf(decompositionPrompt, toolList.String(), query)

	resp, err := g.provider.Complete(ctx, quarry.CompletionRequest{Prompt: prompt, MaxTokens: g.maxTokens})
	if err != nil {
		return nil, err
	}
	subqs, perr := parseDecomposition(resp.Text, known)
	if perr == nil {
		return g.cap(subqs), nil
	}

	// One corrective retry carrying the bad reply.
	g.logger.Warn("decomposition unparsable, retrying with corrective prompt", "err", perr)
	corrective := prompt +
		"\n\nYour previous reply could not be used (" + perr.Reason + "):\n" + resp.Text +
		"\n\nReply again with only the JSON array, using only the listed tool names."
	resp, err = g.provider.Complete(ctx, quarry.CompletionRequest{Prompt: corrective, MaxTokens: g.maxTokens})
	if err != nil {
		return nil, err
	}
	subqs, perr = parseDecomposition(resp.Text, known)
	if perr != nil {
		return nil, perr
	}
	return g.cap(subqs), nil
}

func (g *LLMGenerator) cap(subqs []quarry.SubQuestion) []quarry.SubQuestion {
	if g.maxSubQs > 0 && len(subqs) > g.maxSubQs {
		g.logger.Warn("decomposition truncated",
			"produced", len(subqs), "max", g.maxSubQs)
		subqs = subqs[:g.maxSubQs]
	}
	return subqs
}

// parseDecomposition parses the model reply into pending sub-questions,
// rejecting empty lists and tool names outside known.
func parseDecomposition(raw string, known map[string]bool) ([]quarry.SubQuestion, *quarry.ErrMalformedDecomposition) {
	payload, ok := extractJSONArray(raw)
	if !ok {
		return nil, &quarry.ErrMalformedDecomposition{Raw: raw, Reason: "no JSON array found"}
	}

	var items []struct {
		Tool        string `json:"tool"`
		SubQuestion string `json:"sub_question"`
	}
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, &quarry.ErrMalformedDecomposition{Raw: raw, Reason: "invalid JSON: " + err.Error()}
	}
	if len(items) == 0 {
		return nil, &quarry.ErrMalformedDecomposition{Raw: raw, Reason: "empty decomposition"}
	}

	subqs := make([]quarry.SubQuestion, 0, len(items))
	for _, it := range items {
		question := strings.TrimSpace(it.SubQuestion)
		if question == "" {
			return nil, &quarry.ErrMalformedDecomposition{Raw: raw, Reason: "sub-question with empty text"}
		}
		if !known[it.Tool] {
			return nil, &quarry.ErrMalformedDecomposition{Raw: raw, Reason: fmt.Sprintf("unknown tool %q", it.Tool)}
		}
		subqs = append(subqs, quarry.SubQuestion{
			ID:       quarry.NewID(),
			Tool:     it.Tool,
			Question: question,
			Status:   quarry.StatusPending,
		})
	}
	return subqs, nil
}

// extractJSONArray returns the outermost [...] span of raw, tolerating
// code fences and prose around it.
func extractJSONArray(raw string) (string, bool) {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// nopLogger discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

package subq

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	quarry "github.com/davrk/quarry"
)

const synthesisPrompt = `You are answering the user's original question using evidence gathered from sub-questions.

Original question: %s

Sub-question evidence:
%s
%sWrite a single consolidated answer to the original question, consistent with all available evidence. If the question asks for multiple values, include every requested value. Where evidence is unavailable, say so explicitly instead of inventing a value.

Answer:`

const allFailedNote = `None of the sub-questions produced evidence. State clearly that the answer cannot be grounded in the corpus and give your best effort from the question alone, marked as ungrounded.

`

// Engine answers a query by decomposing it into sub-questions,
// dispatching each against its bound tool, and synthesizing one final
// answer. Each Ask runs the sequence DECOMPOSE → DISPATCH → COLLECT →
// SYNTHESIZE → DONE; a decomposition or synthesis failure fails the
// query, while individual sub-question failures only degrade it. All
// engine state is scoped to one Ask and discarded.
type Engine struct {
	provider       quarry.Provider
	gen            Generator
	workers        int
	synthMaxTokens int
	logger         *slog.Logger
	tracer         quarry.Tracer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithGenerator replaces the default LLMGenerator. The engine still
// validates tool bindings before dispatching, so a custom generator
// cannot route to unknown tools.
func WithGenerator(g Generator) EngineOption {
	return func(e *Engine) { e.gen = g }
}

// WithWorkers bounds concurrent sub-question dispatches (default 4).
func WithWorkers(n int) EngineOption {
	return func(e *Engine) { e.workers = n }
}

// WithSynthesisMaxTokens caps the synthesis model output (default 1024).
func WithSynthesisMaxTokens(n int) EngineOption {
	return func(e *Engine) { e.synthMaxTokens = n }
}

// WithLogger sets a structured logger for engine events.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithTracer sets a span tracer for ask operations.
func WithTracer(t quarry.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// NewEngine creates an Engine backed by p for decomposition and
// synthesis.
func NewEngine(p quarry.Provider, opts ...EngineOption) *Engine {
	e := &Engine{provider: p, workers: 4, synthMaxTokens: 1024}
	for _, o := range opts {
		o(e)
	}
	if e.gen == nil {
		e.gen = NewGenerator(p)
	}
	if e.logger == nil {
		e.logger = nopLogger
	}
	return e
}

// Ask answers query using the given tools. The returned Result always
// carries the full sub-question trace that was produced, even when the
// error is non-nil, so callers can see which stage and inputs failed.
func (e *Engine) Ask(ctx context.Context, query string, tools *quarry.ToolSet) (quarry.Result, error) {
	queryID := quarry.NewID()
	if e.tracer != nil {
		var span quarry.Span
		ctx, span = e.tracer.Start(ctx, "subq.ask",
			quarry.StringAttr("query_id", queryID),
			quarry.IntAttr("tools", tools.Len()))
		defer span.End()
	}

	// DECOMPOSE
	subqs, err := e.gen.Generate(ctx, query, tools.Descriptors())
	if err != nil {
		return quarry.Result{QueryID: queryID}, fmt.Errorf("decompose: %w", err)
	}
	for i := range subqs {
		subqs[i].QueryID = queryID
		if subqs[i].ID == "" {
			subqs[i].ID = quarry.NewID()
		}
		subqs[i].Status = quarry.StatusPending
	}

	// No dispatches happen when any binding is unknown — custom
	// generators are held to the same no-invented-tools contract.
	for _, sq := range subqs {
		if _, ok := tools.Get(sq.Tool); !ok {
			return quarry.Result{QueryID: queryID, SubQuestions: subqs}, fmt.Errorf("decompose: %w",
				&quarry.ErrMalformedDecomposition{Reason: fmt.Sprintf("unknown tool %q", sq.Tool)})
		}
	}
	e.logger.Info("query decomposed", "query_id", queryID, "sub_questions", len(subqs))

	// DISPATCH + COLLECT
	e.dispatch(ctx, subqs, tools)

	answered := 0
	for _, sq := range subqs {
		if sq.Status == quarry.StatusAnswered {
			answered++
		}
	}
	if answered < len(subqs) {
		e.logger.Warn("partial sub-question failure",
			"query_id", queryID, "answered", answered, "failed", len(subqs)-answered)
	}

	// SYNTHESIZE — always runs, even with zero evidence, so the
	// caller gets a best-effort natural-language answer.
	resp, err := e.provider.Complete(ctx, quarry.CompletionRequest{
		Prompt:    e.synthesisPrompt(query, subqs, answered),
		MaxTokens: e.synthMaxTokens,
	})
	if err != nil {
		return quarry.Result{QueryID: queryID, SubQuestions: subqs}, fmt.Errorf("synthesize: %w", err)
	}

	// DONE
	return quarry.Result{
		QueryID:      queryID,
		Answer:       strings.TrimSpace(resp.Text),
		SubQuestions: subqs,
	}, nil
}

// dispatch runs every sub-question against its bound tool on a bounded
// worker pool and blocks until all have reached answered or failed.
// Sub-questions are independent units with no shared mutable state;
// each goroutine writes only its own index.
func (e *Engine) dispatch(ctx context.Context, subqs []quarry.SubQuestion, tools *quarry.ToolSet) {
	workers := e.workers
	if workers <= 0 {
		workers = 1
	}
	numWorkers := min(workers, len(subqs))
	if numWorkers == 0 {
		return
	}

	work := make(chan int, len(subqs))
	done := make(chan struct{})

	for w := 0; w < numWorkers; w++ {
		go func() {
			for i := range work {
				sq := &subqs[i]
				if ctx.Err() != nil {
					sq.Status = quarry.StatusFailed
					sq.Err = ctx.Err().Error()
					continue
				}
				tool, _ := tools.Get(sq.Tool)
				answer, err := tool.Answer(ctx, sq.Question)
				if err != nil {
					sq.Status = quarry.StatusFailed
					sq.Err = err.Error()
					e.logger.Warn("sub-question failed",
						"query_id", sq.QueryID, "tool", sq.Tool, "err", err)
					continue
				}
				sq.Answer = strings.TrimSpace(answer)
				sq.Status = quarry.StatusAnswered
			}
			done <- struct{}{}
		}()
	}

	for i := range subqs {
		work <- i
	}
	close(work)
	for w := 0; w < numWorkers; w++ {
		<-done
	}
}

// synthesisPrompt renders the final prompt: the original query plus
// every (sub-question, answer) pair, failed ones flagged unavailable.
func (e *Engine) synthesisPrompt(query string, subqs []quarry.SubQuestion, answered int) string {
	var evidence strings.Builder
	for _, sq := range subqs {
		fmt.Fprintf(&evidence, "Q (%s): %s\n", sq.Tool, sq.Question)
		if sq.Status == quarry.StatusAnswered {
			fmt.Fprintf(&evidence, "A: %s\n\n", sq.Answer)
		} else {
			fmt.Fprintf(&evidence, "A: [unavailable: %s]\n\n", sq.Err)
		}
	}
	note := ""
	if answered == 0 {
		note = allFailedNote
	}
	return fmt.Sprintf(synthesisPrompt, query, evidence.String(), note)
}

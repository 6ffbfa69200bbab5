package observer

import (
	"context"
	"time"

	quarry "github.com/davrk/quarry"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedTool wraps a quarry.Tool with OTEL instrumentation.
type ObservedTool struct {
	inner quarry.Tool
	inst  *Instruments
}

var _ quarry.Tool = (*ObservedTool)(nil)

// WrapTool returns an instrumented tool that emits traces and metrics
// for every answer.
func WrapTool(inner quarry.Tool, inst *Instruments) *ObservedTool {
	return &ObservedTool{inner: inner, inst: inst}
}

func (o *ObservedTool) Name() string        { return o.inner.Name() }
func (o *ObservedTool) Description() string { return o.inner.Description() }

func (o *ObservedTool) Answer(ctx context.Context, query string) (string, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "tool.answer", trace.WithAttributes(
		AttrToolName.String(o.inner.Name()),
	))
	defer span.End()
	start := time.Now()

	answer, err := o.inner.Answer(ctx, query)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		AttrToolStatus.String(status),
		AttrToolAnswerLength.Int(len(answer)),
	)

	attrs := metric.WithAttributes(
		AttrToolName.String(o.inner.Name()),
		AttrToolStatus.String(status),
	)
	o.inst.ToolAnswers.Add(ctx, 1, attrs)
	o.inst.ToolDuration.Record(ctx, durationMs, attrs)

	return answer, err
}

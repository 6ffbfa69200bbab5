package observer

import (
	"context"
	"time"

	quarry "github.com/davrk/quarry"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedProvider wraps a quarry.Provider with OTEL instrumentation.
type ObservedProvider struct {
	inner quarry.Provider
	inst  *Instruments
	model string
}

var _ quarry.Provider = (*ObservedProvider)(nil)

// WrapProvider returns an instrumented provider that emits traces and
// metrics for every completion.
func WrapProvider(inner quarry.Provider, model string, inst *Instruments) *ObservedProvider {
	return &ObservedProvider{inner: inner, inst: inst, model: model}
}

func (o *ObservedProvider) Name() string { return o.inner.Name() }

func (o *ObservedProvider) Complete(ctx context.Context, req quarry.CompletionRequest) (quarry.CompletionResponse, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "model.complete", trace.WithAttributes(
		AttrModel.String(o.model),
		AttrProvider.String(o.inner.Name()),
	))
	defer span.End()
	start := time.Now()

	resp, err := o.inner.Complete(ctx, req)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		AttrTokensInput.Int(resp.Usage.InputTokens),
		AttrTokensOutput.Int(resp.Usage.OutputTokens),
	)

	attrs := metric.WithAttributes(
		AttrModel.String(o.model),
		AttrProvider.String(o.inner.Name()),
		AttrStatus.String(status),
	)
	o.inst.ModelRequests.Add(ctx, 1, attrs)
	o.inst.ModelDuration.Record(ctx, durationMs, attrs)
	o.inst.TokenUsage.Add(ctx, int64(resp.Usage.InputTokens+resp.Usage.OutputTokens), attrs)

	return resp, err
}

package sisis

import (
	"context"
	"sync"
	"testing"
	"opacbridge/internal/opac"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var (
	spans     *tracetest.SpanRecorder
	spansOnce sync.Once
)

// recordSpans installs a global tracer provider that keeps every span, the
// package tracer delegates to it from then on.
func recordSpans() *tracetest.SpanRecorder {
	spansOnce.Do(func() {
		spans = tracetest.NewSpanRecorder()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))
	})
	return spans
}

func lastSpan(t *testing.T, recorder *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	ended := recorder.Ended()
	for i := len(ended) - 1; i >= 0; i-- {
		if ended[i].Name() == name {
			return ended[i]
		}
	}
	t.Fatalf("no span named %s", name)
	return nil
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) string {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value.Emit()
		}
	}
	return ""
}

func TestOperationsAreTraced(t *testing.T) {
	recorder := recordSpans()
	api, _, tel := newFixture(t)
	ctx := context.Background()

	res, err := api.Search(ctx, []opac.SearchQuery{{Field: textField("331"), Value: "momo"}})
	if err != nil {
		t.Fatal(err)
	}
	search := lastSpan(t, recorder, "sisis.Search")
	require.Equal(t, codes.Unset, search.Status().Code)
	require.Equal(t, "Testhausen", spanAttr(search, "library.ident"))
	require.Equal(t, Name, spanAttr(search, "library.api"))

	counts := tel.Reports("count")
	require.NotEmpty(t, counts)
	require.Equal(t, "sisis: api.search", counts[len(counts)-1].Id)
	require.Equal(t, []any{int64(len(res.Results))}, counts[len(counts)-1].Params)

	_, err = api.Detail(ctx, opac.ByPosition(9))
	require.Error(t, err)
	detail := lastSpan(t, recorder, "sisis.Detail")
	require.Equal(t, codes.Error, detail.Status().Code)
	require.NotEmpty(t, detail.Events())

	step, err := api.Prolong(ctx, "§bereits verlängert", testAccount, opac.StepInput{})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, opac.StepError, step.Status)
	require.Equal(t, "ERROR", spanAttr(lastSpan(t, recorder, "sisis.Prolong"), "step.status"))
}

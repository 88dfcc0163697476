package matching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/spigell/ikimatch/internal/profiles"
)

func TestFindMatchesRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	store := profiles.NewMemoryStore(&profiles.Profile{ID: requester}, candidate(idA, "A"))
	scorer := &stubScorer{judgments: []Judgment{{ProfileID: idA, Score: 91, Explanation: "e"}}}
	p := NewPipeline(NewPool(store, nil, nil), store, scorer, Config{TracerProvider: provider}, nil)

	_, err := p.FindMatches(context.Background(), "q", requester)
	require.NoError(t, err)

	spans := recorder.Ended()
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"matching.LoadPool", "matching.Score", "matching.FindMatches"}, names)

	for _, s := range spans {
		if s.Name() != "matching.FindMatches" {
			continue
		}
		found := false
		for _, attr := range s.Attributes() {
			if attr.Key == "ikimatch.matches" && attr.Value.AsInt64() == 1 {
				found = true
			}
		}
		assert.True(t, found, "should record the match count")
	}
}

func TestFindMatchesMarksFailedSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	store := profiles.NewMemoryStore(&profiles.Profile{ID: requester})
	p := NewPipeline(NewPool(store, nil, nil), store, &stubScorer{}, Config{TracerProvider: provider}, nil)

	_, err := p.FindMatches(context.Background(), "", requester)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, string(KindValidation), spans[0].Status().Description)
}

package stage

import (
	"context"
	"testing"
)

func TestCollectSortsAndAggregates(t *testing.T) {
	results := Collect(context.Background(),
		CheckFunc(func(context.Context) Health { return Healthy("tts") }),
		nil,
		CheckFunc(func(context.Context) Health { return Unhealthy("llm", "api key missing") }),
	)
	if len(results) != 2 || results[0].Name != "llm" || results[1].Name != "tts" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if AllReady(results) {
		t.Fatal("expected aggregate not ready")
	}
	if !AllReady(results[1:]) {
		t.Fatal("expected ready subset")
	}
}

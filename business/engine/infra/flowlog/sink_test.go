package flowlog

import (
	"context"
	"fmt"
	"testing"

	"github.com/flowsniper/flowsniper/business/engine/domain"
	"github.com/flowsniper/flowsniper/internal/testutil"
)

func record(sink *Sink, n int) {
	for i := 0; i < n; i++ {
		step := domain.NewFlowStep(domain.FlowSkip, "WETH-USDT", domain.FlowSuccess)
		step.Detail = fmt.Sprintf("step-%d", i)
		sink.Record(context.Background(), step)
	}
}

func TestSinkRecentNewestFirst(t *testing.T) {
	sink := NewSink(8, testutil.NopLogger())
	record(sink, 3)

	recent := sink.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("recent = %d, want 2", len(recent))
	}
	if recent[0].Detail != "step-2" || recent[1].Detail != "step-1" {
		t.Fatalf("order = %s, %s", recent[0].Detail, recent[1].Detail)
	}
}

func TestSinkWrapsAtCapacity(t *testing.T) {
	sink := NewSink(4, testutil.NopLogger())
	record(sink, 6)

	recent := sink.Recent(10)
	if len(recent) != 4 {
		t.Fatalf("recent = %d, want capacity 4", len(recent))
	}
	if recent[0].Detail != "step-5" {
		t.Fatalf("newest = %s, want step-5", recent[0].Detail)
	}
	if recent[3].Detail != "step-2" {
		t.Fatalf("oldest retained = %s, want step-2", recent[3].Detail)
	}
}

func TestSinkRecentOnEmpty(t *testing.T) {
	sink := NewSink(4, testutil.NopLogger())
	if got := sink.Recent(5); len(got) != 0 {
		t.Fatalf("recent on empty = %d", len(got))
	}
}

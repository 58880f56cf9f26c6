package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/tryfix/kjoin/data"
	"github.com/tryfix/kjoin/join"
	"github.com/tryfix/kjoin/join/batch"
	"github.com/tryfix/kjoin/join/stream"
)

func TestGraph_Build(t *testing.T) {
	g, err := NewGraph()
	if err != nil {
		t.Fatal(err)
	}

	joiner := &batch.Joiner{
		Type:     join.RightOuterJoin,
		LeftKey:  data.FieldProjection(0),
		RightKey: data.FieldProjection(0),
	}
	if err := g.MergeJoin(`orders-customers`, `orders`, `customers`, joiner); err != nil {
		t.Fatal(err)
	}

	conf := stream.NewConfig()
	conf.Name = `clicks.views`
	conf.LeftKey = data.FieldProjection(0)
	conf.RightKey = data.FieldProjection(0)
	conf.LowerBound, conf.UpperBound = -5, 10
	conf.Collector = func(ctx context.Context, l, r data.Row) error { return nil }
	j, err := stream.NewRowTimeBoundedStreamJoin(conf, stream.NewHeapTimerService(nil))
	if err != nil {
		t.Fatal(err)
	}

	// orders is shared with the merge join
	if err := g.IntervalJoin(`orders`, `clicks`, j); err != nil {
		t.Fatal(err)
	}

	out := g.Build()
	for _, want := range []string{
		`digraph root`,
		`orders_customers_buffer`,
		`orders_customers_collector`,
		`clicks_views`,
		`->`,
		`max_output_delay:10`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf(`expected %q in graph:\n%s`, want, out)
		}
	}
}

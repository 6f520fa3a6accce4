package layout

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/graph"
)

func chain(t *testing.T, n int) *graph.SimpleGraph {
	t.Helper()
	g := graph.NewSimpleGraph()
	for i := 0; i < n; i++ {
		g.AddVertex(nil)
	}
	for i := 0; i+1 < n; i++ {
		require.NoError(t, g.AddEdge(i, i+1))
	}
	return g
}

func TestChainRelaxes(t *testing.T) {
	e, err := New(chain(t, 4), DefaultParams(), nil)
	require.NoError(t, err)
	assert.Equal(t, 100, e.Iterations())

	prev := e.Energy()
	for i := 0; i < 200; i++ {
		e.Iterate()
		energy := e.Energy()
		assert.LessOrEqual(t, energy, prev, "energy rose at step %d", i)
		prev = energy
	}

	e.Relax(20000)
	assert.True(t, e.Converged(), "max force %g", e.MaxForce())
	assert.Len(t, e.Positions(), 4)
	assert.Greater(t, e.Timestep(), 0.0)
}

func TestSingleVertex(t *testing.T) {
	e, err := New(chain(t, 1), DefaultParams(), nil)
	require.NoError(t, err)
	e.Iterate()

	assert.Zero(t, e.Energy())
	assert.Equal(t, []r2.Vec{{}}, e.Forces())
	assert.Equal(t, []r2.Vec{{X: 0, Y: 0}}, e.Positions())
	assert.True(t, e.Converged())
}

func TestEmptyGraph(t *testing.T) {
	e, err := New(graph.NewSimpleGraph(), DefaultParams(), nil)
	require.NoError(t, err)
	assert.Zero(t, e.MaxForce())
	assert.Empty(t, e.Positions())
}

func TestForcesAreBalanced(t *testing.T) {
	g := chain(t, 5)
	require.NoError(t, g.AddEdge(4, 0))
	e, err := New(g, DefaultParams(), nil)
	require.NoError(t, err)

	var total r2.Vec
	for _, f := range e.Forces() {
		total = r2.Add(total, f)
	}
	assert.InDelta(t, 0, total.X, 1e-9)
	assert.InDelta(t, 0, total.Y, 1e-9)
}

func TestIterationMetric(t *testing.T) {
	metrics := common.NewMetrics(prometheus.NewRegistry())
	params := DefaultParams()
	params.InitIterations = 3
	e, err := New(chain(t, 2), params, metrics)
	require.NoError(t, err)
	e.Iterate()
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.LayoutIterations))
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
	}{
		{"zero mass", func(p *Params) { p.Mass = 0 }},
		{"negative distance", func(p *Params) { p.EquilibriumDistance = -1 }},
		{"decrease of one", func(p *Params) { p.TimestepDecrease = 1 }},
		{"shrinking increase", func(p *Params) { p.TimestepIncrease = 0.9 }},
		{"alpha above one", func(p *Params) { p.InitialAlpha = 1.5 }},
		{"negative retries", func(p *Params) { p.MaxUphillRetries = -1 }},
	}
	require.NoError(t, DefaultParams().Validate())
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.modify(&p)
			assert.True(t, common.IsValidation(p.Validate()))

			_, err := New(graph.NewSimpleGraph(), p, nil)
			assert.True(t, common.IsValidation(err))
		})
	}
}

func TestTicker(t *testing.T) {
	e, err := New(chain(t, 3), DefaultParams(), nil)
	require.NoError(t, err)
	start := e.Iterations()

	var steps atomic.Int32
	ticker := NewTicker(e, time.Millisecond, func(*Engine) { steps.Add(1) })
	ticker.Start(context.Background())

	require.Eventually(t, func() bool { return steps.Load() >= 3 }, 2*time.Second, time.Millisecond)
	ticker.Stop()
	ticker.Stop()

	select {
	case <-ticker.Done():
	default:
		t.Fatal("ticker goroutine still running")
	}
	stopped := e.Iterations()
	assert.GreaterOrEqual(t, stopped-start, 3)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, stopped, e.Iterations())
}

func TestTickerContextAndUnstarted(t *testing.T) {
	e, err := New(chain(t, 2), DefaultParams(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ticker := NewTicker(e, 0, nil)
	assert.Equal(t, DefaultTickInterval, ticker.interval)
	ticker.Start(ctx)
	cancel()
	select {
	case <-ticker.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("ticker ignored context cancellation")
	}
	ticker.Stop()

	idle := NewTicker(e, time.Millisecond, nil)
	idle.Stop()
	idle.Start(context.Background())
	<-idle.Done()
}

func TestIndex(t *testing.T) {
	ix := NewIndex([]r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 2}, {X: 5, Y: 5}})

	tests := []struct {
		name   string
		at     r2.Vec
		radius float64
		want   int
		ok     bool
	}{
		{"on vertex", r2.Vec{X: 1, Y: 0}, 0.1, 1, true},
		{"near vertex", r2.Vec{X: 0.1, Y: 1.9}, 0.2, 2, true},
		{"outside radius", r2.Vec{X: 3, Y: 3}, 1, -1, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ix.VertexAt(tt.at, tt.radius)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, []int{0, 1}, ix.Within(r2.Vec{X: 0.2, Y: 0}, 1))
	assert.Empty(t, ix.Within(r2.Vec{X: 3, Y: 3}, 0.5))

	empty := NewIndex(nil)
	_, ok := empty.VertexAt(r2.Vec{}, 10)
	assert.False(t, ok)
	assert.Nil(t, empty.Within(r2.Vec{}, 10))
}

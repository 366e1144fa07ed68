package schedule

import (
	"sort"
	"testing"

	"github.com/jlkiri/ikki/pkg/ikkierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sortedOrder(o Order) [][]string {
	out := make([][]string, len(o))
	for i, layer := range o {
		cp := append([]string(nil), layer...)
		sort.Strings(cp)
		out[i] = cp
	}
	return out
}

func TestLinearChain(t *testing.T) {
	g := NewGraph()
	g.Before("a", "b")
	g.Before("b", "c")

	order, err := g.Toposort()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, sortedOrder(order))
}

func TestParallelFanIn(t *testing.T) {
	g := NewGraph()
	g.Before("a", "b")
	g.Before("c", "b")
	g.Before("d", "b")

	order, err := g.Toposort()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "c", "d"}, {"b"}}, sortedOrder(order))
}

func TestParallelFanOut(t *testing.T) {
	g := NewGraph()
	g.Before("a", "b")
	g.Before("a", "c")

	order, err := g.Toposort()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}}, sortedOrder(order))
}

func TestCycle(t *testing.T) {
	g := NewGraph()
	g.Before("a", "b")
	g.Before("b", "a")

	_, err := g.Toposort()
	require.Error(t, err)
	assert.True(t, ikkierr.Is(err, ikkierr.CodeCycleDetected))
}

func TestSelfLoopIsACycle(t *testing.T) {
	g := NewGraph()
	g.Before("a", "a")

	_, err := g.Toposort()
	require.Error(t, err)
	assert.True(t, ikkierr.Is(err, ikkierr.CodeCycleDetected))
}

func TestNoDependencies(t *testing.T) {
	order := SingleLayer([]string{"frontend", "backend", "cli"})
	assert.Equal(t, Order{{"frontend", "backend", "cli"}}, order)
}

func TestEmptyGraphProducesEmptySchedule(t *testing.T) {
	order, err := NewGraph().Toposort()
	require.NoError(t, err)
	assert.Empty(t, order)
}

func TestScheduleIdempotence(t *testing.T) {
	g := NewGraph()
	g.Before("a", "b")
	g.Before("c", "b")
	g.Before("b", "d")

	first, err := g.Toposort()
	require.NoError(t, err)
	second, err := g.Toposort()
	require.NoError(t, err)

	assert.Equal(t, sortedOrder(first), sortedOrder(second))
}

func TestChildOnlyNodeEntersFrontierWhenLastParentRetires(t *testing.T) {
	g := NewGraph()
	g.Before("a", "c")
	g.Before("b", "c")

	order, err := g.Toposort()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, sortedOrder(order))
}

func TestIncremental(t *testing.T) {
	full := Order{{"a", "c", "d"}, {"b"}}

	incremental, err := Incremental(full, "a")
	require.NoError(t, err)
	assert.Equal(t, Order{{"a"}, {"b"}}, incremental)
}

func TestIncrementalUnknownImage(t *testing.T) {
	full := Order{{"a"}, {"b"}}

	_, err := Incremental(full, "ghost")
	require.Error(t, err)
	assert.True(t, ikkierr.Is(err, ikkierr.CodeNoSuchImage))
}

func TestIncrementalAtLastLayer(t *testing.T) {
	full := Order{{"a"}, {"b", "c"}}

	incremental, err := Incremental(full, "c")
	require.NoError(t, err)
	assert.Equal(t, Order{{"c"}}, incremental)
}

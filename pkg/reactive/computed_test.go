package reactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputed_LazyEvaluation(t *testing.T) {
	rt, _ := newTestRuntime(t)
	obj := reactiveObject(t, rt, map[string]any{"a": 1})

	evals := 0
	double := rt.Computed(func() any {
		evals++
		return obj.Get("a").(int) * 2
	})
	assert.Equal(t, 0, evals, "an unread computed must not evaluate")

	obj.Set("a", 3)
	assert.Equal(t, 0, evals)

	assert.Equal(t, 6, double.Get())
	assert.Equal(t, 1, evals)

	assert.Equal(t, 6, double.Get())
	assert.Equal(t, 1, evals, "a clean computed returns its cached value")

	obj.Set("a", 4)
	assert.True(t, double.Watcher().Dirty())
	assert.Equal(t, 1, evals)

	assert.Equal(t, 8, double.Get())
	assert.Equal(t, 2, evals)
}

func TestComputed_ForwardsDependencies(t *testing.T) {
	rt, _ := newTestRuntime(t)
	obj := reactiveObject(t, rt, map[string]any{"first": "Ada", "last": "Lovelace"})

	full := rt.Computed(func() any {
		return As[string](obj.Get("first")) + " " + As[string](obj.Get("last"))
	})

	var got []any
	w := mustWatcher(t, rt, func(any) any { return full.Get() }, func(n, _ any) {
		got = append(got, n)
	})
	assert.Equal(t, "Ada Lovelace", w.Value())
	assert.Equal(t, 2, w.DepCount(), "the reader subscribes to the computed's trackers")

	obj.Set("last", "Byron")
	rt.Settle()
	assert.Equal(t, []any{"Ada Byron"}, got)
}

func TestComputed_ErrorPropagatesToReader(t *testing.T) {
	rt, _ := newTestRuntime(t)

	broken := rt.Computed(func() any { panic("nope") })

	_, err := broken.Value()
	require.Error(t, err)

	_, err = rt.NewWatcher(nil, func(any) any { return broken.Get() }, nil)
	var ee *EvalError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "nope", ee.Recovered)
}

func TestComputed_Teardown(t *testing.T) {
	rt, _ := newTestRuntime(t)
	obj := reactiveObject(t, rt, map[string]any{"a": 1})

	c := rt.Computed(func() any { return obj.Get("a") })
	assert.Equal(t, 1, c.Get())

	c.Teardown()
	obj.Set("a", 2)
	assert.False(t, c.Watcher().Dirty())
	assert.Equal(t, 1, c.Get())
}

func TestAs(t *testing.T) {
	assert.Equal(t, 3, As[int](3))
	assert.Equal(t, 0, As[int]("3"))
	assert.Equal(t, "", As[string](nil))
}

package reactive

import (
	"cmp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArray(t *testing.T, rt *Runtime, items ...any) *Array {
	t.Helper()

	if items == nil {
		items = []any{}
	}
	arr, ok := rt.Reactive(items).(*Array)
	require.True(t, ok, "Reactive([]any) should return *Array")
	return arr
}

// watchLen counts synchronous runs of a watcher reading arr's length.
func watchLen(t *testing.T, rt *Runtime, arr *Array) *int {
	t.Helper()

	runs := 0
	mustWatcher(t, rt, func(any) any { return arr.Values() }, counter(&runs), Sync())
	return &runs
}

func TestArray_MutationsNotifyOnce(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Array)
		want   []any
	}{
		{"push", func(a *Array) { a.Push(4, 5) }, []any{1, 2, 3, 4, 5}},
		{"pop", func(a *Array) { a.Pop() }, []any{1, 2}},
		{"shift", func(a *Array) { a.Shift() }, []any{2, 3}},
		{"unshift", func(a *Array) { a.Unshift(0) }, []any{0, 1, 2, 3}},
		{"splice", func(a *Array) { a.Splice(1, 1, "a", "b") }, []any{1, "a", "b", 3}},
		{"insert", func(a *Array) { a.Insert(1, "x") }, []any{1, "x", 2, 3}},
		{"removeAt", func(a *Array) { a.RemoveAt(0) }, []any{2, 3}},
		{"set", func(a *Array) { a.Set(1, 9) }, []any{1, 9, 3}},
		{"clear", func(a *Array) { a.Clear() }, []any{}},
		{"reverse", func(a *Array) { a.Reverse() }, []any{3, 2, 1}},
		{"sort", func(a *Array) {
			a.Sort(func(x, y any) int { return cmp.Compare(y.(int), x.(int)) })
		}, []any{3, 2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, _ := newTestRuntime(t)
			arr := newTestArray(t, rt, 1, 2, 3)
			runs := watchLen(t, rt, arr)

			tt.mutate(arr)

			if *runs != 1 {
				t.Errorf("%s triggered %d runs, want 1", tt.name, *runs)
			}
			assert.Equal(t, tt.want, arr.Raw())
		})
	}
}

func TestArray_SpliceSemantics(t *testing.T) {
	rt, _ := newTestRuntime(t)
	arr := newTestArray(t, rt, 1, 2, 3, 4, 5)

	removed := arr.Splice(-2, 10)
	assert.Equal(t, []any{4, 5}, removed)
	assert.Equal(t, []any{1, 2, 3}, arr.Raw())

	removed = arr.Splice(10, 1, "end")
	assert.Empty(t, removed)
	assert.Equal(t, []any{1, 2, 3, "end"}, arr.Raw())

	removed = arr.Splice(0, -1, "start")
	assert.Empty(t, removed)
	assert.Equal(t, []any{"start", 1, 2, 3, "end"}, arr.Raw())
}

func TestArray_SetPastEndGrows(t *testing.T) {
	rt, _ := newTestRuntime(t)
	arr := newTestArray(t, rt, "a")

	arr.Set(3, "d")
	assert.Equal(t, []any{"a", nil, nil, "d"}, arr.Raw())
}

func TestArray_OutOfRangeReads(t *testing.T) {
	rt, _ := newTestRuntime(t)
	arr := newTestArray(t, rt, 1)

	assert.Nil(t, arr.At(-1))
	assert.Nil(t, arr.At(1))
	assert.Nil(t, arr.Peek(5))
	assert.Nil(t, arr.RemoveAt(3))

	empty := newTestArray(t, rt)
	assert.Nil(t, empty.Pop())
	assert.Nil(t, empty.Shift())
}

func TestArray_InsertedAggregatesAreWrapped(t *testing.T) {
	rt, _ := newTestRuntime(t)
	arr := newTestArray(t, rt)

	arr.Push(map[string]any{"x": 1}, []any{1})
	assert.IsType(t, &Object{}, arr.Peek(0))
	assert.IsType(t, &Array{}, arr.Peek(1))
}

func TestArray_NestedElementsAreTrackedThroughParent(t *testing.T) {
	rt, _ := newTestRuntime(t)
	obj := reactiveObject(t, rt, map[string]any{
		"rows": []any{map[string]any{"id": 1}},
	})
	row := obj.Peek("rows").(*Array).Peek(0).(*Object)

	runs := 0
	mustWatcher(t, rt, func(any) any { return obj.Get("rows") }, counter(&runs))

	// Shape changes of a nested element reach watchers of the parent key.
	row.Define("name", "ada")
	rt.Settle()
	assert.Equal(t, 1, runs)
}

func TestArray_JSON(t *testing.T) {
	rt, _ := newTestRuntime(t)
	arr := newTestArray(t, rt, 1, map[string]any{"a": "b"})

	data, err := arr.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[1,{"a":"b"}]`, string(data))
}

package kval

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kbind/internal/heap"
	"github.com/roach88/kbind/internal/k"
)

// newTestRuntime returns a heap runtime that fails the test if any object is
// still live when the test ends.
func newTestRuntime(t *testing.T) *heap.Runtime {
	t.Helper()
	rt := heap.New(heap.Config{ChunkSize: 64 << 10})
	t.Cleanup(func() {
		assert.Zero(t, rt.Stats().Objects, "leaked objects")
		require.NoError(t, rt.Close())
	})
	return rt
}

// defineEnum registers a domain for the duration of the test.
func defineEnum(t *testing.T, rt *heap.Runtime, name string, symbols ...string) {
	t.Helper()
	require.NoError(t, rt.DefineEnum(name, symbols))
	t.Cleanup(func() { rt.DropEnum(name) })
}

func mustDict(t *testing.T, keys, values Value) Dict {
	t.Helper()
	d, err := NewDict(keys, values)
	require.NoError(t, err)
	return d
}

func mustTable(t *testing.T, names []string, cols ...Value) Table {
	t.Helper()
	tbl, err := NewTable(mustDict(t, Symbol{List(names...)}, CompoundList(cols)))
	require.NoError(t, err)
	return tbl
}

func TestRoundTripScalars(t *testing.T) {
	rt := newTestRuntime(t)
	defineEnum(t, rt, "sym", "a", "b", "c")

	id := uuid.MustParse("8c680a01-5a49-5aab-5a65-d4bfddb6a661")
	tests := []struct {
		name string
		v    Value
	}{
		{"bool atom", Bool{Atom(true)}},
		{"bool list", Bool{List(true, false, true)}},
		{"guid atom", GUID{Atom(id)}},
		{"guid list", GUID{List(id, uuid.Nil)}},
		{"byte atom", Byte{Atom[uint8](0xff)}},
		{"byte list", Byte{List[uint8](0, 1, 0xff)}},
		{"short atom", Short{Atom[int16](math.MinInt16)}},
		{"short list", Short{List[int16](0, -1, math.MaxInt16)}},
		{"int atom", Int{Atom[int32](-5)}},
		{"int list", Int{List[int32](0, math.MinInt32, math.MaxInt32)}},
		{"long atom", Long{Atom[int64](math.MaxInt64)}},
		{"long list", Long{List[int64](0, -1, math.MinInt64)}},
		{"empty long list", Long{List[int64]()}},
		{"real atom", Real{Atom[float32](-1.5)}},
		{"real list", Real{List[float32](0, float32(math.NaN()), math.MaxFloat32)}},
		{"float atom", Float{Atom(math.NaN())}},
		{"float list", Float{List(0, -0.25, math.Inf(1))}},
		{"symbol atom", Symbol{Atom("abc")}},
		{"empty symbol", Symbol{Atom("")}},
		{"symbol list", Symbol{List("a", "", "bc")}},
		{"timestamp", Timestamp{List[int64](0, -1, math.MaxInt64)}},
		{"month", Month{Atom[int32](-13)}},
		{"date", Date{List[int32](0, 366, math.MinInt32)}},
		{"datetime", Datetime{Atom(0.5)}},
		{"timespan", Timespan{Atom[int64](-1)}},
		{"minute", Minute{List[int32](0, 1439)}},
		{"second", Second{Atom[int32](86399)}},
		{"time", Time{List[int32](0, 86399999)}},
		{"enum atom", Enum{Data: Atom[int64](2), Source: "sym"}},
		{"enum list", Enum{Data: List[int64](0, 1, 1), Source: "sym"}},
		{"char", Char('x')},
		{"string", String("hello")},
		{"empty string", String("")},
		{"error", ErrorValue("type")},
		{"null", Null{}},
		{"compound", CompoundList{Long{Atom[int64](1)}, Symbol{List("a")}, String("s")}},
		{"empty compound", CompoundList{}},
		{"dict", mustDict(t, Symbol{List("a", "b")}, Long{List[int64](1, 2)})},
		{"sorted dict", mustDict(t, Symbol{List("a", "b")}, Long{List[int64](1, 2)}).AsSorted()},
		{"table", mustTable(t, []string{"a", "b"}, Long{List[int64](1, 2)}, Symbol{List("x", "y")})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ToK(rt, tt.v)
			require.NoError(t, err)
			defer rt.Unref(raw)

			assert.Equal(t, tt.v.Type(), raw.T)
			got := FromK(raw, "sym")
			assert.True(t, Equal(tt.v, got), "want %s, got %s", tt.v, got)
			assert.Equal(t, tt.v.Len(), got.Len())
		})
	}
}

func TestFromKNil(t *testing.T) {
	assert.Equal(t, Null{}, FromK(nil, ""))
}

func TestFromKUnknownTag(t *testing.T) {
	rt := newTestRuntime(t)

	raw, err := rt.NewNull()
	require.NoError(t, err)
	defer rt.Unref(raw)
	raw.T = k.Type(50)

	assert.Equal(t, Null{}, FromK(raw, ""))
}

func TestFromKBorrowsLists(t *testing.T) {
	rt := newTestRuntime(t)

	raw, err := ToK(rt, Long{List[int64](1, 2, 3)})
	require.NoError(t, err)
	defer rt.Unref(raw)

	l := FromK(raw, "").(Long)
	assert.True(t, l.Borrowed())

	// writes through Mut never reach the runtime object
	l.Mut()[0] = 99
	assert.False(t, l.Borrowed())
	assert.Equal(t, []int64{99, 2, 3}, l.Values())
	assert.Equal(t, []int64{1, 2, 3}, k.Slice[int64](raw))
}

func TestCloneDetachesFromRuntime(t *testing.T) {
	rt := newTestRuntime(t)

	raw, err := ToK(rt, CompoundList{String("abc"), Int{List[int32](4, 5)}})
	require.NoError(t, err)
	got := Clone(FromK(raw, ""))
	rt.Unref(raw)

	want := CompoundList{String("abc"), Int{List[int32](4, 5)}}
	assert.True(t, Equal(want, got))
	assert.False(t, got.(CompoundList)[1].(Int).Borrowed())
}

func TestFromKEnumSource(t *testing.T) {
	rt := newTestRuntime(t)

	raw, err := ToK(rt, CompoundList{Enum{Data: List[int64](0, 1)}, Long{Atom[int64](1)}})
	require.NoError(t, err)
	defer rt.Unref(raw)

	got := FromK(raw, "e1").(CompoundList)
	assert.Equal(t, "e1", got[0].(Enum).Source)

	got = FromK(raw, "").(CompoundList)
	assert.Equal(t, "", got[0].(Enum).Source)
}

func TestFromKSingleColumnTable(t *testing.T) {
	rt := newTestRuntime(t)

	keys, err := ToK(rt, Symbol{List("a")})
	require.NoError(t, err)
	col, err := ToK(rt, Long{List[int64](7, 8, 9)})
	require.NoError(t, err)

	// a one-column table whose dictionary holds the bare column
	dict, err := rt.NewList(k.TypeCompoundList, 2)
	require.NoError(t, err)
	dict.T = k.TypeDict
	kids := k.Children(dict)
	kids[0], kids[1] = keys, col
	raw, err := rt.Flip(dict)
	require.NoError(t, err)
	defer rt.Unref(raw)

	tbl, ok := FromK(raw, "").(Table)
	require.True(t, ok)
	assert.Equal(t, 1, tbl.NumColumns())
	assert.Equal(t, int64(3), tbl.Len())
	assert.Equal(t, []string{"a"}, tbl.ColumnNames())

	row, err := tbl.GetRow(2, nil)
	require.NoError(t, err)
	assert.True(t, Equal(CompoundList{Long{Atom[int64](9)}}, row.Values()))
}

func TestForeignRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)

	raw, err := rt.NewNull()
	require.NoError(t, err)
	raw.T = k.TypeForeign

	f, ok := FromK(raw, "").(Foreign)
	require.True(t, ok)
	assert.Same(t, raw, f.Raw())

	out, err := ToK(rt, f)
	require.NoError(t, err)
	assert.Same(t, raw, out)
	assert.Equal(t, int32(1), raw.R)

	rt.Unref(out)
	rt.Unref(raw)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Long{Atom[int64](1)}, Long{Atom[int64](1)}))
	assert.False(t, Equal(Long{Atom[int64](1)}, Long{List[int64](1)}))
	assert.False(t, Equal(Long{Atom[int64](1)}, Timestamp{Atom[int64](1)}))
	assert.False(t, Equal(Enum{Data: Atom[int64](1), Source: "a"}, Enum{Data: Atom[int64](1), Source: "b"}))
	assert.True(t, Equal(Float{Atom(math.NaN())}, Float{Atom(math.NaN())}))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, Null{}))
}

func TestLen(t *testing.T) {
	assert.Equal(t, int64(1), Long{Atom[int64](4)}.Len())
	assert.Equal(t, int64(3), Long{List[int64](1, 2, 3)}.Len())
	assert.Equal(t, int64(5), String("hello").Len())
	assert.Equal(t, int64(2), mustDict(t, Symbol{List("a", "b")}, Long{List[int64](1, 2)}).Len())
	assert.Equal(t, int64(1), Null{}.Len())
}

func TestDataAt(t *testing.T) {
	a := Atom[int32](7)
	v, ok := a.At(0)
	assert.True(t, ok)
	assert.Equal(t, int32(7), v)
	_, ok = a.At(1)
	assert.False(t, ok)

	l := List[int32](1, 2)
	_, ok = l.At(-1)
	assert.False(t, ok)
	v, ok = l.At(1)
	assert.True(t, ok)
	assert.Equal(t, int32(2), v)
	assert.Nil(t, a.Mut())
}

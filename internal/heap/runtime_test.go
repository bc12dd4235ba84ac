package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/kbind/internal/k"
)

// newTestRuntime returns a Runtime that fails the test if anything is still
// live when the test ends.
func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt := New(Config{ChunkSize: 64 << 10})
	t.Cleanup(func() {
		assert.Zero(t, rt.Stats().Objects, "leaked objects")
		require.NoError(t, rt.Close())
	})
	return rt
}

func TestClassFor(t *testing.T) {
	tests := []struct {
		size  int
		class int
	}{
		{1, 0},
		{24, 0},
		{32, 0},
		{33, 1},
		{64, 1},
		{65, 2},
		{4096, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.class, classFor(tt.size), "size %d", tt.size)
		assert.GreaterOrEqual(t, blockSize(classFor(tt.size)), tt.size)
	}
}

func TestAtomAllocAndFree(t *testing.T) {
	rt := newTestRuntime(t)

	raw, err := rt.NewAtom(k.TypeLongAtom)
	require.NoError(t, err)
	assert.Equal(t, k.TypeLongAtom, raw.T)
	assert.Equal(t, int32(0), raw.R)
	assert.Equal(t, int64(0), *k.Cast[int64](raw))

	*k.Cast[int64](raw) = 7
	assert.Equal(t, int64(1), rt.Stats().Objects)

	rt.Unref(raw)
	assert.Equal(t, int64(0), rt.Stats().Objects)
}

func TestFreedBlocksAreReusedZeroed(t *testing.T) {
	rt := newTestRuntime(t)

	a, err := rt.NewAtom(k.TypeLongAtom)
	require.NoError(t, err)
	*k.Cast[int64](a) = 99
	rt.Unref(a)

	b, err := rt.NewAtom(k.TypeLongAtom)
	require.NoError(t, err)
	defer rt.Unref(b)
	assert.Same(t, a, b)
	assert.Equal(t, int64(0), *k.Cast[int64](b))
}

func TestNewAtomRejectsNonAtoms(t *testing.T) {
	rt := newTestRuntime(t)

	_, err := rt.NewAtom(k.TypeLongList)
	assert.ErrorIs(t, err, ErrBadType)

	_, err = rt.NewList(k.TypeLongAtom, 1)
	assert.ErrorIs(t, err, ErrBadType)

	_, err = rt.NewList(k.TypeLongList, -1)
	assert.ErrorIs(t, err, ErrLength)
}

func TestRefCounting(t *testing.T) {
	rt := newTestRuntime(t)

	raw, err := rt.NewList(k.TypeIntList, 3)
	require.NoError(t, err)
	rt.Ref(raw)
	assert.Equal(t, int32(1), raw.R)

	rt.Unref(raw)
	assert.Equal(t, int64(1), rt.Stats().Objects)
	assert.Equal(t, int32(0), raw.R)

	rt.Unref(raw)
	assert.Equal(t, int64(0), rt.Stats().Objects)
}

func TestUnrefReleasesChildren(t *testing.T) {
	rt := newTestRuntime(t)

	list, err := rt.NewList(k.TypeCompoundList, 2)
	require.NoError(t, err)
	a, err := rt.NewAtom(k.TypeIntAtom)
	require.NoError(t, err)
	s, err := rt.NewString("hi")
	require.NoError(t, err)
	k.Children(list)[0], k.Children(list)[1] = a, s

	assert.Equal(t, int64(3), rt.Stats().Objects)
	rt.Unref(list)
	assert.Equal(t, int64(0), rt.Stats().Objects)
}

func TestLargeList(t *testing.T) {
	rt := newTestRuntime(t)

	raw, err := rt.NewList(k.TypeLongList, 100_000)
	require.NoError(t, err)
	assert.Equal(t, classLarge, raw.M)

	xs := k.Slice[int64](raw)
	require.Len(t, xs, 100_000)
	xs[99_999] = 5
	assert.Equal(t, int64(5), k.Slice[int64](raw)[99_999])

	rt.Unref(raw)
}

func TestGUIDAtomLayout(t *testing.T) {
	rt := newTestRuntime(t)

	g := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	raw, err := rt.NewGUID(g)
	require.NoError(t, err)
	defer rt.Unref(raw)

	assert.Equal(t, k.TypeGUIDAtom, raw.T)
	assert.Equal(t, int64(1), raw.N())
	assert.Equal(t, g, *k.CastWide[[16]byte](raw))
}

func TestInternIsStable(t *testing.T) {
	rt := newTestRuntime(t)

	p1, err := rt.Intern("price")
	require.NoError(t, err)
	p2, err := rt.Intern("price")
	require.NoError(t, err)
	p3, err := rt.Intern("size")
	require.NoError(t, err)

	assert.Same(t, p1, p2)
	assert.NotSame(t, p1, p3)
	assert.Equal(t, "price", k.GoString(p1))
	assert.Equal(t, 2, rt.Stats().Symbols)
}

func TestSymbolAtom(t *testing.T) {
	rt := newTestRuntime(t)

	raw, err := rt.NewSymbol("abc")
	require.NoError(t, err)
	defer rt.Unref(raw)
	assert.Equal(t, "abc", k.GoString(*k.Cast[*byte](raw)))
}

func TestNewErrorAndNull(t *testing.T) {
	rt := newTestRuntime(t)

	e := rt.NewError("type")
	require.NotNil(t, e)
	assert.Equal(t, k.TypeError, e.T)
	assert.Equal(t, "type", k.GoString(*k.Cast[*byte](e)))
	rt.Unref(e)

	n, err := rt.NewNull()
	require.NoError(t, err)
	assert.Equal(t, k.TypeNull, n.T)
	rt.Unref(n)
}

func symbols(t *testing.T, rt *Runtime, names ...string) *k.K {
	t.Helper()
	raw, err := rt.NewList(k.TypeSymbolList, int64(len(names)))
	require.NoError(t, err)
	for i, n := range names {
		p, err := rt.Intern(n)
		require.NoError(t, err)
		k.Slice[*byte](raw)[i] = p
	}
	return raw
}

func ints(t *testing.T, rt *Runtime, xs ...int32) *k.K {
	t.Helper()
	raw, err := rt.NewList(k.TypeIntList, int64(len(xs)))
	require.NoError(t, err)
	copy(k.Slice[int32](raw), xs)
	return raw
}

func TestNewDict(t *testing.T) {
	rt := newTestRuntime(t)

	d, err := rt.NewDict(symbols(t, rt, "a", "b"), ints(t, rt, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, k.TypeDict, d.T)
	kids := k.Children(d)
	require.Len(t, kids, 2)
	assert.Equal(t, k.TypeSymbolList, kids[0].T)
	assert.Equal(t, k.TypeIntList, kids[1].T)

	rt.Unref(d)
}

func TestNewDictConsumesOnFailure(t *testing.T) {
	rt := newTestRuntime(t)

	_, err := rt.NewDict(symbols(t, rt, "a", "b"), ints(t, rt, 1))
	assert.ErrorIs(t, err, ErrLength)

	atom, err := rt.NewAtom(k.TypeIntAtom)
	require.NoError(t, err)
	_, err = rt.NewDict(atom, ints(t, rt, 1))
	assert.ErrorIs(t, err, ErrBadType)

	assert.Zero(t, rt.Stats().Objects)
}

func TestFlip(t *testing.T) {
	rt := newTestRuntime(t)

	cols, err := rt.NewList(k.TypeCompoundList, 2)
	require.NoError(t, err)
	k.Children(cols)[0] = ints(t, rt, 1, 2, 3)
	k.Children(cols)[1] = symbols(t, rt, "x", "y", "z")

	d, err := rt.NewDict(symbols(t, rt, "a", "b"), cols)
	require.NoError(t, err)
	tbl, err := rt.Flip(d)
	require.NoError(t, err)
	assert.Equal(t, k.TypeTable, tbl.T)
	assert.Same(t, d, k.Target(tbl))
	assert.Equal(t, int64(3), count(tbl))

	rt.Unref(tbl)
}

func TestFlipRejectsRaggedColumns(t *testing.T) {
	rt := newTestRuntime(t)

	cols, err := rt.NewList(k.TypeCompoundList, 2)
	require.NoError(t, err)
	k.Children(cols)[0] = ints(t, rt, 1, 2, 3)
	k.Children(cols)[1] = ints(t, rt, 1)

	d, err := rt.NewDict(symbols(t, rt, "a", "b"), cols)
	require.NoError(t, err)
	_, err = rt.Flip(d)
	assert.ErrorIs(t, err, ErrLength)
	assert.Zero(t, rt.Stats().Objects)
}

func TestEnumDomains(t *testing.T) {
	rt := newTestRuntime(t)

	require.NoError(t, rt.DefineEnum("sym", []string{"a", "b", "c"}))

	e, err := rt.NewEnum("sym", 2)
	require.NoError(t, err)
	assert.Equal(t, k.TypeEnumAtom, e.T)
	assert.Equal(t, int64(2), *k.Cast[int64](e))
	rt.Unref(e)

	_, err = rt.NewEnum("sym", 3)
	assert.ErrorIs(t, err, ErrLength)
	_, err = rt.NewEnum("nope", 0)
	assert.ErrorIs(t, err, ErrBadType)

	dom, ok := rt.EnumDomain("sym")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, dom)

	require.NoError(t, rt.DefineEnum("sym", []string{"z"}))
	assert.Equal(t, 1, rt.Stats().Enums)

	assert.True(t, rt.DropEnum("sym"))
	assert.False(t, rt.DropEnum("sym"))
	assert.Zero(t, rt.Stats().Enums)
}

func TestPinSymbolsIsExclusive(t *testing.T) {
	rt := newTestRuntime(t)

	pin, err := rt.PinSymbols()
	require.NoError(t, err)
	assert.True(t, rt.Pinned())

	_, err = rt.PinSymbols()
	assert.ErrorIs(t, err, k.ErrPinned)

	pin.Release()
	pin.Release()
	assert.False(t, rt.Pinned())

	again, err := rt.PinSymbols()
	require.NoError(t, err)
	again.Release()
}

func TestInternPinnedChecksPin(t *testing.T) {
	rt := newTestRuntime(t)

	_, err := rt.InternPinned(nil, "a")
	assert.ErrorIs(t, err, k.ErrNotPinned)

	pin, err := rt.PinSymbols()
	require.NoError(t, err)

	var g errgroup.Group
	ptrs := make([]*byte, 4)
	for i := range ptrs {
		g.Go(func() error {
			p, err := rt.InternPinned(pin, "sym")
			ptrs[i] = p
			return err
		})
	}
	require.NoError(t, g.Wait())
	want, err := rt.Intern("sym")
	require.NoError(t, err)
	for _, p := range ptrs {
		assert.Same(t, want, p)
	}

	stale := pin
	pin.Release()
	_, err = rt.InternPinned(stale, "b")
	assert.ErrorIs(t, err, k.ErrNotPinned)

	other, err := rt.PinSymbols()
	require.NoError(t, err)
	defer other.Release()
	_, err = rt.InternPinned(stale, "b")
	assert.ErrorIs(t, err, k.ErrNotPinned, "a released pin must not match its successor")

	// Intern ignores the pin.
	_, err = rt.Intern("c")
	assert.NoError(t, err)
}

func TestClosedRuntimeRefusesAllocation(t *testing.T) {
	rt := New(DefaultConfig())
	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())

	_, err := rt.NewAtom(k.TypeIntAtom)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = rt.Intern("x")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = rt.PinSymbols()
	assert.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, rt.NewError("x"))
}

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/roach88/kbind/internal/codec"
	"github.com/roach88/kbind/internal/k"
	"github.com/roach88/kbind/internal/kval"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testTable(t *testing.T) kval.Table {
	t.Helper()
	d, err := kval.NewDict(
		kval.Symbol{Data: kval.List("sym", "px")},
		kval.CompoundList{
			kval.Symbol{Data: kval.List("a", "b")},
			kval.Float{Data: kval.List(1.5, 2.5)},
		},
	)
	if err != nil {
		t.Fatalf("NewDict() failed: %v", err)
	}
	tbl, err := kval.NewTable(d)
	if err != nil {
		t.Fatalf("NewTable() failed: %v", err)
	}
	return tbl
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"entries", "enums"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("user_version", "2"); err != nil {
		t.Error(err)
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	dict, err := kval.NewDict(kval.Symbol{Data: kval.List("a", "b")}, kval.Long{Data: kval.List[int64](1, 2)})
	if err != nil {
		t.Fatal(err)
	}

	values := map[string]kval.Value{
		"longs":    kval.Long{Data: kval.List[int64](1, 2, 3)},
		"atom":     kval.Float{Data: kval.Atom(2.5)},
		"string":   kval.String("hello"),
		"compound": kval.CompoundList{kval.String("x"), kval.Int{Data: kval.Atom[int32](7)}},
		"dict":     dict,
		"sorted":   dict.AsSorted(),
		"table":    testTable(t),
		"error":    kval.ErrorValue("type"),
		"null":     kval.Null{},
		"enum":     kval.Enum{Data: kval.List[int64](0, 1), Source: "sym"},
	}

	for name, v := range values {
		if _, err := s.Put(ctx, name, v); err != nil {
			t.Fatalf("Put(%s) failed: %v", name, err)
		}
	}
	for name, want := range values {
		got, err := s.Get(ctx, name)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", name, err)
		}
		if !kval.Equal(want, got) {
			t.Errorf("Get(%s) = %s, want %s", name, got, want)
		}
	}

	if live := s.rt.Stats().Objects; live != 0 {
		t.Errorf("runtime holds %d live objects after round trips", live)
	}
}

func TestPut_Entry(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	tbl := testTable(t)

	e, err := s.Put(ctx, "trades", tbl)
	if err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if e.Seq != 1 {
		t.Errorf("Seq = %d, want 1", e.Seq)
	}
	if e.Type != "table" || e.QType != k.TypeTable {
		t.Errorf("Type = %s/%d, want table/98", e.Type, e.QType)
	}
	if e.Len != 2 {
		t.Errorf("Len = %d, want 2", e.Len)
	}
	if want := "+`sym`px!(`a`b;1.5 2.5)"; e.Q != want {
		t.Errorf("Q = %q, want %q", e.Q, want)
	}
	if want := codec.MustHash(tbl); e.Hash != want {
		t.Errorf("Hash = %s, want %s", e.Hash, want)
	}

	stat, err := s.Stat(ctx, "trades")
	if err != nil {
		t.Fatalf("Stat() failed: %v", err)
	}
	if stat.Size == 0 || stat.Size != e.Size {
		t.Errorf("Size = %d, Put reported %d", stat.Size, e.Size)
	}
	e.Size = stat.Size
	if stat != e {
		t.Errorf("Stat() = %+v, want %+v", stat, e)
	}
}

func TestPut_OverwriteBumpsSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"b", "a", "c"} {
		if _, err := s.Put(ctx, name, kval.Long{Data: kval.Atom[int64](1)}); err != nil {
			t.Fatal(err)
		}
	}
	e, err := s.Put(ctx, "b", kval.Long{Data: kval.Atom[int64](2)})
	if err != nil {
		t.Fatal(err)
	}
	if e.Seq != 4 {
		t.Errorf("Seq = %d, want 4", e.Seq)
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	if !slices.Equal(names, []string{"a", "c", "b"}) {
		t.Errorf("List() order = %v, want [a c b]", names)
	}

	got, err := s.Get(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if kval.Format(got) != "2" {
		t.Errorf("Get(b) = %s, want 2", kval.Format(got))
	}
}

func TestList_Empty(t *testing.T) {
	s := createTestStore(t)

	entries, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", entries)
	}
}

func TestFindByHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	v := kval.Symbol{Data: kval.List("x", "y")}
	for _, name := range []string{"one", "two"} {
		if _, err := s.Put(ctx, name, v); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Put(ctx, "other", kval.Symbol{Data: kval.List("x")}); err != nil {
		t.Fatal(err)
	}

	entries, err := s.FindByHash(ctx, codec.MustHash(v))
	if err != nil {
		t.Fatalf("FindByHash() failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "one" || entries[1].Name != "two" {
		t.Errorf("FindByHash() = %+v, want one and two", entries)
	}
}

func TestNotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if _, err := s.Stat(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stat() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, "x", kval.Null{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "x"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := s.Get(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
	}
}

func TestPut_Rejects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, "", kval.Null{}); err == nil {
		t.Error("Put() with empty name succeeded")
	}
	if _, err := s.Put(ctx, "f", kval.Foreign{}); err == nil {
		t.Error("Put() of a foreign value succeeded")
	}
	if _, err := s.Put(ctx, "e", kval.Enum{Data: kval.Atom[int64](0), Source: "sym"}); err == nil {
		t.Error("Put() of an enum atom without a domain succeeded")
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("rejected puts left %d entries", len(entries))
	}
}

func TestDefineEnum_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()
	atom := kval.Enum{Data: kval.Atom[int64](1), Source: "sym"}

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DefineEnum(ctx, "sym", []string{"a", "b"}); err != nil {
		t.Fatalf("DefineEnum() failed: %v", err)
	}
	if _, err := s.Put(ctx, "e", atom); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	names, err := s.Enums(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "sym" {
		t.Errorf("Enums() = %v, want [sym]", names)
	}
	if syms, ok := s.rt.EnumDomain("sym"); !ok || len(syms) != 2 || syms[1] != "b" {
		t.Errorf("EnumDomain(sym) = %v, %v", syms, ok)
	}

	got, err := s.Get(ctx, "e")
	if err != nil {
		t.Fatal(err)
	}
	if !kval.Equal(atom, got) {
		t.Errorf("Get(e) = %s, want %s", got, atom)
	}
	if _, err := s.Put(ctx, "e2", atom); err != nil {
		t.Errorf("Put() after reopen failed: %v", err)
	}
}

func TestPutGet_NestedEnumSources(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	d, err := kval.NewDict(
		kval.Symbol{Data: kval.List("e", "px")},
		kval.CompoundList{
			kval.Enum{Data: kval.List[int64](0, 1), Source: "sym"},
			kval.Float{Data: kval.List(1.5, 2.5)},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := kval.NewTable(d)
	if err != nil {
		t.Fatal(err)
	}
	inner, err := kval.NewDict(
		kval.Symbol{Data: kval.List("side")},
		kval.CompoundList{kval.Enum{Data: kval.List[int64](1), Source: "side"}},
	)
	if err != nil {
		t.Fatal(err)
	}
	nested := kval.CompoundList{
		kval.Enum{Data: kval.List[int64](2), Source: "ex"},
		inner.AsSorted(),
		kval.Long{Data: kval.Atom[int64](7)},
	}

	for name, v := range map[string]kval.Value{"table": tbl, "nested": nested} {
		if _, err := s.Put(ctx, name, v); err != nil {
			t.Fatalf("Put(%s) failed: %v", name, err)
		}
		got, err := s.Get(ctx, name)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", name, err)
		}
		if !kval.Equal(v, got) {
			t.Errorf("Get(%s) = %s, want %s", name, got, v)
		}
	}

	got, err := s.Get(ctx, "table")
	if err != nil {
		t.Fatal(err)
	}
	col, err := got.(kval.Table).GetColumn(0, "")
	if err != nil {
		t.Fatalf("GetColumn(0) failed: %v", err)
	}
	if q := kval.Format(col); q != "`sym!0 1" {
		t.Errorf("GetColumn(0) = %s, want `sym!0 1", q)
	}
}

func TestEnumSourcePaths(t *testing.T) {
	d, err := kval.NewDict(
		kval.Enum{Data: kval.List[int64](0), Source: "k"},
		kval.CompoundList{kval.CompoundList{kval.Enum{Data: kval.Atom[int64](0), Source: "a"}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	got := enumSources(kval.CompoundList{d, kval.Enum{Data: kval.List[int64](0)}})
	want := map[string]string{"0/k": "k", "0/v/0/0": "a"}
	if len(got) != len(want) {
		t.Fatalf("enumSources() = %v, want %v", got, want)
	}
	for path, src := range want {
		if got[path] != src {
			t.Errorf("enumSources()[%q] = %q, want %q", path, got[path], src)
		}
	}

	if top := enumSources(kval.Enum{Data: kval.List[int64](0), Source: "sym"}); len(top) != 0 {
		t.Errorf("top-level enum recorded in nested sources: %v", top)
	}
}

func TestOpen_MigratesV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put(ctx, "old", kval.Long{Data: kval.List[int64](1)}); err != nil {
		t.Fatal(err)
	}
	// roll the catalog back to its version 1 layout
	for _, stmt := range []string{
		"ALTER TABLE entries DROP COLUMN enum_sources",
		"PRAGMA user_version = 1",
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	if err := s.verifyPragma("user_version", "2"); err != nil {
		t.Error(err)
	}
	got, err := s.Get(ctx, "old")
	if err != nil {
		t.Fatalf("Get(old) after migration failed: %v", err)
	}
	if q := kval.Format(got); q != ",1" {
		t.Errorf("Get(old) = %s, want ,1", q)
	}
	col := kval.CompoundList{kval.Enum{Data: kval.List[int64](0), Source: "sym"}}
	if _, err := s.Put(ctx, "new", col); err != nil {
		t.Fatalf("Put() after migration failed: %v", err)
	}
	if got, err := s.Get(ctx, "new"); err != nil || !kval.Equal(col, got) {
		t.Errorf("Get(new) = %v, %v, want %s", got, err, col)
	}
}

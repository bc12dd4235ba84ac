package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kbind/internal/codec"
	"github.com/roach88/kbind/internal/k"
	"github.com/roach88/kbind/internal/kval"
)

const tradesYAML = `type: table
order: [sym, px]
columns:
  sym: {type: symbol, list: [a, b]}
  px: {type: float, list: [1.5, 2.5]}
`

func TestInspectDescriptor(t *testing.T) {
	path := writeFile(t, t.TempDir(), "v.yaml", "{type: long, list: [1, 2, 3]}")

	out, err := execute(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "type:  long (7)")
	assert.Contains(t, out, "len:   3")
	assert.Contains(t, out, "hash:  "+codec.MustHash(kval.Long{Data: kval.List[int64](1, 2, 3)}))
	assert.Contains(t, out, "1 2 3\n")
}

func TestInspectJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "trades.yaml", tradesYAML)

	out, err := execute(t, "inspect", path, "--format", "json")
	require.NoError(t, err)

	var info ValueInfo
	decodeData(t, out, &info)
	assert.Equal(t, InputDescriptor, info.Input)
	assert.Equal(t, "table", info.Type)
	assert.Equal(t, k.TypeTable, info.QType)
	assert.Equal(t, int64(2), info.Len)
	assert.Equal(t, "+`sym`px!(`a`b;1.5 2.5)", info.Q)
	assert.Len(t, info.Hash, 64)
}

func TestInspectDescriptorOutput(t *testing.T) {
	path := writeFile(t, t.TempDir(), "v.yaml", "{type: symbol, list: [a, b]}")

	out, err := execute(t, "inspect", path, "--descriptor")
	require.NoError(t, err)

	v, err := codec.ParseValue([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "`a`b", kval.Format(v))
}

func TestInspectErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "inspect", filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	bad := writeFile(t, dir, "bad.yaml", "{type: decimal, atom: 1}")
	_, err = execute(t, "inspect", bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, codec.ErrDescriptor)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "inspect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestEncodeThenInspect(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "trades.yaml", tradesYAML)
	ipc := filepath.Join(dir, "trades.ipc")

	out, err := execute(t, "encode", src, "-o", ipc)
	require.NoError(t, err)
	assert.Contains(t, out, "to "+ipc+" (table)")

	data, err := os.ReadFile(ipc)
	require.NoError(t, err)
	assert.True(t, isIPC(data))

	out, err = execute(t, "inspect", ipc, "--format", "json")
	require.NoError(t, err)

	var info ValueInfo
	decodeData(t, out, &info)
	assert.Equal(t, InputIPC, info.Input)
	assert.Equal(t, "+`sym`px!(`a`b;1.5 2.5)", info.Q)

	want, err := codec.ParseValue([]byte(tradesYAML))
	require.NoError(t, err)
	assert.Equal(t, codec.MustHash(want), info.Hash)
}

func TestEncodeJSON(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "v.yaml", "{type: long, list: [1, 2]}")
	ipc := filepath.Join(dir, "v.ipc")

	out, err := execute(t, "encode", src, "-o", ipc, "--format", "json")
	require.NoError(t, err)

	var res EncodeResult
	decodeData(t, out, &res)
	assert.Equal(t, ipc, res.Path)
	// 8 byte header, type and attribute, 4 byte count, two longs
	assert.Equal(t, 8+2+4+16, res.Bytes)
	assert.Equal(t, "1 2", res.Value.Q)
}

func TestEncodeEnums(t *testing.T) {
	dir := t.TempDir()
	list := writeFile(t, dir, "list.yaml", "{type: enum, source: sym, list: [0, 1]}")
	atom := writeFile(t, dir, "atom.yaml", "{type: enum, source: side, atom: 1}")
	out := filepath.Join(dir, "out.ipc")

	// lists carry their indices without a domain
	_, err := execute(t, "encode", list, "-o", out)
	require.NoError(t, err)

	text, err := execute(t, "inspect", out)
	require.NoError(t, err)
	assert.Contains(t, text, "`!0 1\n")

	text, err = execute(t, "inspect", out, "--enum-source", "sym")
	require.NoError(t, err)
	assert.Contains(t, text, "enum:  sym")
	assert.Contains(t, text, "`sym!0 1\n")

	// atoms need the domain registered
	_, err = execute(t, "encode", atom, "-o", out)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to build value")

	_, err = execute(t, "encode", atom, "-o", out, "--enum", "side=buy,sell")
	require.NoError(t, err)
	text, err = execute(t, "inspect", out, "--enum-source", "side")
	require.NoError(t, err)
	assert.Contains(t, text, "`side!1\n")
}

func TestEncodeErrors(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "v.yaml", "{type: long, atom: 1}")

	_, err := execute(t, "encode", src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "output" not set`)

	_, err = execute(t, "encode", src, "-o", filepath.Join(dir, "v.ipc"), "--enum", "nosyms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --enum")

	_, err = execute(t, "encode", src, "-o", filepath.Join(dir, "missing", "v.ipc"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write output")
}

func TestIsIPC(t *testing.T) {
	assert.True(t, isIPC([]byte{1, 0, 0, 0, 10, 0, 0, 0, 0xf9, 0}))
	assert.False(t, isIPC([]byte{1, 0, 0, 0, 11, 0, 0, 0, 0xf9, 0}))
	assert.False(t, isIPC([]byte{0, 0, 0, 0, 10, 0, 0, 0, 0xf9, 0}))
	assert.False(t, isIPC([]byte("{type: long, atom: 1}")))
}

func TestDefineEnums(t *testing.T) {
	rt := (&RootOptions{}).runtime(NewRootCommand())
	defer rt.Close()

	domains, err := defineEnums(rt, []string{"side=buy,sell", "empty="})
	require.NoError(t, err)
	assert.Equal(t, []string{"buy", "sell"}, domains["side"])
	assert.Empty(t, domains["empty"])

	syms, ok := rt.EnumDomain("side")
	require.True(t, ok)
	assert.Equal(t, []string{"buy", "sell"}, syms)

	_, err = defineEnums(rt, []string{"=a"})
	assert.Error(t, err)
}

package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: lists
description: Joining two long lists.
steps:
  - op: load
    as: x
    value: {type: long, list: [1, 2]}
  - op: join
    args: [x, x]
    as: xx
    expect: "1 2 1 2"
assertions:
  - type: trace_count
    op: join
    count: 1
`

const failingScenario = `name: broken
description: A join whose expectation is wrong.
steps:
  - op: load
    as: x
    value: {type: long, atom: 1}
  - op: join
    args: [x, x]
    expect: "1 2"
`

func TestRunCommandPasses(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lists.yaml", passingScenario)

	out, err := execute(t, "run", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ lists")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestRunCommandFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lists.yaml", passingScenario)
	writeFile(t, dir, "broken.yaml", failingScenario)
	writeFile(t, dir, "invalid.yaml", "name: invalid\n")

	out, err := execute(t, "run", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "step 2 (join): expected 1 2, got 1 1")
	assert.Contains(t, out, "✗ invalid.yaml")
	assert.Contains(t, out, "Test Summary: 1 passed, 2 failed, 3 total")
}

func TestRunCommandFilterJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lists.yaml", passingScenario)
	writeFile(t, dir, "broken.yaml", failingScenario)

	out, err := execute(t, "run", dir, "--filter", "list*", "--format", "json")
	require.NoError(t, err)

	var res RunResult
	decodeData(t, out, &res)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Passed)
	require.Len(t, res.Scenarios, 1)
	assert.Equal(t, "lists", res.Scenarios[0].Name)
}

func TestRunCommandGolden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lists.yaml", passingScenario)
	golden := filepath.Join(dir, "golden", "lists.golden")

	out, err := execute(t, "run", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ lists (golden updated)")

	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Equal(t, "# lists\n1 load -> x = 1 2\n2 join x x -> xx = 1 2 1 2\n", string(data))

	_, err = execute(t, "run", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte("# lists\n"), 0o644))
	out, err = execute(t, "run", dir)
	require.Error(t, err)
	assert.Contains(t, out, "Golden file mismatch")
}

func TestRunCommandEmptyDir(t *testing.T) {
	out, err := execute(t, "run", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")

	out, err = execute(t, "run", t.TempDir(), "--format", "json")
	require.NoError(t, err)
	var res RunResult
	decodeData(t, out, &res)
	assert.Equal(t, 0, res.Total)
	assert.NotContains(t, out, "No scenarios found")
}

func TestRunCommandMissingDir(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario directory not found")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "joins.golden"), goldenFilePath(filepath.Join("s", "joins.yaml")))
}

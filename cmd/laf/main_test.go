package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/laf/pkg/laf/inference"
	"github.com/cognicore/laf/pkg/laf/internalerr"
)

const birds = `# birds
bird(tweety). {0.9, 0.6}
penguin(tweety). {0.8, 0.7}
flies(X) :- bird(X). {0.2, 0.1}
~flies(X) :- penguin(X). {0.3, 0.3}
`

const combinators = `combinators:
  - support: "min(1, X + Y)"
    aggregation: "max(X, Y)"
    attack: "X - Y / 2"
  - support: "X + Y"
    aggregation: "X * Y"
    attack: "X - Y"
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunText(t *testing.T) {
	dir := t.TempDir()
	prog := writeFile(t, dir, "birds.laf", birds)

	out, err := execute(t, "run", "--program", prog)
	require.NoError(t, err)

	assert.Contains(t, out, "Derivations")
	assert.Contains(t, out, "flies(tweety)")
	assert.Contains(t, out, "Conflicts:")
	assert.Contains(t, out, "Run ", "unsaved runs still get an ID")
}

func TestRunJSON(t *testing.T) {
	dir := t.TempDir()
	prog := writeFile(t, dir, "birds.laf", birds)
	comb := writeFile(t, dir, "comb.yaml", combinators)

	out, err := execute(t, "run", "-p", prog, "-c", comb, "--format", "json")
	require.NoError(t, err)

	var view runView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.NotNil(t, view.Snapshot)
	assert.NotEmpty(t, view.RunID)

	flies, ok := view.Snapshot.Lookup(inference.Signature{Name: "flies", Argument: "tweety"})
	require.True(t, ok)
	// min(1, min(1, 0 + 0.9) + 0.2) = 1
	assert.InDelta(t, 1.0, flies.Fact.Attributes[0], 1e-9)
	assert.Len(t, view.Snapshot.Conflicts, 1)
}

func TestRunStoreAndInspect(t *testing.T) {
	dir := t.TempDir()
	prog := writeFile(t, dir, "birds.laf", birds)
	db := filepath.Join(dir, "runs.db")

	out, err := execute(t, "run", "-p", prog, "--db", db, "-f", "json")
	require.NoError(t, err)
	var view runView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	id := view.RunID

	out, err = execute(t, "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.True(t, strings.HasPrefix(out, "ID"))

	out, err = execute(t, "show", id, "--db", db, "--program")
	require.NoError(t, err)
	assert.Contains(t, out, "Run "+id)
	assert.Contains(t, out, "penguin(tweety). {0.8, 0.7}")
	assert.Contains(t, out, "Derivations")

	out, err = execute(t, "facts", "~flies(tweety)", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "live")

	out, err = execute(t, "delete", id, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted "+id)

	_, err = execute(t, "show", id, "--db", db)
	assert.Error(t, err)
}

func TestStoreCommandsRequireDB(t *testing.T) {
	for _, args := range [][]string{
		{"list"},
		{"show", "01ARZ3NDEKTSV4RRFFQ69G5FAV"},
		{"delete", "01ARZ3NDEKTSV4RRFFQ69G5FAV"},
		{"facts", "bird(tweety)"},
	} {
		_, err := execute(t, args...)
		assert.Error(t, err, "%v", args)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	prog := writeFile(t, dir, "birds.laf", birds)
	comb := writeFile(t, dir, "comb.yaml", combinators)
	single := writeFile(t, dir, "single.yaml", "combinators:\n  - {support: X, aggregation: Y, attack: X}\n")
	bad := writeFile(t, dir, "bad.yaml", "combinators:\n  - {support: \"sqrt(X, Y)\", aggregation: Y, attack: X}\n")

	out, err := execute(t, "check", "-c", comb, "-p", prog)
	require.NoError(t, err)
	assert.Equal(t, "ok: 2 attributes\n", out)

	_, err = execute(t, "check", "-c", single, "-p", prog)
	assert.ErrorIs(t, err, internalerr.ErrArityMismatch)

	_, err = execute(t, "check", "-c", bad)
	assert.ErrorContains(t, err, "sqrt")

	_, err = execute(t, "check")
	assert.Error(t, err)
}

func TestFmt(t *testing.T) {
	prog := writeFile(t, t.TempDir(), "p.laf", "bird( tweety ).  0.9\nflies(Y):-bird(Y).{0.2}\n")

	out, err := execute(t, "fmt", prog)
	require.NoError(t, err)
	assert.Equal(t, "bird(tweety). {0.9}\nflies(X) :- bird(X). {0.2}\n", out)
}

func TestUnknownFormat(t *testing.T) {
	prog := writeFile(t, t.TempDir(), "p.laf", birds)
	_, err := execute(t, "run", "-p", prog, "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestParseSignature(t *testing.T) {
	sig, err := parseSignature("~flies(tweety)")
	require.NoError(t, err)
	assert.Equal(t, inference.Signature{Name: "~flies", Argument: "tweety"}, sig)

	sig, err = parseSignature(`city("new york").`)
	require.NoError(t, err)
	assert.Equal(t, "new york", sig.Argument)

	_, err = parseSignature("flies")
	assert.Error(t, err)
}

func TestUsageListsEveryCommand(t *testing.T) {
	src, err := os.ReadFile("main.go")
	require.NoError(t, err)
	doc, _, ok := strings.Cut(string(src), "package main")
	require.True(t, ok)

	for _, cmd := range newRootCmd().Commands() {
		assert.Contains(t, doc, "//\tlaf "+cmd.Name()+" ", "usage is missing %q", cmd.Name())
	}
}

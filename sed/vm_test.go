package sed

import (
	"bytes"
	"testing"

	"github.com/hermit-sh/hermit/fs"
	"github.com/hermit-sh/hermit/limits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard() *limits.Guard {
	return limits.NewGuard(limits.Limits{MaxIterations: 1000})
}

func runSed(t *testing.T, script, stdin string) (string, int) {
	t.Helper()
	var out bytes.Buffer
	code, err := Run(script, Config{
		FS:     fs.NewMemFS(),
		Stdin:  bytes.NewBufferString(stdin),
		Stdout: &out,
	})
	require.NoError(t, err)
	return out.String(), code
}

func TestSubstituteBasic(t *testing.T) {
	out, _ := runSed(t, `s/foo/bar/`, "foo baz\nfoo foo\n")
	assert.Equal(t, "bar baz\nbar foo\n", out)
}

func TestSubstituteGlobal(t *testing.T) {
	out, _ := runSed(t, `s/a/X/g`, "banana\n")
	assert.Equal(t, "bXnXnX\n", out)
}

func TestPrintDoublesWithAutoprint(t *testing.T) {
	// `p` explicitly prints, and the default autoprint at end-of-cycle
	// also prints, so each matching line appears twice (spec.md §8).
	out, _ := runSed(t, `/b/p`, "a\nb\nc\n")
	assert.Equal(t, "a\nb\nb\nc\n", out)
}

func TestQuietSuppressesAutoprint(t *testing.T) {
	var out bytes.Buffer
	_, err := Run(`/b/p`, Config{
		FS:     fs.NewMemFS(),
		Stdin:  bytes.NewBufferString("a\nb\nc\n"),
		Stdout: &out,
		Quiet:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "b\n", out.String())
}

func TestDeleteCommand(t *testing.T) {
	out, _ := runSed(t, `/b/d`, "a\nb\nc\n")
	assert.Equal(t, "a\nc\n", out)
}

func TestHoldAndGet(t *testing.T) {
	out, _ := runSed(t, `1h;2G`, "a\nb\n")
	assert.Equal(t, "a\nb\na\n", out)
}

func TestRangeAddress(t *testing.T) {
	out, _ := runSed(t, `/start/,/stop/d`, "a\nstart\nb\nstop\nc\n")
	assert.Equal(t, "a\nc\n", out)
}

func TestBranchLoopHitsExecutionLimit(t *testing.T) {
	// spec.md §8: a runaway `:l;bl` branch loop must terminate via the
	// shared execution-limit guard rather than hang the process.
	script, err := Compile(":l\nbl\n")
	require.NoError(t, err)
	m := NewMachine(script, Config{
		FS:     fs.NewMemFS(),
		Stdin:  bytes.NewBufferString("x\n"),
		Stdout: &bytes.Buffer{},
		Limits: newTestGuard(),
	})
	_, err = m.Run()
	assert.Error(t, err)
}

func TestTransliterate(t *testing.T) {
	out, _ := runSed(t, `y/abc/xyz/`, "cab\n")
	assert.Equal(t, "zxy\n", out)
}

func TestSubstituteBackreference(t *testing.T) {
	out, _ := runSed(t, `s/\(foo\)=\(bar\)/\2=\1/`, "foo=bar\n")
	assert.Equal(t, "bar=foo\n", out)
}

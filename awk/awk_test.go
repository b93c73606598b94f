package awk

import (
	"bytes"
	"testing"

	"github.com/hermit-sh/hermit/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runAWK(t *testing.T, src string, stdin string, args ...string) (string, int) {
	t.Helper()
	var out bytes.Buffer
	code, err := Run(src, Config{
		FS:     fs.NewMemFS(),
		Stdin:  bytes.NewBufferString(stdin),
		Stdout: &out,
		Stderr: &out,
		Args:   args,
	})
	require.NoError(t, err)
	return out.String(), code
}

func TestPrintFields(t *testing.T) {
	out, code := runAWK(t, `{ print $2, $1 }`, "one two\nthree four\n")
	assert.Equal(t, 0, code)
	assert.Equal(t, "two one\nfour three\n", out)
}

func TestNumericStringComparison(t *testing.T) {
	// "10" read from input is a numeric string and must compare
	// numerically against 9, not lexicographically (spec.md §4.6.3).
	out, _ := runAWK(t, `{ if ($1 > 9) print "big"; else print "small" }`, "10\n")
	assert.Equal(t, "big\n", out)
}

func TestPlainStringNeverComparesNumerically(t *testing.T) {
	out, _ := runAWK(t, `BEGIN { x = "10"; if (x > 9) print "big"; else print "small" }`, "")
	assert.Equal(t, "small\n", out)
}

func TestFieldAssignmentRebuildsRecord(t *testing.T) {
	out, _ := runAWK(t, `{ $2 = "X"; print }`, "a b c\n")
	assert.Equal(t, "a X c\n", out)
}

func TestNFTruncation(t *testing.T) {
	out, _ := runAWK(t, `{ NF = 2; print }`, "a b c d\n")
	assert.Equal(t, "a b\n", out)
}

func TestArrayPassByReference(t *testing.T) {
	src := `
	function fill(a) {
		a["k"] = "v"
	}
	BEGIN {
		fill(arr)
		print arr["k"]
	}`
	out, _ := runAWK(t, src, "")
	assert.Equal(t, "v\n", out)
}

func TestGsubCount(t *testing.T) {
	out, _ := runAWK(t, `BEGIN { s = "aXaXa"; n = gsub(/X/, "-", s); print n, s }`, "")
	assert.Equal(t, "2 a-a-a\n", out)
}

func TestSprintfExcessArgsReapply(t *testing.T) {
	out, _ := runAWK(t, `BEGIN { printf "%s\n", "a", "b", "c" }`, "")
	assert.Equal(t, "a\nb\nc\n", out)
}

func TestBeginEndWithNoRules(t *testing.T) {
	out, _ := runAWK(t, `BEGIN { print "start" } END { print "end" }`, "ignored\n")
	assert.Equal(t, "start\nend\n", out)
}

func TestRangePattern(t *testing.T) {
	out, _ := runAWK(t, `/start/,/stop/`, "a\nstart\nb\nstop\nc\n")
	assert.Equal(t, "start\nb\nstop\n", out)
}

func TestUserFunctionRecursion(t *testing.T) {
	src := `
	function fact(n) {
		if (n <= 1) return 1
		return n * fact(n - 1)
	}
	BEGIN { print fact(5) }`
	out, _ := runAWK(t, src, "")
	assert.Equal(t, "120\n", out)
}

func TestSplitWithRegexFS(t *testing.T) {
	out, _ := runAWK(t, `BEGIN { n = split("a1b22c333d", arr, /[0-9]+/); print n, arr[1], arr[4] }`, "")
	assert.Equal(t, "4 a d\n", out)
}

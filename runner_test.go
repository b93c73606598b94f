package hermit

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mvdan.cc/sh/v3/syntax"

	"github.com/hermit-sh/hermit/fs"
)

func runShell(t *testing.T, src string, opts ...Option) (string, int) {
	t.Helper()
	var out bytes.Buffer
	allOpts := append([]Option{WithStdIO(nil, &out, &out)}, opts...)
	r, err := NewRunner(allOpts...)
	require.NoError(t, err)

	prog, err := syntax.NewParser().Parse(bytes.NewBufferString(src), "")
	require.NoError(t, err)

	err = r.Run(context.Background(), prog)
	if err == nil {
		return out.String(), 0
	}
	es, ok := err.(ExitStatus)
	if !ok {
		t.Fatalf("unexpected error: %v", err)
	}
	return out.String(), int(es)
}

func TestSimpleCommandAndEcho(t *testing.T) {
	out, code := runShell(t, `echo hello world`)
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello world\n", out)
}

func TestVariableAssignmentAndExpansion(t *testing.T) {
	out, _ := runShell(t, `x=foo; echo "value: $x"`)
	assert.Equal(t, "value: foo\n", out)
}

func TestTempEnvBindingDoesNotLeak(t *testing.T) {
	// $FOO in the argument list is expanded before the binding applies, so
	// the first echo prints an empty line.
	out, _ := runShell(t, `FOO=bar echo $FOO; echo "after: $FOO"`)
	assert.Equal(t, "\nafter: \n", out)
}

func TestIfElse(t *testing.T) {
	out, _ := runShell(t, `if [ 1 -eq 2 ]; then echo yes; else echo no; fi`)
	assert.Equal(t, "no\n", out)
}

func TestWhileLoopWithBreak(t *testing.T) {
	out, _ := runShell(t, `
i=0
while true; do
  i=$((i+1))
  if [ $i -ge 3 ]; then break; fi
done
echo $i
`)
	assert.Equal(t, "3\n", out)
}

func TestForWordList(t *testing.T) {
	out, _ := runShell(t, `for x in a b c; do echo $x; done`)
	assert.Equal(t, "a\nb\nc\n", out)
}

func TestCStyleForLoop(t *testing.T) {
	out, _ := runShell(t, `for ((i=0; i<3; i++)); do echo $i; done`)
	assert.Equal(t, "0\n1\n2\n", out)
}

func TestCaseClause(t *testing.T) {
	out, _ := runShell(t, `
for x in cat dog fish; do
  case $x in
    cat|dog) echo pet ;;
    *) echo other ;;
  esac
done
`)
	assert.Equal(t, "pet\npet\nother\n", out)
}

func TestFunctionCallAndReturn(t *testing.T) {
	out, code := runShell(t, `
greet() {
  echo "hi $1"
  return 3
}
greet world
echo "status: $?"
`)
	assert.Equal(t, "hi world\nstatus: 3\n", out)
	assert.Equal(t, 0, code)
}

func TestLocalScopingUnsetsOnReturn(t *testing.T) {
	out, _ := runShell(t, `
x=outer
f() {
  local x=inner
  echo $x
}
f
echo $x
`)
	assert.Equal(t, "inner\nouter\n", out)
}

func TestPlainAssignmentInFunctionSurvivesReturn(t *testing.T) {
	out, _ := runShell(t, `
x=1
f() {
  x=2
}
f
echo $x
`)
	assert.Equal(t, "2\n", out)
}

func TestArithmeticExpansion(t *testing.T) {
	out, _ := runShell(t, `echo $((2 + 3 * 4))`)
	assert.Equal(t, "14\n", out)
}

func TestArithmeticTernaryAndAssignment(t *testing.T) {
	out, _ := runShell(t, `x=5; echo $(( x > 3 ? 100 : 200 ))`)
	assert.Equal(t, "100\n", out)
}

func TestParameterExpansionDefault(t *testing.T) {
	out, _ := runShell(t, `unset y; echo "${y:-fallback}"`)
	assert.Equal(t, "fallback\n", out)
}

func TestParameterExpansionLength(t *testing.T) {
	out, _ := runShell(t, `x=hello; echo ${#x}`)
	assert.Equal(t, "5\n", out)
}

func TestParameterExpansionSuffixRemoval(t *testing.T) {
	out, _ := runShell(t, `f=archive.tar.gz; echo ${f%.gz}`)
	assert.Equal(t, "archive.tar\n", out)
}

func TestDoubleBracketRegexMatch(t *testing.T) {
	out, _ := runShell(t, `
if [[ "abc123" =~ ^[a-z]+[0-9]+$ ]]; then
  echo matched
else
  echo nope
fi
`)
	assert.Equal(t, "matched\n", out)
}

func TestPipelineThroughRegisteredCommand(t *testing.T) {
	upper := func(hc RunnerContext, args []string) error {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(hc.Stdin); err != nil {
			return err
		}
		_, err := hc.Stdout.Write(bytes.ToUpper(buf.Bytes()))
		return err
	}
	out, _ := runShell(t, `echo hi | upper`, WithCommand("upper", upper))
	assert.Equal(t, "HI\n", out)
}

func TestCommandSubstitution(t *testing.T) {
	out, _ := runShell(t, `x=$(echo inner); echo "got: $x"`)
	assert.Equal(t, "got: inner\n", out)
}

func TestSubshellDoesNotLeakVariables(t *testing.T) {
	out, _ := runShell(t, `
x=before
(x=after)
echo $x
`)
	assert.Equal(t, "before\n", out)
}

func TestRedirectionOverwriteThenAppend(t *testing.T) {
	cat := func(hc RunnerContext, args []string) error {
		for _, a := range args {
			data, err := hc.FileSystem.ReadFile(a)
			if err != nil {
				return err
			}
			if _, err := hc.Stdout.Write(data); err != nil {
				return err
			}
		}
		return nil
	}
	out, _ := runShell(t, `
echo one > /out.txt
echo two >> /out.txt
cat /out.txt
`, WithFileSystem(fs.NewMemFS()), WithCommand("cat", cat))
	assert.Equal(t, "one\ntwo\n", out)
}

func TestExitStatusPropagation(t *testing.T) {
	_, code := runShell(t, `false; echo after`)
	assert.Equal(t, 0, code)

	_, code = runShell(t, `exit 7`)
	assert.Equal(t, 7, code)
}

func TestUnsetBuiltin(t *testing.T) {
	out, _ := runShell(t, `x=set; unset x; echo "[${x}]"`)
	assert.Equal(t, "[]\n", out)
}

func TestGetoptsBuiltin(t *testing.T) {
	out, _ := runShell(t, `
set -- -a -b foo
while getopts "ab" opt; do
  echo "opt=$opt"
done
`)
	assert.Equal(t, "opt=a\nopt=b\n", out)
}

func TestReadBuiltin(t *testing.T) {
	var out bytes.Buffer
	r, err := NewRunner(WithStdIO(bytes.NewBufferString("hello world\n"), &out, &out))
	require.NoError(t, err)
	prog, err := syntax.NewParser().Parse(bytes.NewBufferString(`read a b; echo "$a-$b"`), "")
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background(), prog))
	assert.Equal(t, "hello-world\n", out.String())
}

package hermit

import (
	"bytes"
	"context"

	"mvdan.cc/sh/v3/syntax"
)

// pipeline runs each stage in sequence, feeding stage i's captured stdout as
// stage i+1's stdin (spec.md §4.5/§5: pipelines are not concurrent in this
// interpreter). The reported exit status is the last stage's, unless
// `pipefail` is set, in which case it is the rightmost non-zero status.
func (r *Runner) pipeline(ctx context.Context, stages []*syntax.Stmt) {
	if len(stages) == 0 {
		r.exit = 0
		return
	}

	if err := r.Limits.Enter(); err != nil {
		r.fatalErr = err
		return
	}
	defer r.Limits.Leave()

	var in bytes.Buffer
	if r.stdin != nil {
		in.ReadFrom(r.stdin)
	}

	statuses := make([]int, len(stages))
	var fatalErr error

	for i, stage := range stages {
		sub := r.Subshell()
		sub.stdin = bytes.NewReader(in.Bytes())
		var out bytes.Buffer
		sub.stdout = &out

		sub.stmt(ctx, stage)

		statuses[i] = sub.exit
		if sub.fatalErr != nil {
			fatalErr = sub.fatalErr
		}
		in = out

		if i == len(stages)-1 {
			r.exit = sub.exit
		}
	}

	if fatalErr != nil {
		r.fatalErr = fatalErr
	}

	if r.opts[optPipeFail] {
		for i := len(statuses) - 1; i >= 0; i-- {
			if statuses[i] != 0 {
				r.exit = statuses[i]
				break
			}
		}
	}

	r.stdout.Write(in.Bytes())
}

package builtin

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hermit-sh/hermit"
)

// Sleep parses each argument as a duration (bare integers are seconds) and
// waits for it, returning the context's error early if hc.Context is
// cancelled. There is no scheduler to cooperate with since pipelines and
// backgrounding run synchronously (spec.md §5 non-goals).
func Sleep(hc hermit.RunnerContext, args []string) error {
	for _, arg := range args {
		d, err := time.ParseDuration(arg)
		if err != nil {
			i, err := strconv.ParseInt(arg, 0, 0)
			if err != nil {
				fmt.Fprintf(hc.Stderr, "sleep: invalid time interval %q\n", arg)
				return nil
			}
			d = time.Duration(i) * time.Second
		}
		select {
		case <-time.After(d):
		case <-hc.Context.Done():
			return hc.Context.Err()
		}
	}
	return nil
}

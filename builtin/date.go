package builtin

import (
	"io"
	"time"

	"github.com/hermit-sh/hermit"
)

// Date prints the host clock's current UTC time. There is no virtual clock:
// the VFS is hermetic over storage, not over wall-clock time.
func Date(hc hermit.RunnerContext, args []string) error {
	_, err := io.WriteString(hc.Stdout, time.Now().UTC().Format(time.UnixDate)+"\n")
	return err
}

package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchOverlayInvalidatesOnWrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "greeting.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello\n"), 0o644))

	events := make(chan string, 8)
	w, err := WatchOverlay(dir, func(path string) { events <- path })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(target, []byte("updated\n"), 0o644))

	select {
	case path := <-events:
		require.Contains(t, path, "greeting.txt")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fsnotify event")
	}
}

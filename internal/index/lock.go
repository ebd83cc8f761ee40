package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// lockFile is the advisory single-writer lock. It lives next to the
// snapshot dir, not inside it, so snapshot recovery (RemoveAll on the
// dir) never deletes a held lock.
const lockFile = "index.lock"

// acquireLock takes the advisory write lock for the index rooted at
// dir. Returns a release function. Concurrent readers never lock.
func acquireLock(dir string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(filepath.Dir(dir), lockFile)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("index is locked by another ingestion (%s); remove the file if stale", path)
		}
		return nil, fmt.Errorf("acquire index lock: %w", err)
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	_ = f.Close()

	return func() { _ = os.Remove(path) }, nil
}

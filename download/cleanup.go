package download

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CleanStalled removes every partial-download artifact in dir and returns
// the number removed. A missing directory is treated as already clean.
// When notify is non-nil it is called with the path of each removed file.
func CleanStalled(dir string, notify func(path string)) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), TempSuffix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed++
		if notify != nil {
			notify(path)
		}
	}
	return removed, nil
}

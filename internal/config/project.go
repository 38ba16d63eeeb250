package config

import (
	"os"
	"path/filepath"
)

// RootMarkers identify a project root, most specific first.
var RootMarkers = append(append([]string(nil), FileNames...), ProjectDir, "package.json")

// FindRoot walks up from start to the nearest directory that holds one of
// RootMarkers. It returns start itself when no marker is found.
func FindRoot(start string) (string, error) {
	start, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	current := start
	for {
		for _, marker := range RootMarkers {
			if _, err := os.Stat(filepath.Join(current, marker)); err == nil {
				return current, nil
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			return start, nil
		}
		current = parent
	}
}

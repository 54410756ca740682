package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// PathExists checks if the given path exists.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// IsRPMPath reports whether arg names a local package file rather than a
// package name.
func IsRPMPath(arg string) bool {
	if !strings.HasSuffix(arg, ".rpm") {
		return false
	}
	return strings.ContainsRune(arg, os.PathSeparator) || PathExists(arg)
}

// ResolveRPMs turns user supplied RPM paths into absolute paths the
// daemon can open. Every path must exist and be a regular file.
func ResolveRPMs(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		exp, err := ExpandHome(p)
		if err != nil {
			return nil, err
		}
		abs, err := filepath.Abs(exp)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		st, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !st.Mode().IsRegular() {
			return nil, fmt.Errorf("%s: not a regular file", p)
		}
		out = append(out, abs)
	}
	return out, nil
}

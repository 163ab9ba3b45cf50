package transport

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Socket names tried under XDG_RUNTIME_DIR when nothing is configured
var defaultSocketNames = []string{"ei-socket", "eis-0"}

// ResolveSocketPath finds the EIS socket to connect to. An explicit path
// wins, then $LIBEI_SOCKET (relative names resolve under
// $XDG_RUNTIME_DIR), then the well-known names in $XDG_RUNTIME_DIR.
func ResolveSocketPath(explicit string) (string, error) {
	return resolveSocketPath(explicit, os.Getenv)
}

func resolveSocketPath(explicit string, getenv func(string) string) (string, error) {
	runtimeDir := getenv("XDG_RUNTIME_DIR")

	var candidates []string
	if explicit != "" {
		candidates = append(candidates, explicit)
	} else {
		if env := getenv("LIBEI_SOCKET"); env != "" {
			candidates = append(candidates, underRuntimeDir(env, runtimeDir))
		}
		if runtimeDir != "" {
			for _, name := range defaultSocketNames {
				candidates = append(candidates, filepath.Join(runtimeDir, name))
			}
		}
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no EIS socket configured and XDG_RUNTIME_DIR is unset", ErrUnavailable)
	}

	for _, path := range candidates {
		if isSocket(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no EIS socket at %v", ErrUnavailable, candidates)
}

func underRuntimeDir(name, runtimeDir string) string {
	if filepath.IsAbs(name) || runtimeDir == "" {
		return name
	}
	return filepath.Join(runtimeDir, name)
}

func isSocket(path string) bool {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	return st.Mode&unix.S_IFMT == unix.S_IFSOCK
}

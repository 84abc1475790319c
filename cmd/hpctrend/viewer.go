package main

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// viewerCommand returns the program and arguments that open path.
// A configured viewer command wins over the platform default.
func viewerCommand(goos, viewer, path string) (string, []string) {
	if parts := strings.Fields(viewer); len(parts) > 0 {
		return parts[0], append(parts[1:], path)
	}
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "cmd", []string{"/c", "start", "", path}
	default:
		return "xdg-open", []string{path}
	}
}

// openViewer starts the viewer without waiting for it to exit.
func openViewer(viewer, path string) error {
	name, args := viewerCommand(runtime.GOOS, viewer, path)
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	return cmd.Process.Release()
}

package sandbox

import (
	"github.com/mesutfelat/cowork/internal/workspace"
)

// ImageForWorkspace picks the container image matching what the workspace
// contains. A configured override always wins.
func ImageForWorkspace(dir string, config Config) string {
	if config.DockerImage != "" {
		return config.DockerImage
	}

	switch workspace.DetectKind(dir) {
	case workspace.KindGo:
		return "golang:alpine"
	case workspace.KindNode:
		return "node:alpine"
	case workspace.KindPython:
		return "python:alpine"
	case workspace.KindRust:
		return "rust:alpine"
	default:
		return "alpine:latest"
	}
}

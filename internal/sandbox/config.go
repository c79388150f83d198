package sandbox

import (
	"context"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Mode selects how commands are isolated.
type Mode string

const (
	// ModeDocker runs commands in throwaway containers.
	ModeDocker Mode = "docker"
	// ModeHost runs commands directly on the host, no isolation.
	ModeHost Mode = "host"
	// ModeAuto prefers Docker and falls back to the host.
	ModeAuto Mode = "auto"
)

// Config holds sandbox settings, read from the environment once at startup.
type Config struct {
	Mode        Mode
	DockerImage string        // custom image override
	CPU         string        // e.g. "2"
	Memory      string        // e.g. "1g"
	CmdTimeout  time.Duration // default per-command deadline
}

// ConfigFromEnv builds the sandbox configuration from COWORK_* variables.
func ConfigFromEnv() Config {
	mode := Mode(strings.ToLower(os.Getenv("COWORK_SANDBOX_MODE")))
	switch mode {
	case ModeDocker, ModeHost, ModeAuto:
	case "":
		mode = ModeAuto
	default:
		log.Printf("⚠️  unknown COWORK_SANDBOX_MODE %q, using auto", mode)
		mode = ModeAuto
	}

	cmdTimeout := defaultCmdTimeout
	if s := os.Getenv("COWORK_CMD_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			cmdTimeout = d
		} else {
			log.Printf("⚠️  invalid COWORK_CMD_TIMEOUT %q, using %s", s, defaultCmdTimeout)
		}
	}

	return Config{
		Mode:        mode,
		DockerImage: os.Getenv("COWORK_DOCKER_IMAGE"),
		CPU:         envOrDefault("COWORK_DOCKER_CPU", "2"),
		Memory:      envOrDefault("COWORK_DOCKER_MEMORY", "1g"),
		CmdTimeout:  cmdTimeout,
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// DockerAvailable reports whether the Docker daemon answers.
func DockerAvailable(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "docker", "ps")
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}

// NewRunner builds a runner for the configured mode, falling back to the
// host when Docker is requested or preferred but unavailable.
func NewRunner(config Config) Runner {
	ctx := context.Background()

	switch config.Mode {
	case ModeHost:
		log.Printf("⚠️  sandbox: host mode, commands run without isolation")
		return &HostRunner{config: config}

	case ModeDocker, ModeAuto:
		if !DockerAvailable(ctx) {
			log.Printf("⚠️  sandbox: Docker not available, falling back to host execution")
			return &HostRunner{config: config}
		}
		runner, err := NewDockerRunner(config)
		if err != nil {
			log.Printf("⚠️  sandbox: failed to create Docker runner (%v), falling back to host", err)
			return &HostRunner{config: config}
		}
		return runner

	default:
		return &HostRunner{config: config}
	}
}

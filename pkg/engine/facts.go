package engine

import (
	"context"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HostFacts contains discovered information about the local host. Facts are
// informational: they key host resolution and annotate recorded runs, they
// never gate planning.
type HostFacts struct {
	// ID is the unique identifier of this facts snapshot.
	ID string `json:"id"`

	// Hostname is the host name as reported by the kernel.
	Hostname string `json:"hostname"`

	// OS is the operating system (GOOS).
	OS string `json:"os"`

	// Arch is the machine architecture (GOARCH).
	Arch string `json:"arch"`

	// NumCPU is the number of logical CPUs.
	NumCPU int `json:"num_cpu"`

	// KernelVersion is the kernel release string, best effort. Empty when it
	// cannot be determined.
	KernelVersion string `json:"kernel_version,omitempty"`

	// CollectedAt is when the facts were collected.
	CollectedAt time.Time `json:"collected_at"`
}

// LocalCollector collects facts about the machine the process runs on.
// It implements FactsCollector.
type LocalCollector struct {
	logger zerolog.Logger
}

// NewLocalCollector creates a collector for the local host.
func NewLocalCollector(logger zerolog.Logger) *LocalCollector {
	return &LocalCollector{
		logger: logger.With().Str("component", "facts").Logger(),
	}
}

// Collect gathers facts about the local host.
func (c *LocalCollector) Collect(ctx context.Context) (*HostFacts, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewCancelledError("fact collection cancelled", err)
	}

	facts := &HostFacts{
		ID:            uuid.New().String(),
		Hostname:      DefaultHostname(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		NumCPU:        runtime.NumCPU(),
		KernelVersion: kernelVersion(),
		CollectedAt:   time.Now(),
	}

	c.logger.Debug().
		Str("hostname", facts.Hostname).
		Str("os", facts.OS).
		Str("arch", facts.Arch).
		Msg("Collected host facts")

	return facts, nil
}

// DefaultHostname returns the local host name, falling back to "localhost"
// when the kernel will not say. The CLI uses it to pick the hosts/ overlay
// file when --host is not given.
func DefaultHostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	return name
}

// kernelVersion reads the kernel release where the platform exposes it.
func kernelVersion() string {
	if runtime.GOOS != "linux" {
		return ""
	}
	data, err := os.ReadFile("/proc/sys/kernel/osrelease")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

package actuator

import (
	"context"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/host"
)

const unknownVersion = "unknown"

// Info is the body of the /info endpoint.
type Info struct {
	Build  BuildInfo  `json:"build"`
	System SystemInfo `json:"system"`
}

// BuildInfo describes the running binary.
type BuildInfo struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version"`
	Runtime string `json:"runtime"`
	Commit  string `json:"commit,omitempty"`
}

// SystemInfo describes the host and this process instance.
type SystemInfo struct {
	Platform       string `json:"platform"`
	Implementation string `json:"implementation"`
	InstanceID     string `json:"instance_id"`
}

func collectInfo(ctx context.Context, cfg Config) Info {
	build := BuildInfo{
		Name:    cfg.Name,
		Version: cfg.Version,
		Runtime: runtime.Version(),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if build.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			build.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				build.Commit = s.Value
			}
		}
	}
	if build.Version == "" {
		build.Version = unknownVersion
	}

	return Info{
		Build: build,
		System: SystemInfo{
			Platform:       platform(ctx),
			Implementation: runtime.Compiler,
			InstanceID:     uuid.NewString(),
		},
	}
}

// platform renders os-kernel-arch from the host, falling back to GOOS-GOARCH.
func platform(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	fallback := runtime.GOOS + "-" + runtime.GOARCH
	hi, err := host.InfoWithContext(ctx)
	if err != nil || hi.OS == "" {
		return fallback
	}

	parts := []string{hi.OS}
	if hi.KernelVersion != "" {
		parts = append(parts, hi.KernelVersion)
	}
	if hi.KernelArch != "" {
		parts = append(parts, hi.KernelArch)
	} else {
		parts = append(parts, runtime.GOARCH)
	}
	if hi.Platform != "" {
		parts = append(parts, "with", hi.Platform+hi.PlatformVersion)
	}
	return strings.Join(parts, "-")
}

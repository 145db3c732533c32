package health

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

const (
	// DefaultThreshold is the usage percentage at which a resource check goes down.
	DefaultThreshold = 90.0

	// DefaultDiskPath is the filesystem sampled by the disk check.
	DefaultDiskPath = "/"

	// DefaultCPUInterval is the window over which CPU usage is sampled.
	DefaultCPUInterval = 100 * time.Millisecond

	mib = 1024 * 1024
	gib = 1024 * 1024 * 1024
)

// MemoryStats is a virtual memory sample.
type MemoryStats struct {
	UsedPercent float64
	Available   uint64
}

// DiskStats is a filesystem usage sample.
type DiskStats struct {
	UsedPercent float64
	Free        uint64
}

// Sampler reads OS resource usage.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: implementations should honor cancellation/deadlines.
type Sampler interface {
	CPUPercent(ctx context.Context) (float64, error)
	Memory(ctx context.Context) (MemoryStats, error)
	Disk(ctx context.Context, path string) (DiskStats, error)
}

// systemSampler samples the host through gopsutil.
type systemSampler struct {
	cpuInterval time.Duration
}

// NewSystemSampler creates a Sampler reading the local host.
// CPU usage is measured over cpuInterval (default 100ms).
func NewSystemSampler(cpuInterval time.Duration) Sampler {
	if cpuInterval <= 0 {
		cpuInterval = DefaultCPUInterval
	}
	return &systemSampler{cpuInterval: cpuInterval}
}

func (s *systemSampler) CPUPercent(ctx context.Context) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, s.cpuInterval, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("cpu: no samples")
	}
	return percents[0], nil
}

func (s *systemSampler) Memory(ctx context.Context) (MemoryStats, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryStats{}, err
	}
	return MemoryStats{UsedPercent: vm.UsedPercent, Available: vm.Available}, nil
}

func (s *systemSampler) Disk(ctx context.Context, path string) (DiskStats, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return DiskStats{}, err
	}
	return DiskStats{UsedPercent: usage.UsedPercent, Free: usage.Free}, nil
}

// SystemCheckConfig configures the resource health checkers.
type SystemCheckConfig struct {
	// Threshold is the usage percentage (0-100) at or above which the check is down.
	// Default: 90
	Threshold float64

	// Path is the filesystem sampled by the disk checker.
	// Default: "/"
	Path string

	// Sampler reads the resource usage.
	// Default: NewSystemSampler(DefaultCPUInterval)
	Sampler Sampler
}

func (c SystemCheckConfig) withDefaults() SystemCheckConfig {
	if c.Threshold <= 0 || c.Threshold > 100 {
		c.Threshold = DefaultThreshold
	}
	if c.Path == "" {
		c.Path = DefaultDiskPath
	}
	if c.Sampler == nil {
		c.Sampler = NewSystemSampler(DefaultCPUInterval)
	}
	return c
}

// CPUChecker checks CPU usage.
type CPUChecker struct {
	config SystemCheckConfig
}

// NewCPUChecker creates a new CPU health checker.
func NewCPUChecker(config SystemCheckConfig) *CPUChecker {
	return &CPUChecker{config: config.withDefaults()}
}

// Name returns "cpu".
func (c *CPUChecker) Name() string {
	return "cpu"
}

// Check samples CPU usage.
func (c *CPUChecker) Check(ctx context.Context) Result {
	percent, err := c.config.Sampler.CPUPercent(ctx)
	if err != nil {
		return Failed(fmt.Errorf("sample cpu: %w", err))
	}
	return Result{Status: StatusFor(percent < c.config.Threshold)}.WithDetails(map[string]any{
		"cpu_percent": percent,
	})
}

// MemoryChecker checks virtual memory usage.
type MemoryChecker struct {
	config SystemCheckConfig
}

// NewMemoryChecker creates a new memory health checker.
func NewMemoryChecker(config SystemCheckConfig) *MemoryChecker {
	return &MemoryChecker{config: config.withDefaults()}
}

// Name returns "memory".
func (m *MemoryChecker) Name() string {
	return "memory"
}

// Check samples memory usage.
func (m *MemoryChecker) Check(ctx context.Context) Result {
	stats, err := m.config.Sampler.Memory(ctx)
	if err != nil {
		return Failed(fmt.Errorf("sample memory: %w", err))
	}
	return Result{Status: StatusFor(stats.UsedPercent < m.config.Threshold)}.WithDetails(map[string]any{
		"memory_percent":      stats.UsedPercent,
		"memory_available_mb": stats.Available / mib,
	})
}

// DiskChecker checks filesystem usage.
type DiskChecker struct {
	config SystemCheckConfig
}

// NewDiskChecker creates a new disk health checker.
func NewDiskChecker(config SystemCheckConfig) *DiskChecker {
	return &DiskChecker{config: config.withDefaults()}
}

// Name returns "disk".
func (d *DiskChecker) Name() string {
	return "disk"
}

// Check samples usage of the configured path.
func (d *DiskChecker) Check(ctx context.Context) Result {
	stats, err := d.config.Sampler.Disk(ctx, d.config.Path)
	if err != nil {
		return Failed(fmt.Errorf("sample disk %s: %w", d.config.Path, err))
	}
	return Result{Status: StatusFor(stats.UsedPercent < d.config.Threshold)}.WithDetails(map[string]any{
		"disk_percent": stats.UsedPercent,
		"disk_free_gb": stats.Free / gib,
	})
}

// DefaultCheckers returns the default health checks: cpu, disk and memory.
func DefaultCheckers(config SystemCheckConfig) []Checker {
	config = config.withDefaults()
	return []Checker{
		NewCPUChecker(config),
		NewDiskChecker(config),
		NewMemoryChecker(config),
	}
}

// DefaultLivenessCheckers returns the default liveness checks: cpu only.
// Liveness deliberately excludes anything outside the process' own host.
func DefaultLivenessCheckers(config SystemCheckConfig) []Checker {
	return []Checker{NewCPUChecker(config.withDefaults())}
}

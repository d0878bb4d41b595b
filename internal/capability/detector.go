package capability

import (
	"bytes"
	"image"
	"image/png"
	"runtime"
	"sync"
	"time"

	"github.com/resumeforge/resumeforge/pkg/logging"
)

// Capabilities is a read-only snapshot of what the runtime can support.
// Unknown or unsupported features default to the most conservative value.
type Capabilities struct {
	Rasterization      bool      `json:"rasterization"`
	MaxSurfacePixels   int       `json:"max_surface_pixels"`
	WorkerCount        int       `json:"worker_count"`
	MemoryCeilingBytes uint64    `json:"memory_ceiling_bytes"`
	DetectedAt         time.Time `json:"detected_at"`
}

// probe surface side lengths, largest first
var probeSides = []int{8192, 4096, 2048, 1024}

// Detector inspects the runtime once per session. Detection is side-effect
// free from the caller's perspective: probe surfaces are allocated and
// immediately discarded.
type Detector struct {
	logger *logging.Logger

	mu       sync.Mutex
	snapshot *Capabilities
}

// NewDetector creates a new capability detector
func NewDetector(logger *logging.Logger) *Detector {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Detector{logger: logger}
}

// Detect returns the cached capability snapshot, probing the runtime on
// first use. It never fails.
func (d *Detector) Detect() Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.snapshot != nil {
		return *d.snapshot
	}

	snapshot := d.probe()
	d.snapshot = &snapshot
	return snapshot
}

// Invalidate discards the cached snapshot, forcing re-detection on the
// next Detect call. The controller invalidates after a runtime-category
// failure.
func (d *Detector) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snapshot = nil
}

func (d *Detector) probe() Capabilities {
	caps := Capabilities{
		WorkerCount: runtime.NumCPU(),
		DetectedAt:  time.Now(),
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	caps.MemoryCeilingBytes = memStats.Sys

	caps.Rasterization = probeRasterization()
	if caps.Rasterization {
		caps.MaxSurfacePixels = probeMaxSurface(caps.MemoryCeilingBytes)
	}

	d.logger.Info("Runtime capabilities detected",
		"rasterization", caps.Rasterization,
		"max_surface_pixels", caps.MaxSurfacePixels,
		"workers", caps.WorkerCount,
		"memory_ceiling_bytes", caps.MemoryCeilingBytes,
	)

	return caps
}

// probeRasterization allocates a tiny surface and encodes it, confirming
// the raster+encode path is functional
func probeRasterization() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	surface := image.NewRGBA(image.Rect(0, 0, 16, 16))
	var buf bytes.Buffer
	if err := png.Encode(&buf, surface); err != nil {
		return false
	}
	return buf.Len() > 0
}

// probeMaxSurface tries surfaces of decreasing size until one allocates
// safely, bounded so a single surface never claims more than a quarter of
// the estimated memory ceiling
func probeMaxSurface(memoryCeiling uint64) int {
	smallest := probeSides[len(probeSides)-1]

	// Unknown ceiling: take the conservative floor without probing large
	if memoryCeiling == 0 {
		return smallest * smallest
	}

	budget := memoryCeiling / 4
	for _, side := range probeSides {
		required := uint64(side) * uint64(side) * 4
		if required > budget {
			continue
		}
		if tryAllocate(side) {
			return side * side
		}
	}

	return smallest * smallest
}

func tryAllocate(side int) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	surface := image.NewRGBA(image.Rect(0, 0, side, side))
	// Touch a corner so the allocation is real
	surface.Set(side-1, side-1, image.White.C)
	return true
}

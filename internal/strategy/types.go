package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/resumeforge/resumeforge/internal/document"
)

// Strategy identifies one generation approach. Declaration order is the
// preference order: each strategy trades fidelity for robustness.
type Strategy string

const (
	// Primary rasterizes pages in-process and embeds them into the PDF.
	// Highest fidelity, most demanding on the host.
	Primary Strategy = "primary"

	// Secondary delegates rendering to the external render service.
	Secondary Strategy = "secondary"

	// Degraded produces a text-only PDF. Lowest fidelity, always available.
	Degraded Strategy = "degraded"
)

// All returns every strategy in preference order
func All() []Strategy {
	return []Strategy{Primary, Secondary, Degraded}
}

// Valid reports whether s names a known strategy
func (s Strategy) Valid() bool {
	switch s {
	case Primary, Secondary, Degraded:
		return true
	}
	return false
}

// GenerationConfig carries the tunable parameters of one attempt
type GenerationConfig struct {
	Strategy         Strategy            `json:"strategy"`
	PageFormat       document.PageFormat `json:"page_format"`
	ResolutionDPI    int                 `json:"resolution_dpi"`
	CompressionLevel int                 `json:"compression_level"`
	SubsetFonts      bool                `json:"subset_fonts"`
	Timeout          time.Duration       `json:"timeout"`
}

// Key returns the composite identity used to correlate recovery history
// across attempts with equivalent parameters
func (c GenerationConfig) Key() string {
	return fmt.Sprintf("%s/%s/%d", c.Strategy, c.PageFormat, c.ResolutionDPI)
}

// ConservativeConfig derives the config for a fallback attempt: lower
// resolution, stronger compression, no font subsetting.
func ConservativeConfig(prev GenerationConfig, next Strategy, timeout time.Duration) GenerationConfig {
	dpi := prev.ResolutionDPI / 2
	if dpi < 72 {
		dpi = 72
	}

	compression := prev.CompressionLevel + 2
	if compression > 9 {
		compression = 9
	}

	return GenerationConfig{
		Strategy:         next,
		PageFormat:       prev.PageFormat,
		ResolutionDPI:    dpi,
		CompressionLevel: compression,
		SubsetFonts:      false,
		Timeout:          timeout,
	}
}

// Result is a successful generation outcome
type Result struct {
	PDF       []byte        `json:"-"`
	Strategy  Strategy      `json:"strategy"`
	Duration  time.Duration `json:"duration"`
	PageCount int           `json:"page_count"`
	Size      int64         `json:"size"`
}

// Executor runs one strategy. Implementations must respect ctx cancellation
// and return classified errors where the failure cause is known.
type Executor interface {
	Strategy() Strategy
	Execute(ctx context.Context, doc *document.Document, opts document.Options, cfg GenerationConfig) (*Result, error)
}

package document

// QualityTier selects the fidelity/resource tradeoff for an export
type QualityTier string

const (
	QualityLow    QualityTier = "low"
	QualityMedium QualityTier = "medium"
	QualityHigh   QualityTier = "high"
)

// PageFormat is the target paper size
type PageFormat string

const (
	FormatLetter PageFormat = "letter"
	FormatA4     PageFormat = "a4"
)

// Margins is the page margin box in millimeters
type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Metadata holds the PDF document information fields
type Metadata struct {
	Title    string   `json:"title,omitempty"`
	Author   string   `json:"author,omitempty"`
	Subject  string   `json:"subject,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// Options configures a generation request. Omitted or unrecognized fields
// fall back to the documented defaults.
type Options struct {
	FilenameHint string      `json:"filename_hint,omitempty"`
	QualityTier  QualityTier `json:"quality_tier,omitempty"`
	PageFormat   PageFormat  `json:"page_format,omitempty"`
	Margins      *Margins    `json:"margins,omitempty"`
	Metadata     Metadata    `json:"metadata"`
}

// DefaultMargins returns the default margin box
func DefaultMargins() Margins {
	return Margins{Top: 20, Right: 18, Bottom: 20, Left: 18}
}

// DefaultOptions returns the documented option defaults
func DefaultOptions() Options {
	margins := DefaultMargins()
	return Options{
		FilenameHint: "resume",
		QualityTier:  QualityMedium,
		PageFormat:   FormatA4,
		Margins:      &margins,
	}
}

// Normalize fills omitted fields with defaults and coerces unrecognized
// enum values back to their defaults. Returns a new value; the input is
// not modified.
func (o Options) Normalize() Options {
	defaults := DefaultOptions()

	if o.FilenameHint == "" {
		o.FilenameHint = defaults.FilenameHint
	}

	switch o.QualityTier {
	case QualityLow, QualityMedium, QualityHigh:
	default:
		o.QualityTier = defaults.QualityTier
	}

	switch o.PageFormat {
	case FormatLetter, FormatA4:
	default:
		o.PageFormat = defaults.PageFormat
	}

	if o.Margins == nil {
		margins := DefaultMargins()
		o.Margins = &margins
	} else {
		margins := *o.Margins
		o.Margins = &margins
	}

	return o
}

// DPI maps a quality tier to a raster resolution
func (q QualityTier) DPI() int {
	switch q {
	case QualityLow:
		return 96
	case QualityHigh:
		return 300
	default:
		return 150
	}
}

// Dimensions returns the page size in millimeters
func (f PageFormat) Dimensions() (width, height float64) {
	if f == FormatLetter {
		return 215.9, 279.4
	}
	return 210, 297
}

// FpdfName returns the gofpdf size identifier for the format
func (f PageFormat) FpdfName() string {
	if f == FormatLetter {
		return "Letter"
	}
	return "A4"
}

package strategy

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/resumeforge/resumeforge/internal/document"
	"github.com/resumeforge/resumeforge/pkg/errors"
	"github.com/resumeforge/resumeforge/pkg/logging"
)

// DegradedExecutor produces a text-only PDF with the built-in fonts. Images
// are dropped and tables flattened to plain lines. It has no host or network
// requirements and serves as the final fallback.
type DegradedExecutor struct {
	logger *logging.Logger
}

// NewDegradedExecutor creates the text-only executor
func NewDegradedExecutor(logger *logging.Logger) *DegradedExecutor {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &DegradedExecutor{logger: logger}
}

func (e *DegradedExecutor) Strategy() Strategy {
	return Degraded
}

func (e *DegradedExecutor) Execute(ctx context.Context, doc *document.Document, opts document.Options, cfg GenerationConfig) (*Result, error) {
	start := time.Now()

	flattened := document.Adjust(doc, document.Constraints{
		DropImages:    true,
		FlattenTables: true,
	})

	pdf := gofpdf.New("P", "mm", cfg.PageFormat.FpdfName(), "")
	applyMetadata(pdf, flattened, opts)
	pdf.SetCompression(cfg.CompressionLevel > 0)

	margins := opts.Margins
	if margins == nil {
		m := document.DefaultMargins()
		margins = &m
	}
	pdf.SetMargins(margins.Left, margins.Top, margins.Right)
	pdf.SetAutoPageBreak(true, margins.Bottom)
	pdf.AddPage()

	if flattened.Title != "" {
		pdf.SetFont("Helvetica", "B", 18)
		pdf.MultiCell(0, 9, flattened.Title, "", "L", false)
		pdf.Ln(4)
	}

	for _, section := range flattened.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.writeSection(pdf, section)
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, errors.NewGenerationError("text-only pdf assembly failed").WithCause(err)
	}

	return &Result{
		PDF:       out.Bytes(),
		Strategy:  Degraded,
		Duration:  time.Since(start),
		PageCount: pdf.PageCount(),
		Size:      int64(out.Len()),
	}, nil
}

func (e *DegradedExecutor) writeSection(pdf *gofpdf.Fpdf, section document.Section) {
	if section.Title != "" {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.MultiCell(0, 7, strings.ToUpper(section.Title), "", "L", false)
		pdf.Ln(1)
	}

	for _, el := range section.Elements {
		switch el.Kind {
		case document.ElementHeading:
			size := 13.0 - float64(el.Level)
			if size < 10 {
				size = 10
			}
			pdf.SetFont("Helvetica", "B", size)
			pdf.MultiCell(0, 6, el.Text, "", "L", false)
		case document.ElementText:
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, el.Text, "", "L", false)
		case document.ElementDivider:
			pdf.Ln(2)
			x, y := pdf.GetXY()
			pageW, _ := pdf.GetPageSize()
			_, right := marginsLR(pdf)
			pdf.Line(x, y, pageW-right, y)
			pdf.Ln(2)
		}
		// Images never survive flattening; tables arrive as text lines.
	}
	pdf.Ln(3)
}

func marginsLR(pdf *gofpdf.Fpdf) (left, right float64) {
	left, _, right, _ = pdf.GetMargins()
	return left, right
}

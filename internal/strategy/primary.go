package strategy

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/resumeforge/resumeforge/internal/document"
	"github.com/resumeforge/resumeforge/internal/resources"
	"github.com/resumeforge/resumeforge/pkg/errors"
	"github.com/resumeforge/resumeforge/pkg/logging"
)

const mmPerInch = 25.4

// PrimaryExecutor rasterizes pages in-process and embeds them into the PDF.
// It produces the highest-fidelity output but requires a working raster
// surface on the host.
type PrimaryExecutor struct {
	cache            *resources.Cache
	maxSurfacePixels int64
	logger           *logging.Logger
}

// NewPrimaryExecutor creates the in-process rasterizing executor.
// maxSurfacePixels caps the page surface; zero means no cap.
func NewPrimaryExecutor(cache *resources.Cache, maxSurfacePixels int64, logger *logging.Logger) *PrimaryExecutor {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &PrimaryExecutor{
		cache:            cache,
		maxSurfacePixels: maxSurfacePixels,
		logger:           logger,
	}
}

func (e *PrimaryExecutor) Strategy() Strategy {
	return Primary
}

func (e *PrimaryExecutor) Execute(ctx context.Context, doc *document.Document, opts document.Options, cfg GenerationConfig) (*Result, error) {
	start := time.Now()

	dpi := cfg.ResolutionDPI
	if dpi <= 0 {
		dpi = opts.QualityTier.DPI()
	}

	widthMM, heightMM := cfg.PageFormat.Dimensions()
	pageW := int(widthMM / mmPerInch * float64(dpi))
	pageH := int(heightMM / mmPerInch * float64(dpi))

	if e.maxSurfacePixels > 0 && int64(pageW)*int64(pageH) > e.maxSurfacePixels {
		return nil, errors.NewRuntimeError(
			fmt.Sprintf("page surface %dx%d exceeds raster capability", pageW, pageH)).
			WithContext("dpi", fmt.Sprintf("%d", dpi))
	}

	pages, err := e.rasterize(ctx, doc, opts, pageW, pageH, dpi)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", cfg.PageFormat.FpdfName(), "")
	applyMetadata(pdf, doc, opts)
	pdf.SetCompression(cfg.CompressionLevel > 0)

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, page); err != nil {
			return nil, errors.NewRuntimeError("failed to encode rasterized page").WithCause(err)
		}

		name := fmt.Sprintf("page-%d", i)
		pdf.AddPage()
		pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, &buf)
		pdf.ImageOptions(name, 0, 0, widthMM, heightMM, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, errors.NewGenerationError("pdf assembly failed").WithCause(err)
	}

	return &Result{
		PDF:       out.Bytes(),
		Strategy:  Primary,
		Duration:  time.Since(start),
		PageCount: len(pages),
		Size:      int64(out.Len()),
	}, nil
}

// rasterize lays the document out onto fixed-size page images
func (e *PrimaryExecutor) rasterize(ctx context.Context, doc *document.Document, opts document.Options, pageW, pageH, dpi int) ([]*image.RGBA, error) {
	face, err := e.resolveFace(ctx, doc.FontFamilies)
	if err != nil {
		return nil, err
	}

	margins := opts.Margins
	if margins == nil {
		m := document.DefaultMargins()
		margins = &m
	}
	marginLeft := int(margins.Left / mmPerInch * float64(dpi))
	marginTop := int(margins.Top / mmPerInch * float64(dpi))
	marginRight := int(margins.Right / mmPerInch * float64(dpi))
	marginBottom := int(margins.Bottom / mmPerInch * float64(dpi))

	usableW := pageW - marginLeft - marginRight
	usableH := pageH - marginTop - marginBottom
	if usableW <= 0 || usableH <= 0 {
		return nil, errors.NewValidationError("margins leave no printable area")
	}

	lineHeight := face.Metrics().Height.Ceil() + 4
	charWidth := face.Metrics().XHeight.Ceil()
	if charWidth <= 0 {
		charWidth = 7
	}
	charsPerLine := usableW / charWidth
	if charsPerLine < 8 {
		charsPerLine = 8
	}

	layout := newPageLayout(pageW, pageH, marginLeft, marginTop, usableH, lineHeight, face)

	if doc.Title != "" {
		layout.writeLines(wrapText(strings.ToUpper(doc.Title), charsPerLine))
		layout.skip(1)
	}

	for _, section := range doc.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if section.Title != "" {
			layout.writeLines(wrapText(strings.ToUpper(section.Title), charsPerLine))
		}

		for _, el := range section.Elements {
			switch el.Kind {
			case document.ElementHeading, document.ElementText:
				layout.writeLines(wrapText(el.Text, charsPerLine))
			case document.ElementTable:
				for _, row := range el.Rows {
					layout.writeLines(wrapText(strings.Join(row, "  "), charsPerLine))
				}
			case document.ElementDivider:
				layout.drawDivider(usableW)
			case document.ElementImage:
				img, err := e.decodeImage(ctx, el)
				if err != nil {
					return nil, err
				}
				layout.drawImage(img, usableW)
			}
		}
		layout.skip(1)
	}

	return layout.pages(), nil
}

// resolveFace returns the raster font face for the first available family,
// falling back to the built-in face. Faces are cached by family name.
func (e *PrimaryExecutor) resolveFace(ctx context.Context, families []string) (font.Face, error) {
	key := "builtin"
	if len(families) > 0 {
		key = strings.ToLower(families[0])
	}

	if e.cache == nil {
		return basicfont.Face7x13, nil
	}

	value, err := e.cache.GetOrCompute(ctx, resources.PartitionFonts, key, func(context.Context) (interface{}, error) {
		// Only the built-in face ships with the binary; named families
		// resolve to it until an embedded font set is added.
		return basicfont.Face7x13, nil
	})
	if err != nil {
		return nil, errors.NewRuntimeError("font face resolution failed").WithCause(err)
	}

	face, ok := value.(font.Face)
	if !ok {
		return nil, errors.NewRuntimeError("cached font entry has unexpected type")
	}
	return face, nil
}

// decodeImage decodes an inline image payload, caching the decoded form by
// its stable reference
func (e *PrimaryExecutor) decodeImage(ctx context.Context, el document.Element) (image.Image, error) {
	decode := func(context.Context) (interface{}, error) {
		img, _, err := image.Decode(bytes.NewReader(el.ImageData))
		if err != nil {
			return nil, errors.NewContentError("malformed image payload").
				WithCause(err).
				WithContext("image_ref", el.ImageRef)
		}
		return img, nil
	}

	if e.cache == nil || el.ImageRef == "" {
		value, err := decode(ctx)
		if err != nil {
			return nil, err
		}
		return value.(image.Image), nil
	}

	value, err := e.cache.GetOrCompute(ctx, resources.PartitionImages, el.ImageRef, decode)
	if err != nil {
		return nil, err
	}

	img, ok := value.(image.Image)
	if !ok {
		return nil, errors.NewRuntimeError("cached image entry has unexpected type")
	}
	return img, nil
}

// pageLayout accumulates content onto page images, starting a new page when
// the current one runs out of vertical space
type pageLayout struct {
	pageW, pageH    int
	marginLeft, top int
	usableH         int
	lineHeight      int
	face            font.Face
	done            []*image.RGBA
	current         *image.RGBA
	cursorY         int
}

func newPageLayout(pageW, pageH, marginLeft, marginTop, usableH, lineHeight int, face font.Face) *pageLayout {
	l := &pageLayout{
		pageW:      pageW,
		pageH:      pageH,
		marginLeft: marginLeft,
		top:        marginTop,
		usableH:    usableH,
		lineHeight: lineHeight,
		face:       face,
	}
	l.newPage()
	return l
}

func (l *pageLayout) newPage() {
	page := image.NewRGBA(image.Rect(0, 0, l.pageW, l.pageH))
	draw.Draw(page, page.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	l.current = page
	l.cursorY = l.top
}

func (l *pageLayout) ensure(height int) {
	if l.cursorY+height > l.top+l.usableH {
		l.done = append(l.done, l.current)
		l.newPage()
	}
}

func (l *pageLayout) writeLines(lines []string) {
	for _, line := range lines {
		l.ensure(l.lineHeight)
		drawer := font.Drawer{
			Dst:  l.current,
			Src:  image.NewUniform(color.Black),
			Face: l.face,
			Dot:  fixed.P(l.marginLeft, l.cursorY+l.lineHeight-2),
		}
		drawer.DrawString(line)
		l.cursorY += l.lineHeight
	}
}

func (l *pageLayout) skip(lines int) {
	l.cursorY += lines * l.lineHeight
}

func (l *pageLayout) drawDivider(width int) {
	l.ensure(l.lineHeight)
	y := l.cursorY + l.lineHeight/2
	for x := l.marginLeft; x < l.marginLeft+width; x++ {
		l.current.Set(x, y, color.Gray{Y: 0x80})
	}
	l.cursorY += l.lineHeight
}

func (l *pageLayout) drawImage(img image.Image, maxWidth int) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return
	}

	targetW := bounds.Dx()
	if targetW > maxWidth {
		targetW = maxWidth
	}
	targetH := bounds.Dy() * targetW / bounds.Dx()
	if targetH > l.usableH {
		targetH = l.usableH
		targetW = bounds.Dx() * targetH / bounds.Dy()
	}

	l.ensure(targetH)
	dst := image.Rect(l.marginLeft, l.cursorY, l.marginLeft+targetW, l.cursorY+targetH)
	draw.ApproxBiLinear.Scale(l.current, dst, img, bounds, draw.Over, nil)
	l.cursorY += targetH + l.lineHeight
}

func (l *pageLayout) pages() []*image.RGBA {
	return append(l.done, l.current)
}

// wrapText breaks text into lines of at most width characters, splitting on
// word boundaries where possible
func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		line := ""
		for _, word := range words {
			for len(word) > width {
				if line != "" {
					lines = append(lines, line)
					line = ""
				}
				lines = append(lines, word[:width])
				word = word[width:]
			}
			switch {
			case line == "":
				line = word
			case len(line)+1+len(word) <= width:
				line += " " + word
			default:
				lines = append(lines, line)
				line = word
			}
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// applyMetadata writes the PDF document information dictionary
func applyMetadata(pdf *gofpdf.Fpdf, doc *document.Document, opts document.Options) {
	title := opts.Metadata.Title
	if title == "" {
		title = doc.Title
	}
	if title != "" {
		pdf.SetTitle(title, true)
	}
	if opts.Metadata.Author != "" {
		pdf.SetAuthor(opts.Metadata.Author, true)
	}
	if opts.Metadata.Subject != "" {
		pdf.SetSubject(opts.Metadata.Subject, true)
	}
	if len(opts.Metadata.Keywords) > 0 {
		pdf.SetKeywords(strings.Join(opts.Metadata.Keywords, ", "), true)
	}
	pdf.SetCreator("resumeforge", true)
}

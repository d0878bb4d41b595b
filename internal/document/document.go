package document

// ElementKind identifies the type of a document element
type ElementKind string

const (
	ElementHeading ElementKind = "heading"
	ElementText    ElementKind = "text"
	ElementImage   ElementKind = "image"
	ElementTable   ElementKind = "table"
	ElementDivider ElementKind = "divider"
)

// Element is a single renderable unit within a section
type Element struct {
	Kind  ElementKind `json:"kind"`
	Text  string      `json:"text,omitempty"`
	Level int         `json:"level,omitempty"`
	// ImageRef is a stable identity for the image source, used as the
	// cache key for its rasterized form
	ImageRef  string     `json:"image_ref,omitempty"`
	ImageData []byte     `json:"image_data,omitempty"`
	Rows      [][]string `json:"rows,omitempty"`
}

// Section groups elements under an optional title (e.g. Experience, Education)
type Section struct {
	Title    string    `json:"title,omitempty"`
	Elements []Element `json:"elements"`
}

// Document is the structured CV record handed to the generation pipeline.
// It is treated as immutable: per-attempt adjustments operate on derived
// copies, never on the caller's value.
type Document struct {
	Title        string    `json:"title,omitempty"`
	FontFamilies []string  `json:"font_families,omitempty"`
	Sections     []Section `json:"sections"`
}

// Fingerprint summarizes document complexity for monitoring
type Fingerprint struct {
	ElementCount   int   `json:"element_count"`
	ImageCount     int   `json:"image_count"`
	EstimatedBytes int64 `json:"estimated_bytes"`
}

// ComputeFingerprint derives the complexity fingerprint of a document
func ComputeFingerprint(doc *Document) Fingerprint {
	fp := Fingerprint{}
	for _, section := range doc.Sections {
		fp.EstimatedBytes += int64(len(section.Title))
		for _, el := range section.Elements {
			fp.ElementCount++
			fp.EstimatedBytes += int64(len(el.Text)) + int64(len(el.ImageData))
			if el.Kind == ElementImage {
				fp.ImageCount++
			}
			for _, row := range el.Rows {
				for _, cell := range row {
					fp.EstimatedBytes += int64(len(cell))
				}
			}
		}
	}
	return fp
}

// Constraints bound a derived document copy for a more conservative attempt
type Constraints struct {
	// DropImages removes image elements entirely (degraded rendering)
	DropImages bool
	// MaxImageBytes truncates oversized inline image payloads to force
	// the strategy to re-rasterize at lower resolution
	MaxImageBytes int64
	// FlattenTables converts table rows into plain text lines
	FlattenTables bool
}

// Adjust returns a derived copy of the document satisfying the constraints.
// The input document is never mutated.
func Adjust(doc *Document, constraints Constraints) *Document {
	adjusted := &Document{
		Title:        doc.Title,
		FontFamilies: append([]string(nil), doc.FontFamilies...),
		Sections:     make([]Section, 0, len(doc.Sections)),
	}

	for _, section := range doc.Sections {
		out := Section{Title: section.Title, Elements: make([]Element, 0, len(section.Elements))}
		for _, el := range section.Elements {
			switch el.Kind {
			case ElementImage:
				if constraints.DropImages {
					continue
				}
				copied := el
				if constraints.MaxImageBytes > 0 && int64(len(el.ImageData)) > constraints.MaxImageBytes {
					copied.ImageData = append([]byte(nil), el.ImageData[:constraints.MaxImageBytes]...)
				} else {
					copied.ImageData = append([]byte(nil), el.ImageData...)
				}
				out.Elements = append(out.Elements, copied)
			case ElementTable:
				if constraints.FlattenTables {
					for _, row := range el.Rows {
						out.Elements = append(out.Elements, Element{
							Kind: ElementText,
							Text: joinRow(row),
						})
					}
					continue
				}
				copied := el
				copied.Rows = copyRows(el.Rows)
				out.Elements = append(out.Elements, copied)
			default:
				out.Elements = append(out.Elements, el)
			}
		}
		adjusted.Sections = append(adjusted.Sections, out)
	}

	return adjusted
}

func joinRow(row []string) string {
	result := ""
	for i, cell := range row {
		if i > 0 {
			result += "  "
		}
		result += cell
	}
	return result
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *Document {
	return &Document{
		Title:        "Jane Doe — CV",
		FontFamilies: []string{"Helvetica"},
		Sections: []Section{
			{
				Title: "Experience",
				Elements: []Element{
					{Kind: ElementHeading, Text: "Senior Engineer", Level: 2},
					{Kind: ElementText, Text: "Built things."},
					{Kind: ElementImage, ImageRef: "avatar", ImageData: make([]byte, 1024)},
					{Kind: ElementTable, Rows: [][]string{{"2020", "Acme"}, {"2023", "Globex"}}},
				},
			},
			{
				Title: "Education",
				Elements: []Element{
					{Kind: ElementText, Text: "BSc Computer Science"},
				},
			},
		},
	}
}

func TestComputeFingerprint(t *testing.T) {
	doc := sampleDocument()
	fp := ComputeFingerprint(doc)

	assert.Equal(t, 5, fp.ElementCount)
	assert.Equal(t, 1, fp.ImageCount)
	assert.Greater(t, fp.EstimatedBytes, int64(1024))
}

func TestAdjust_DropImages(t *testing.T) {
	doc := sampleDocument()
	adjusted := Adjust(doc, Constraints{DropImages: true})

	assert.Equal(t, 0, ComputeFingerprint(adjusted).ImageCount)
	// Original untouched
	assert.Equal(t, 1, ComputeFingerprint(doc).ImageCount)
}

func TestAdjust_FlattenTables(t *testing.T) {
	doc := sampleDocument()
	adjusted := Adjust(doc, Constraints{FlattenTables: true})

	for _, section := range adjusted.Sections {
		for _, el := range section.Elements {
			assert.NotEqual(t, ElementTable, el.Kind)
		}
	}
	assert.Equal(t, "2020  Acme", adjusted.Sections[0].Elements[3].Text)
}

func TestAdjust_MaxImageBytes(t *testing.T) {
	doc := sampleDocument()
	adjusted := Adjust(doc, Constraints{MaxImageBytes: 100})

	img := adjusted.Sections[0].Elements[2]
	require.Equal(t, ElementImage, img.Kind)
	assert.Len(t, img.ImageData, 100)
	assert.Len(t, doc.Sections[0].Elements[2].ImageData, 1024)
}

func TestAdjust_DoesNotShareBackingArrays(t *testing.T) {
	doc := sampleDocument()
	adjusted := Adjust(doc, Constraints{})

	adjusted.Sections[0].Elements[3].Rows[0][0] = "mutated"
	assert.Equal(t, "2020", doc.Sections[0].Elements[3].Rows[0][0])
}

func TestOptionsNormalize_Defaults(t *testing.T) {
	opts := Options{}.Normalize()

	assert.Equal(t, "resume", opts.FilenameHint)
	assert.Equal(t, QualityMedium, opts.QualityTier)
	assert.Equal(t, FormatA4, opts.PageFormat)
	require.NotNil(t, opts.Margins)
	assert.Equal(t, DefaultMargins(), *opts.Margins)
}

func TestOptionsNormalize_UnrecognizedValues(t *testing.T) {
	opts := Options{QualityTier: "ultra", PageFormat: "a3"}.Normalize()

	assert.Equal(t, QualityMedium, opts.QualityTier)
	assert.Equal(t, FormatA4, opts.PageFormat)
}

func TestOptionsNormalize_CopiesMargins(t *testing.T) {
	margins := Margins{Top: 5, Right: 5, Bottom: 5, Left: 5}
	opts := Options{Margins: &margins}.Normalize()

	opts.Margins.Top = 99
	assert.Equal(t, float64(5), margins.Top)
}

func TestQualityTierDPI(t *testing.T) {
	assert.Equal(t, 96, QualityLow.DPI())
	assert.Equal(t, 150, QualityMedium.DPI())
	assert.Equal(t, 300, QualityHigh.DPI())
	assert.Equal(t, 150, QualityTier("bogus").DPI())
}

func TestPageFormatDimensions(t *testing.T) {
	w, h := FormatA4.Dimensions()
	assert.Equal(t, 210.0, w)
	assert.Equal(t, 297.0, h)

	w, h = FormatLetter.Dimensions()
	assert.Equal(t, 215.9, w)
	assert.Equal(t, 279.4, h)
}

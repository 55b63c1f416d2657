package certificates

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/go-pdf/fpdf"
)

// Page geometry in millimeters, landscape A4.
const (
	outerBorderInset = 8.0
	innerBorderInset = 11.0
	titleBaseline    = 30.0
	titleGap         = 14.0
	emblemMaxWidth   = 40.0
	emblemMaxHeight  = 30.0
	blockGap         = 6.0
	paragraphMargin  = 30.0
	lineHeight       = 7.0
	nameGap          = 13.0
	signatureGap     = 20.0
	signatureHalf    = 40.0
	footerGap        = 16.0
)

// Composer lays certificate content out onto a single landscape page. The
// clock supplies the issuance date printed in the footer.
type Composer struct {
	clock func() time.Time
}

// NewComposer constructs a Composer. A nil clock defaults to time.Now.
func NewComposer(clock func() time.Time) *Composer {
	if clock == nil {
		clock = time.Now
	}
	return &Composer{clock: clock}
}

// Compose renders the certificate as one landscape A4 PDF page. The emblem is
// optional; bytes that do not decode as an image collapse the emblem block to
// zero height instead of failing the call. Any other rendering failure is
// fatal.
func (c *Composer) Compose(data CertificateData, emblem []byte) (RenderedDocument, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	translate := pdf.UnicodeTranslatorFromDescriptor("")
	pageWidth, pageHeight := pdf.GetPageSize()

	pdf.SetLineWidth(1.2)
	pdf.Rect(outerBorderInset, outerBorderInset, pageWidth-2*outerBorderInset, pageHeight-2*outerBorderInset, "D")
	pdf.SetLineWidth(0.3)
	pdf.Rect(innerBorderInset, innerBorderInset, pageWidth-2*innerBorderInset, pageHeight-2*innerBorderInset, "D")

	// Blocks below the title flow from a vertical cursor: each block starts
	// where the previous one ended plus a gap, because the emblem height and
	// the paragraph line count both vary.
	cursor := titleBaseline
	pdf.SetFont("Helvetica", "B", 28)
	centerText(pdf, translate(certificateTitle), cursor)
	cursor += titleGap

	cursor = c.placeEmblem(pdf, emblem, pageWidth, cursor)

	pdf.SetFont("Helvetica", "", 14)
	centerText(pdf, translate(leadInPhrase), cursor)
	cursor += blockGap + lineHeight

	pdf.SetFont("Helvetica", "B", 22)
	centerText(pdf, translate(data.ParticipantName), cursor)
	cursor += nameGap

	pdf.SetFont("Helvetica", "", 13)
	paragraph := translate(roleParagraph(data.ParticipantRole, data.EventName, data.DurationHours))
	usableWidth := pageWidth - 2*paragraphMargin
	for _, line := range pdf.SplitText(paragraph, usableWidth) {
		centerText(pdf, line, cursor)
		cursor += lineHeight
	}
	cursor += blockGap

	centerText(pdf, translate(completionSentence(data.EventDate, data.EventLocation)), cursor)
	cursor += signatureGap

	pdf.SetLineWidth(0.3)
	pdf.Line(pageWidth/2-signatureHalf, cursor, pageWidth/2+signatureHalf, cursor)
	pdf.SetFont("Helvetica", "", 10)
	centerText(pdf, translate(signatureCaption), cursor+5)
	cursor += footerGap

	pdf.SetFont("Helvetica", "", 9)
	centerText(pdf, translate(footerLine(data.ID, c.clock())), cursor)
	pdf.SetFont("Helvetica", "I", 8)
	centerText(pdf, translate(validationNote), cursor+5)

	var buffer bytes.Buffer
	if err := pdf.Output(&buffer); err != nil {
		return nil, err
	}
	return RenderedDocument(buffer.Bytes()), nil
}

// placeEmblem draws the emblem centered at the cursor and returns the new
// cursor position. Absent or undecodable emblems contribute zero height.
func (c *Composer) placeEmblem(pdf *fpdf.Fpdf, emblem []byte, pageWidth, cursor float64) float64 {
	if len(emblem) == 0 {
		return cursor
	}
	config, format, err := image.DecodeConfig(bytes.NewReader(emblem))
	if err != nil {
		return cursor
	}
	width, height := fitEmblem(float64(config.Width), float64(config.Height))
	options := fpdf.ImageOptions{ImageType: format}
	pdf.RegisterImageOptionsReader("emblem", options, bytes.NewReader(emblem))
	if pdf.Err() {
		// The stdlib probe accepted the bytes but the PDF engine did not;
		// treat it like any other decode failure and drop the emblem.
		pdf.ClearError()
		return cursor
	}
	pdf.ImageOptions("emblem", (pageWidth-width)/2, cursor, width, height, false, options, 0, "")
	return cursor + height + blockGap
}

// fitEmblem shrinks emblem dimensions into the bounding box preserving aspect
// ratio: width-constrain first, then height-constrain the result.
func fitEmblem(width, height float64) (float64, float64) {
	if width > emblemMaxWidth {
		height = height * emblemMaxWidth / width
		width = emblemMaxWidth
	}
	if height > emblemMaxHeight {
		width = width * emblemMaxHeight / height
		height = emblemMaxHeight
	}
	return width, height
}

func centerText(pdf *fpdf.Fpdf, text string, baseline float64) {
	pageWidth, _ := pdf.GetPageSize()
	pdf.Text((pageWidth-pdf.GetStringWidth(text))/2, baseline, text)
}

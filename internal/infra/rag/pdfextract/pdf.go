// Package pdfextract reads ordered page text and embedded images from PDF
// bytes using github.com/ledongthuc/pdf.
package pdfextract

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/yanqian/ai-helloworld/internal/domain/rag"
)

// Extractor implements rag.PDFExtractor against in-memory PDF bytes.
type Extractor struct {
	logger *slog.Logger
}

// New constructs an Extractor.
func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger.With("component", "rag.pdfextract")}
}

// Extract reads every page of a PDF in order, returning each page's plain
// text and any embedded raster images it can decode. Pages or images that
// fail to extract are skipped, not fatal.
func (e *Extractor) Extract(data []byte) (rag.PDFDocument, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return rag.PDFDocument{}, fmt.Errorf("pdfextract: open: %w", err)
	}

	pageCount := reader.NumPage()
	doc := rag.PDFDocument{PageCount: pageCount, Pages: make([]rag.PDFPage, 0, pageCount)}

	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			doc.Pages = append(doc.Pages, rag.PDFPage{})
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("page text extraction failed, skipping text", "page", i, "err", err)
			text = ""
		}

		doc.Pages = append(doc.Pages, rag.PDFPage{
			Text:   text,
			Images: e.extractImages(page, i),
		})
	}

	return doc, nil
}

func (e *Extractor) extractImages(page pdf.Page, pageNum int) []rag.PDFImage {
	resources := page.Resources()
	if resources.IsNull() {
		return nil
	}
	xobjects := resources.Key("XObject")
	if xobjects.IsNull() {
		return nil
	}

	var images []rag.PDFImage
	for _, name := range xobjects.Keys() {
		xobj := xobjects.Key(name)
		if xobj.Key("Subtype").Name() != "Image" {
			continue
		}
		if xobj.Key("ImageMask").Bool() {
			continue
		}

		width := int(xobj.Key("Width").Int64())
		height := int(xobj.Key("Height").Int64())
		if width <= 0 || height <= 0 {
			continue
		}

		data, format, err := e.decodeImage(xobj, width, height, pageNum, name)
		if err != nil {
			e.logger.Warn("failed to decode embedded image, skipping", "page", pageNum, "name", name, "err", err)
			continue
		}
		images = append(images, rag.PDFImage{Bytes: data, Format: format})
	}
	return images
}

// decodeImage re-encodes an embedded image's pixel stream as PNG. It only
// handles already-decompressed colour spaces (FlateDecode/raw DeviceRGB and
// DeviceGray); other filters (DCTDecode JPEGs, JPXDecode, CCITT) are left to
// a panic-recovery guard and reported as unsupported, since the underlying
// reader's filter chain is not guaranteed not to panic on them.
func (e *Extractor) decodeImage(xobj pdf.Value, width, height, pageNum int, name string) (data []byte, format string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic decoding stream: %v", r)
		}
	}()

	rc := xobj.Reader()
	defer rc.Close()

	buf := new(bytes.Buffer)
	if _, readErr := buf.ReadFrom(rc); readErr != nil {
		return nil, "", fmt.Errorf("read stream: %w", readErr)
	}
	raw := buf.Bytes()

	colorSpace := xobj.Key("ColorSpace").Name()

	var img image.Image
	switch colorSpace {
	case "DeviceGray":
		expected := width * height
		if len(raw) < expected {
			return nil, "", fmt.Errorf("short gray stream: got %d want %d", len(raw), expected)
		}
		gray := image.NewGray(image.Rect(0, 0, width, height))
		copy(gray.Pix, raw[:expected])
		img = gray
	default:
		expected := width * height * 3
		if len(raw) < expected {
			return nil, "", fmt.Errorf("short rgb stream: got %d want %d", len(raw), expected)
		}
		rgba := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				o := (y*width + x) * 3
				rgba.SetRGBA(x, y, color.RGBA{R: raw[o], G: raw[o+1], B: raw[o+2], A: 255})
			}
		}
		img = rgba
	}

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), "png", nil
}

var _ rag.PDFExtractor = (*Extractor)(nil)

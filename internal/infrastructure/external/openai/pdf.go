package openai

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// pdfToImages rasterizes PDF pages to JPEG. go-fitz wants a file path, so
// the document bytes go through a temp file.
func (e *Extractor) pdfToImages(data []byte, maxPages int) ([][]byte, error) {
	tmpFile, err := os.CreateTemp("", "ledgerbook_doc_*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	tmpFile.Close()

	doc, err := fitz.New(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount > maxPages {
		pageCount = maxPages
	}

	var images [][]byte
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		img, err := doc.Image(pageNum)
		if err != nil {
			e.logger.Warn("Failed to rasterize PDF page",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			e.logger.Warn("Failed to encode page to JPEG",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		images = append(images, buf.Bytes())
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("no pages extracted from PDF")
	}
	return images, nil
}

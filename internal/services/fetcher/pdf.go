package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
)

// pdfExtractor pulls text out of PDF responses so they can flow through the
// pipeline like any other page content.
type pdfExtractor struct {
	logger arbor.ILogger
}

func newPDFExtractor(logger arbor.ILogger) *pdfExtractor {
	return &pdfExtractor{logger: logger}
}

// ExtractText writes the PDF to a temp file (pdfcpu works on paths),
// extracts per-page content, and joins the pages in order.
func (e *pdfExtractor) ExtractText(ctx context.Context, pdfContent []byte) (string, error) {
	tempFile, err := os.CreateTemp("", "indago-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp PDF file: %w", err)
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	if _, err := tempFile.Write(pdfContent); err != nil {
		tempFile.Close()
		return "", fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp PDF file: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp("", "indago-pdf-pages-")
	if err != nil {
		return "", fmt.Errorf("failed to create extraction directory: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(tempPath, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	// Page content lands as Content_page_N files.
	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err != nil {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err == nil {
			pageTexts[pageNum] = string(content)
		}
	}

	var fullText strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text, ok := pageTexts[pageNum]
		if !ok {
			continue
		}
		if fullText.Len() > 0 {
			fullText.WriteString(fmt.Sprintf("\n\n--- Page %d ---\n\n", pageNum))
		}
		fullText.WriteString(text)
	}

	e.logger.Debug().
		Int("pages", pageCount).
		Int("text_length", fullText.Len()).
		Msg("Extracted PDF text")

	return fullText.String(), nil
}

func isPDFContentType(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/pdf")
}

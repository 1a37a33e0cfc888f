package exporter

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/indago/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

const (
	sampleRecordLimit = 10
	sampleColumnLimit = 6
	sampleCellLimit   = 60
)

// buildReportMarkdown assembles the session report. The markdown is the
// single source for both the HTML and PDF renditions.
func buildReportMarkdown(session *models.Session, records []*models.ExtractedRecord, rawCount int) string {
	var b strings.Builder

	title := session.Title
	if title == "" || title == models.TitlePending {
		title = "Crawl Session " + session.ID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Objective:** %s\n\n", session.Objective)

	b.WriteString("## Session\n\n")
	b.WriteString("| | |\n")
	b.WriteString("|---|---|\n")
	fmt.Fprintf(&b, "| Session ID | %s |\n", session.ID)
	if session.SeedURL != "" {
		fmt.Fprintf(&b, "| Seed URL | %s |\n", session.SeedURL)
	}
	fmt.Fprintf(&b, "| Status | %s |\n", session.Status)
	fmt.Fprintf(&b, "| Started | %s |\n", session.StartedAt.Format(time.RFC3339))
	if session.CompletedAt != nil {
		fmt.Fprintf(&b, "| Completed | %s |\n", session.CompletedAt.Format(time.RFC3339))
		fmt.Fprintf(&b, "| Duration | %s |\n", session.CompletedAt.Sub(session.StartedAt).Round(time.Second))
	}

	b.WriteString("\n## Results\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|---|---|\n")
	fmt.Fprintf(&b, "| Pages scanned | %d |\n", session.PagesScanned)
	fmt.Fprintf(&b, "| Records extracted | %d |\n", rawCount)
	fmt.Fprintf(&b, "| Records after deduplication | %d |\n", len(records))
	fmt.Fprintf(&b, "| Fetch errors | %d |\n", session.Errors)
	fmt.Fprintf(&b, "| Bandwidth saved | %s |\n", formatBytes(session.BandwidthSaved))

	if len(records) > 0 {
		b.WriteString("\n## Sample Records\n\n")
		writeSampleTable(&b, records)
	}

	return b.String()
}

func writeSampleTable(b *strings.Builder, records []*models.ExtractedRecord) {
	var cols []string
	for _, name := range sortedFieldNames(records[0].Fields) {
		if name == "_metadata" {
			continue
		}
		cols = append(cols, name)
		if len(cols) == sampleColumnLimit {
			break
		}
	}
	if len(cols) == 0 {
		return
	}

	b.WriteString("| " + strings.Join(cols, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(cols)) + "\n")

	for i, record := range records {
		if i == sampleRecordLimit {
			break
		}
		row := make([]string, len(cols))
		for j, name := range cols {
			row[j] = sampleCell(record.Fields[name])
		}
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	if len(records) > sampleRecordLimit {
		fmt.Fprintf(b, "\n%d more records in clean_data.jsonl.\n", len(records)-sampleRecordLimit)
	}
}

// sampleCell renders a field value for the report table, truncated and with
// pipes and newlines neutralized so the markdown table stays intact.
func sampleCell(v any) string {
	s := csvValue(v)
	s = strings.NewReplacer("|", "\\|", "\n", " ", "\r", " ").Replace(s)
	if len(s) > sampleCellLimit {
		s = s[:sampleCellLimit-3] + "..."
	}
	return s
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}

// renderReportHTML converts the report markdown to a standalone styled HTML
// document.
func renderReportHTML(title, markdown string) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("markdown conversion failed: %w", err)
	}
	return wrapReportHTML(title, buf.String()), nil
}

func wrapReportHTML(title, content string) string {
	return `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>` + htmlEscape(title) + `</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
      line-height: 1.6;
      color: #333;
      max-width: 900px;
      margin: 0 auto;
      padding: 20px;
    }
    h1 { color: #1a1a1a; font-size: 24px; border-bottom: 2px solid #eee; padding-bottom: 10px; }
    h2 { color: #2a2a2a; font-size: 20px; margin-top: 24px; }
    code { background: #f4f4f4; padding: 2px 6px; border-radius: 3px; font-family: 'SF Mono', Monaco, 'Courier New', monospace; font-size: 14px; }
    table { border-collapse: collapse; width: 100%; margin: 16px 0; }
    th, td { border: 1px solid #ddd; padding: 8px 12px; text-align: left; }
    th { background: #f4f4f4; font-weight: 600; }
    a { color: #0066cc; text-decoration: none; }
  </style>
</head>
<body>
` + content + `</body>
</html>
`
}

func htmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

// renderReportPDF renders the report markdown to PDF by walking the goldmark
// AST onto an fpdf page.
func renderReportPDF(title, markdown string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(title, true)
	doc.SetMargins(10, 10, 10)
	doc.SetAutoPageBreak(true, 10)
	doc.AddPage()
	doc.SetFont("Arial", "", 9)

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	source := []byte(markdown)
	root := md.Parser().Parse(text.NewReader(source))

	r := &reportPDF{pdf: doc, source: source}
	if err := ast.Walk(root, r.walk); err != nil {
		return nil, fmt.Errorf("pdf render failed: %w", err)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output failed: %w", err)
	}
	return buf.Bytes(), nil
}

type reportPDF struct {
	pdf       *fpdf.Fpdf
	source    []byte
	bold      bool
	italic    bool
	listLevel int
}

func (r *reportPDF) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		r.heading(node, entering)
	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(7)
		}
	case *ast.Text:
		if entering {
			r.pdf.Write(5, string(node.Text(r.source)))
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.applyFont()
	case *ast.CodeSpan:
		if entering {
			r.pdf.SetFont("Courier", "", 9)
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					r.pdf.Write(5, string(t.Segment.Value(r.source)))
				}
			}
			return ast.WalkSkipChildren, nil
		}
		r.applyFont()
	case *ast.FencedCodeBlock:
		if entering {
			r.codeBlock(node.Lines())
			return ast.WalkSkipChildren, nil
		}
	case *ast.List:
		if entering {
			r.listLevel++
		} else {
			r.listLevel--
			if r.listLevel == 0 {
				r.pdf.Ln(2)
			}
		}
	case *ast.ListItem:
		if entering {
			r.pdf.Ln(5)
			r.pdf.SetX(15 + float64(r.listLevel-1)*5)
			r.pdf.Write(5, "- ")
		}
	case *ast.ThematicBreak:
		if entering {
			r.pdf.Ln(2)
			r.pdf.Line(15, r.pdf.GetY(), 195, r.pdf.GetY())
			r.pdf.Ln(2)
		}
	case *extast.Table:
		if entering {
			r.table(node)
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (r *reportPDF) heading(n *ast.Heading, entering bool) {
	if !entering {
		r.pdf.Ln(6)
		r.applyFont()
		return
	}
	r.pdf.Ln(6)
	size := 10.0
	switch n.Level {
	case 1:
		size = 14
	case 2:
		size = 12
	case 3:
		size = 11
	}
	r.pdf.SetFont("Arial", "B", size)
}

func (r *reportPDF) applyFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont("Arial", style, 9)
}

func (r *reportPDF) codeBlock(lines *text.Segments) {
	r.pdf.Ln(2)
	r.pdf.SetFont("Courier", "", 9)
	r.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		r.pdf.MultiCell(0, 5, string(seg.Value(r.source)), "", "L", true)
	}
	r.pdf.SetFillColor(255, 255, 255)
	r.applyFont()
	r.pdf.Ln(2)
}

// table lays the rows out with bordered cells. The header row comes from the
// TableHeader node, which holds its cells directly.
func (r *reportPDF) table(n *extast.Table) {
	var rows [][]string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.(type) {
		case *extast.TableHeader, *extast.TableRow:
			rows = append(rows, r.rowCells(child))
		}
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	const (
		pageWidth    = 190.0
		fontSize     = 8.0
		lineHeight   = 4.0
		maxCellLines = 6
	)

	r.pdf.Ln(2)

	cols := len(rows[0])
	widths := make([]float64, cols)
	r.pdf.SetFont("Arial", "", fontSize)
	for _, row := range rows {
		for i, cell := range row {
			if i >= cols {
				break
			}
			if w := r.pdf.GetStringWidth(cell) + 4; w > widths[i] {
				widths[i] = w
			}
		}
	}
	total := 0.0
	for i := range widths {
		if widths[i] < 12 {
			widths[i] = 12
		}
		if widths[i] > pageWidth/3 {
			widths[i] = pageWidth / 3
		}
		total += widths[i]
	}
	if total > pageWidth {
		scale := pageWidth / total
		for i := range widths {
			widths[i] *= scale
		}
	}

	for i, row := range rows {
		if i == 0 {
			r.pdf.SetFont("Arial", "B", fontSize)
		} else {
			r.pdf.SetFont("Arial", "", fontSize)
		}

		wrapped := make([][]string, cols)
		maxLines := 1
		for j := 0; j < cols; j++ {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			lines := r.pdf.SplitText(cell, widths[j]-2)
			if len(lines) > maxCellLines {
				lines = lines[:maxCellLines]
			}
			if len(lines) > maxLines {
				maxLines = len(lines)
			}
			wrapped[j] = lines
		}
		rowHeight := float64(maxLines)*lineHeight + 2

		if r.pdf.GetY()+rowHeight > 282 {
			r.pdf.AddPage()
		}
		x := r.pdf.GetX()
		y := r.pdf.GetY()
		cellX := x
		for j := 0; j < cols; j++ {
			if i == 0 {
				r.pdf.SetFillColor(230, 230, 230)
				r.pdf.Rect(cellX, y, widths[j], rowHeight, "FD")
			} else {
				r.pdf.Rect(cellX, y, widths[j], rowHeight, "D")
			}
			r.pdf.SetXY(cellX+1, y+1)
			for _, line := range wrapped[j] {
				r.pdf.CellFormat(widths[j]-2, lineHeight, line, "", 2, "L", false, 0, "")
			}
			cellX += widths[j]
		}
		r.pdf.SetXY(x, y+rowHeight)
	}

	r.pdf.Ln(3)
	r.applyFont()
}

func (r *reportPDF) rowCells(row ast.Node) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if _, ok := cell.(*extast.TableCell); ok {
			cells = append(cells, string(cell.Text(r.source)))
		}
	}
	return cells
}

package report

import (
	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
)

const (
	margin     = 15.0
	pageWidth  = 210.0 - 2*margin
	bodyFont   = "Helvetica"
	monoFont   = "Courier"
	bodySize   = 10.0
	lineHeight = 5.0
	cellLine   = 4.0
	maxCellRow = 6
)

var headingSizes = map[int]float64{1: 16, 2: 13, 3: 11}

// renderer walks a goldmark AST and draws it with the fpdf core fonts
type renderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	translate func(string) string
	bold      bool
	italic    bool
	listDepth int
	inLink    bool
}

func newRenderer(pdf *fpdf.Fpdf, source []byte) *renderer {
	r := &renderer{
		pdf:       pdf,
		source:    source,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
	}
	r.applyFont()
	return r
}

func (r *renderer) render(doc ast.Node) error {
	if err := ast.Walk(doc, r.visit); err != nil {
		return err
	}
	return r.pdf.Error()
}

func (r *renderer) applyFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(bodyFont, style, bodySize)
	if r.inLink {
		r.pdf.SetTextColor(30, 80, 180)
	} else {
		r.pdf.SetTextColor(0, 0, 0)
	}
}

func (r *renderer) write(s string) {
	r.pdf.Write(lineHeight, r.translate(s))
}

func (r *renderer) visit(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(4)
			r.pdf.SetFont(bodyFont, "B", headingSize(node.Level))
		} else {
			r.pdf.Ln(headingSize(node.Level) * 0.6)
			r.applyFont()
		}

	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(lineHeight + 1)
		}

	case *ast.TextBlock:
		if !entering {
			r.pdf.Ln(lineHeight)
		}

	case *ast.Text:
		if entering {
			r.write(string(node.Segment.Value(r.source)))
			if node.HardLineBreak() {
				r.pdf.Ln(lineHeight)
			} else if node.SoftLineBreak() {
				r.write(" ")
			}
		}

	case *ast.String:
		if entering {
			r.write(string(node.Value))
		}

	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.applyFont()

	case *ast.Link:
		r.inLink = entering
		r.applyFont()

	case *ast.AutoLink:
		if entering {
			r.inLink = true
			r.applyFont()
			r.write(string(node.URL(r.source)))
			r.inLink = false
			r.applyFont()
		}
		return ast.WalkSkipChildren, nil

	case *ast.CodeSpan:
		if entering {
			r.pdf.SetFont(monoFont, "", bodySize-1)
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					r.write(string(t.Segment.Value(r.source)))
				}
			}
			r.applyFont()
		}
		return ast.WalkSkipChildren, nil

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if entering {
			r.codeBlock(n)
		}
		return ast.WalkSkipChildren, nil

	case *ast.List:
		if entering {
			r.listDepth++
		} else {
			r.listDepth--
			if r.listDepth == 0 {
				r.pdf.Ln(2)
			}
		}

	case *ast.ListItem:
		if entering {
			r.pdf.SetX(margin + float64(r.listDepth)*4)
			r.write("- ")
		}

	case *ast.ThematicBreak:
		if entering {
			y := r.pdf.GetY() + 2
			r.pdf.Line(margin, y, margin+pageWidth, y)
			r.pdf.Ln(4)
		}

	case *extast.Table:
		if entering {
			r.table(node)
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func headingSize(level int) float64 {
	if s, ok := headingSizes[level]; ok {
		return s
	}
	return bodySize
}

func (r *renderer) codeBlock(n ast.Node) {
	lines := n.Lines()
	r.pdf.SetFont(monoFont, "", bodySize-1)
	r.pdf.SetFillColor(242, 242, 242)
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		r.pdf.MultiCell(0, cellLine, r.translate(string(segment.Value(r.source))), "", "L", true)
	}
	r.pdf.SetFillColor(255, 255, 255)
	r.pdf.Ln(2)
	r.applyFont()
}

func (r *renderer) table(t *extast.Table) {
	var rows [][]string
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, r.translate(string(cell.Text(r.source))))
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	widths := r.columnWidths(rows)
	r.pdf.Ln(1)
	for i, cells := range rows {
		header := i == 0
		style := ""
		if header {
			style = "B"
		}
		r.pdf.SetFont(bodyFont, style, bodySize-2)

		wrapped := make([][]string, len(widths))
		lines := 1
		for j := range widths {
			if j < len(cells) {
				wrapped[j] = r.pdf.SplitText(cells[j], widths[j]-2)
			}
			if n := len(wrapped[j]); n > lines {
				lines = n
			}
		}
		if lines > maxCellRow {
			lines = maxCellRow
		}
		height := float64(lines)*cellLine + 2

		_, pageHeight := r.pdf.GetPageSize()
		if r.pdf.GetY()+height > pageHeight-margin {
			r.pdf.AddPage()
		}

		x, y := margin, r.pdf.GetY()
		for j, w := range widths {
			fill := "D"
			if header {
				r.pdf.SetFillColor(228, 232, 238)
				fill = "FD"
			}
			r.pdf.Rect(x, y, w, height, fill)
			for k, line := range wrapped[j] {
				if k == lines {
					break
				}
				r.pdf.SetXY(x+1, y+1+float64(k)*cellLine)
				r.pdf.CellFormat(w-2, cellLine, line, "", 0, "L", false, 0, "")
			}
			x += w
		}
		r.pdf.SetXY(margin, y+height)
	}
	r.pdf.SetFillColor(255, 255, 255)
	r.pdf.Ln(3)
	r.applyFont()
}

// columnWidths sizes columns by their widest cell, scaled to the page width
func (r *renderer) columnWidths(rows [][]string) []float64 {
	cols := len(rows[0])
	widths := make([]float64, cols)
	r.pdf.SetFont(bodyFont, "B", bodySize-2)
	for _, cells := range rows {
		for j := 0; j < cols && j < len(cells); j++ {
			if w := r.pdf.GetStringWidth(cells[j]) + 4; w > widths[j] {
				widths[j] = w
			}
		}
	}

	total := 0.0
	for j := range widths {
		if widths[j] < 14 {
			widths[j] = 14
		}
		if widths[j] > pageWidth/2 {
			widths[j] = pageWidth / 2
		}
		total += widths[j]
	}
	if total > pageWidth {
		for j := range widths {
			widths[j] *= pageWidth / total
		}
	}
	return widths
}

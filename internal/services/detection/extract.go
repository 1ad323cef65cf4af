package detection

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/trackscope/internal/interfaces"
)

// textBlocksScript runs in the page and returns newline-joined, deduplicated consent text blocks
const textBlocksScript = `((minLen, maxLen) => {
  const seen = new Set();
  const blocks = [];
  const add = raw => {
    let text = (raw || "").replace(/\s+/g, " ").trim();
    if (text.length < minLen) return;
    if (text.length > maxLen) text = text.slice(0, maxLen);
    if (seen.has(text)) return;
    seen.add(text);
    blocks.push(text);
  };
  const containers = ["cookie", "consent", "privacy", "gdpr"]
    .map(k => '[class*="' + k + '" i], [id*="' + k + '" i]').join(", ");
  document.querySelectorAll(containers).forEach(el => add(el.innerText));
  document.querySelectorAll("table").forEach(t => {
    if (/partner|vendor|cookie|purpose/i.test(t.innerText || "")) add(t.innerText);
  });
  document.querySelectorAll("ul, ol").forEach(l => {
    const parent = l.parentElement ? l.parentElement.innerText : "";
    if (/partner|vendor|third[- ]party/i.test(parent || "")) add(l.innerText);
  });
  return blocks.join("\n");
})(%d, %d)`

var (
	containerKeywords = []string{"cookie", "consent", "privacy", "gdpr"}
	tableKeywords     = regexp.MustCompile(`(?i)partner|vendor|cookie|purpose`)
	listKeywords      = regexp.MustCompile(`(?i)partner|vendor|third[- ]party`)
	whitespace        = regexp.MustCompile(`\s+`)
	horizontalSpace   = regexp.MustCompile(`[ \t\r\f\v]+`)
)

// BlockExtractor gathers consent-related text blocks bounded to [minChars, maxChars]
type BlockExtractor struct {
	minChars int
	maxChars int
}

func NewBlockExtractor(minChars, maxChars int) *BlockExtractor {
	return &BlockExtractor{minChars: minChars, maxChars: maxChars}
}

// Extract runs the in-page script, falling back to parsing the serialized DOM
func (e *BlockExtractor) Extract(ctx context.Context, page interfaces.Page) ([]string, error) {
	var joined string
	err := page.Evaluate(ctx, fmt.Sprintf(textBlocksScript, e.minChars, e.maxChars), &joined)
	if err == nil {
		return splitBlocks(joined), nil
	}

	html, htmlErr := page.OuterHTML(ctx)
	if htmlErr != nil {
		return nil, fmt.Errorf("in-page extraction failed (%v) and DOM unavailable: %w", err, htmlErr)
	}
	return e.ExtractFromHTML(html)
}

// ExtractFromHTML applies the container/table/list heuristics to serialized HTML.
// Tables and lists are converted to markdown and keep one row or item per line.
func (e *BlockExtractor) ExtractFromHTML(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	converter := md.NewConverter("", true, nil).Use(plugin.Table())
	seen := make(map[string]struct{})
	var blocks []string
	add := func(text string, keepLines bool) {
		if keepLines {
			text = e.boundLines(text)
		} else {
			text = e.bound(text)
		}
		if text == "" {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		blocks = append(blocks, text)
	}
	asMarkdown := func(s *goquery.Selection) string {
		outer, err := goquery.OuterHtml(s)
		if err != nil {
			return s.Text()
		}
		markdown, err := converter.ConvertString(outer)
		if err != nil {
			return s.Text()
		}
		return markdown
	}

	doc.Find("[class], [id]").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		attrs := strings.ToLower(class + " " + id)
		for _, keyword := range containerKeywords {
			if strings.Contains(attrs, keyword) {
				add(s.Text(), false)
				return
			}
		}
	})

	doc.Find("table").Each(func(_ int, s *goquery.Selection) {
		if tableKeywords.MatchString(s.Text()) {
			add(asMarkdown(s), true)
		}
	})

	doc.Find("ul, ol").Each(func(_ int, s *goquery.Selection) {
		if listKeywords.MatchString(s.Parent().Text()) {
			add(asMarkdown(s), true)
		}
	})

	return blocks, nil
}

// bound collapses whitespace and enforces the block length limits, "" when too short
func (e *BlockExtractor) bound(text string) string {
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	if len([]rune(text)) < e.minChars {
		return ""
	}
	if runes := []rune(text); len(runes) > e.maxChars {
		text = string(runes[:e.maxChars])
	}
	return text
}

// boundLines is bound for markdown: whitespace collapses within each line and blank lines drop
func (e *BlockExtractor) boundLines(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " ")); line != "" {
			lines = append(lines, line)
		}
	}
	text = strings.Join(lines, "\n")
	if len([]rune(text)) < e.minChars {
		return ""
	}
	if runes := []rune(text); len(runes) > e.maxChars {
		text = strings.TrimSpace(string(runes[:e.maxChars]))
	}
	return text
}

func splitBlocks(joined string) []string {
	var blocks []string
	for _, line := range strings.Split(joined, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			blocks = append(blocks, line)
		}
	}
	return blocks
}

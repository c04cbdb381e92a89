// Package publisher renders a final content pack to a standalone HTML document.
package publisher

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"auto_marketing_agency/generator"
	"auto_marketing_agency/workflow"
)

// Document is what gets rendered.
type Document struct {
	RunID    string
	Topic    string
	Audience string
	Voice    string
	Date     string
	Score    float64
	Pieces   []generator.ContentPiece
}

// Options tweaks the rendered HTML.
type Options struct {
	// InlineStyles turns headings into styled paragraphs and flattens lists,
	// which survives mail clients and social editors that strip tags.
	InlineStyles bool
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// FromState builds a Document from a finished run's state.
func FromState(runID string, s workflow.State) Document {
	doc := Document{
		RunID:    runID,
		Topic:    s.UserQuery,
		Audience: s.TargetAudience,
		Voice:    s.BrandVoice,
		Date:     s.Date,
		Pieces:   s.FinalContentPack,
	}
	if s.EditorFeedback != nil {
		doc.Score = s.EditorFeedback.OverallScore
	}
	return doc
}

// Render converts every piece body from markdown and wraps the pack in one page.
func Render(doc Document, opts Options) (string, error) {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(doc.Topic))
	if len(doc.Pieces) > 0 {
		fmt.Fprintf(&b, "<meta name=\"description\" content=\"%s\">\n", html.EscapeString(excerpt(doc.Pieces[0].Content, 120)))
	}
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(doc.Topic))
	fmt.Fprintf(&b, "<p class=\"meta\">Audience: %s | Voice: %s | Date: %s | Score: %g/30</p>\n",
		html.EscapeString(doc.Audience), html.EscapeString(doc.Voice), html.EscapeString(doc.Date), doc.Score)

	if len(doc.Pieces) == 0 {
		b.WriteString("<p class=\"empty\">No content was published.</p>\n")
	}
	for i, p := range doc.Pieces {
		body, err := mdToHTML(p.Content)
		if err != nil {
			return "", fmt.Errorf("piece %d: %w", i+1, err)
		}
		if opts.InlineStyles {
			body = inlineStyles(body)
		}
		fmt.Fprintf(&b, "<section class=\"piece\" data-platform=\"%s\">\n", html.EscapeString(p.Platform))
		fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(p.Title))
		fmt.Fprintf(&b, "<p class=\"caption\">Platform: %s | Type: %s</p>\n",
			html.EscapeString(strings.ToUpper(p.Platform)), html.EscapeString(p.FormatType))
		b.WriteString(body)
		b.WriteString("</section>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

// Exporter writes rendered packs into a directory, one file per run.
type Exporter struct {
	dir    string
	opts   Options
	logger *slog.Logger
}

func NewExporter(dir string, opts Options, logger *slog.Logger) (*Exporter, error) {
	if dir == "" {
		return nil, errors.New("export dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{dir: dir, opts: opts, logger: logger}, nil
}

// Export renders doc to <dir>/<run-id>.html and returns the path.
func (e *Exporter) Export(doc Document) (string, error) {
	if doc.RunID == "" || strings.ContainsAny(doc.RunID, `/\`) {
		return "", fmt.Errorf("invalid run id %q", doc.RunID)
	}
	out, err := Render(doc, e.opts)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(e.dir, doc.RunID+".html")
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return "", err
	}
	e.logger.Info("exported content pack", slog.String("run_id", doc.RunID), slog.String("path", path), slog.Int("pieces", len(doc.Pieces)))
	return path, nil
}

func mdToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var (
	olRe = regexp.MustCompile(`(?s)<ol[^>]*>(.*?)</ol>`)
	ulRe = regexp.MustCompile(`(?s)<ul[^>]*>(.*?)</ul>`)
	liRe = regexp.MustCompile(`(?s)<li[^>]*>(.*?)</li>`)
	hRe  = regexp.MustCompile(`(?s)<h([1-6])[^>]*>(.*?)</h[1-6]>`)
)

// flattenLists rewrites list items as numbered or bulleted paragraphs.
func flattenLists(s string) string {
	s = olRe.ReplaceAllStringFunc(s, func(block string) string {
		items := liRe.FindAllStringSubmatch(block, -1)
		if len(items) == 0 {
			return block
		}
		var b strings.Builder
		for i, item := range items {
			fmt.Fprintf(&b, "<p>%d. %s</p>", i+1, strings.TrimSpace(item[1]))
		}
		return b.String()
	})
	return ulRe.ReplaceAllStringFunc(s, func(block string) string {
		items := liRe.FindAllStringSubmatch(block, -1)
		if len(items) == 0 {
			return block
		}
		var b strings.Builder
		for _, item := range items {
			fmt.Fprintf(&b, "<p>• %s</p>", strings.TrimSpace(item[1]))
		}
		return b.String()
	})
}

func inlineHeadings(s string) string {
	sizes := map[string]string{
		"1": "24px",
		"2": "22px",
		"3": "20px",
		"4": "18px",
		"5": "16px",
		"6": "15px",
	}
	return hRe.ReplaceAllStringFunc(s, func(block string) string {
		parts := hRe.FindStringSubmatch(block)
		if len(parts) != 3 {
			return block
		}
		return fmt.Sprintf(`<p style="font-size:%s;font-weight:700;margin:1em 0 0.6em;">%s</p>`, sizes[parts[1]], strings.TrimSpace(parts[2]))
	})
}

func inlineStyles(s string) string {
	return flattenLists(inlineHeadings(s))
}

func excerpt(s string, limit int) string {
	joined := strings.Join(strings.Fields(s), " ")
	r := []rune(joined)
	if len(r) <= limit {
		return joined
	}
	return string(r[:limit])
}

package extract

import (
	"bytes"
	"fmt"
	"log/slog"
	nurl "net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// minReadableLength is the minimum TextContent length for readability output
// to be considered valid. Below it we assume the algorithm failed to locate
// the main content and fall back to the raw HTML.
const minReadableLength = 50

// SaveHTML writes a page snapshot to dir/name.html, creating dir as needed,
// and returns the written path. Re-saving the same name overwrites.
func SaveHTML(dir, name, rawHTML string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := filepath.Join(dir, name+".html")
	if err := os.WriteFile(path, []byte(rawHTML), 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// Readable runs the Mozilla Readability algorithm on a snapshot. The second
// return value reports whether extraction succeeded; on any failure (bad URL,
// parser error, content too short) the raw HTML is returned wrapped in an
// Article so downstream steps never see empty input.
func Readable(rawHTML, sourceURL string) (readability.Article, bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Warn("readability: invalid source URL, falling back to raw HTML",
			"url", sourceURL, "error", err)
		return fallbackArticle(rawHTML), false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Warn("readability: extraction failed, falling back to raw HTML",
			"url", sourceURL, "error", err)
		return fallbackArticle(rawHTML), false
	}

	if len(strings.TrimSpace(article.TextContent)) < minReadableLength {
		slog.Warn("readability: extracted content too short, falling back to raw HTML",
			"url", sourceURL, "length", len(article.TextContent))
		return fallbackArticle(rawHTML), false
	}

	return article, true
}

func fallbackArticle(rawHTML string) readability.Article {
	return readability.Article{
		Content:     rawHTML,
		TextContent: rawHTML,
	}
}

// markdownConverter builds the shared converter once; it is goroutine-safe.
//
//   - base plugin strips script, style, iframe, noscript, head, meta, link,
//     input, textarea and HTML comments.
//   - commonmark plugin renders standard Markdown.
//   - table plugin keeps table structure with minimal cell padding.
var markdownConverter = sync.OnceValue(func() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
})

// ToMarkdown converts snapshot HTML to Markdown. The domain parameter
// resolves relative URLs in links and images into absolute ones.
func ToMarkdown(htmlContent, domain string) (string, error) {
	return markdownConverter().ConvertString(htmlContent, converter.WithDomain(domain))
}

// RenderMarkdown turns a snapshot into Markdown: optional selector scoping,
// readability extraction (with raw-HTML fallback), then conversion. This is
// the full snapshot pipeline; crawlers that want Markdown output go through
// here rather than calling ToMarkdown on the raw page.
func RenderMarkdown(rawHTML, sourceURL, scopeSelector string) (string, error) {
	content := rawHTML
	if scopeSelector != "" {
		scoped, err := Scope(rawHTML, scopeSelector)
		if err != nil {
			return "", err
		}
		content = scoped
	}

	article, ok := Readable(content, sourceURL)
	if !ok {
		slog.Debug("readability fell back to the raw snapshot", "url", sourceURL)
	}
	return ToMarkdown(article.Content, sourceURL)
}

// Scope narrows a snapshot to the elements matching a CSS selector and
// returns their concatenated outer HTML. If nothing matches, the original
// HTML is returned unchanged so downstream steps still have input.
func Scope(rawHTML, selector string) (string, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return "", fmt.Errorf("parse selector %q: %w", selector, err)
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse snapshot html: %w", err)
	}

	matches := cascadia.QueryAll(doc, sel)
	if len(matches) == 0 {
		return rawHTML, nil
	}

	var buf bytes.Buffer
	for _, node := range matches {
		if err := html.Render(&buf, node); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// AttrsFromHTML extracts the named attribute from every matching element in
// a snapshot, skipping elements where the attribute is absent.
func AttrsFromHTML(rawHTML, selector, name string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot html: %w", err)
	}
	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(name); ok {
			out = append(out, v)
		}
	})
	return out, nil
}

// TextsFromHTML extracts the trimmed text of every matching element in a
// snapshot.
func TextsFromHTML(rawHTML, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot html: %w", err)
	}
	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out, nil
}

package agent

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/url"
	"strings"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"rsc.io/pdf"
)

var errUnsupportedContentType = errors.New("unsupported content type")

const pdfTextRuneCap = 220_000

func extractContent(contentType string, body []byte, pageURL string, maxRunes int) (title, text string, err error) {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if parsed, _, parseErr := mime.ParseMediaType(mediaType); parseErr == nil {
		mediaType = parsed
	}

	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		title, text = extractReadableText(body, pageURL)
	case mediaType == "application/json":
		text = extractJSONText(body)
	case mediaType == "application/pdf":
		text, err = extractPDFText(body)
	case strings.HasPrefix(mediaType, "text/"):
		text = string(body)
	default:
		return "", "", errUnsupportedContentType
	}
	if err != nil {
		return "", "", err
	}
	return trimToRunes(strings.TrimSpace(title), 240), trimToRunes(normalizeExtractedText(text), maxRunes), nil
}

// extractReadableText runs readability first and falls back to a plain DOM
// text walk for pages readability cannot make sense of.
func extractReadableText(data []byte, pageURL string) (title, text string) {
	if parsedURL, err := url.Parse(strings.TrimSpace(pageURL)); err == nil && parsedURL.Host != "" {
		if article, err := readability.FromReader(bytes.NewReader(data), parsedURL); err == nil {
			title = strings.TrimSpace(article.Title)
			text = strings.TrimSpace(article.TextContent)
		}
	}
	if text != "" {
		return title, text
	}

	fallbackTitle, fallbackText, err := extractHTMLText(data)
	if err != nil {
		return title, text
	}
	if title == "" {
		title = fallbackTitle
	}
	return title, fallbackText
}

func extractJSONText(data []byte) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return string(data)
	}
	return pretty.String()
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var out strings.Builder
	runes := 0
	for pageNum := 1; pageNum <= reader.NumPage() && runes < pdfTextRuneCap; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		for _, item := range page.Content().Text {
			chunk := strings.TrimSpace(item.S)
			if chunk == "" {
				continue
			}
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.WriteString(chunk)
			runes += utf8.RuneCountInString(chunk) + 1
			if runes >= pdfTextRuneCap {
				break
			}
		}
	}
	return trimToRunes(out.String(), pdfTextRuneCap), nil
}

// Tags whose subtree holds no prose worth keeping.
var skippedHTMLTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"svg": true, "iframe": true, "head": true,
}

// Tags that separate blocks of text.
var blockHTMLTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"br": true, "tr": true, "blockquote": true, "pre": true,
}

// extractHTMLText is the no-frills fallback extractor: the document's title
// plus every text node outside skipped subtrees, block tags becoming newlines.
func extractHTMLText(data []byte) (title, text string, err error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", "", err
	}

	var out strings.Builder
	var walk func(node *html.Node, inTitle bool)
	walk = func(node *html.Node, inTitle bool) {
		switch node.Type {
		case html.ElementNode:
			tag := strings.ToLower(node.Data)
			if tag == "title" {
				inTitle = true
			} else if skippedHTMLTags[tag] && !inTitle {
				// Still descend into head for the title element.
				if tag != "head" {
					return
				}
			}
			if blockHTMLTags[tag] && out.Len() > 0 {
				out.WriteByte('\n')
			}
		case html.TextNode:
			chunk := strings.TrimSpace(node.Data)
			if chunk == "" {
				break
			}
			if inTitle {
				if title == "" {
					title = chunk
				}
				break
			}
			if node.Parent != nil && node.Parent.Type == html.ElementNode &&
				skippedHTMLTags[strings.ToLower(node.Parent.Data)] {
				break
			}
			out.WriteString(chunk)
			out.WriteByte(' ')
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child, inTitle)
		}
	}
	walk(doc, false)

	return strings.TrimSpace(title), normalizeExtractedText(out.String()), nil
}

// normalizeExtractedText collapses runs of whitespace within lines and drops
// blank lines, yielding compact newline-separated prose.
func normalizeExtractedText(raw string) string {
	var out strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(strings.ToValidUTF8(raw, "")))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(strings.Join(fields, " "))
	}
	return out.String()
}

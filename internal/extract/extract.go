// Package extract implements the Content Extractor: turning an
// article URL into full text plus a short description, trying
// readability extraction first and falling back progressively rather
// than ever failing the story outright.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/hn-digest/hn-digest-go/internal/fetch"
)

// Result is the outcome of extracting an article's content. It is
// always returned — extraction never fails the caller outright — but
// every field is empty when all extraction paths fail.
type Result struct {
	FullContent string
	Description string
	Source      string // "readability", "meta-description", or "crawler"
}

// Extractor resolves a story URL into article text.
type Extractor struct {
	fetcher       *fetch.Fetcher
	timeout       time.Duration
	crawlerAPIURL string
	crawlerAPIKey string
}

// New creates an Extractor. crawlerAPIURL/crawlerAPIKey configure the
// optional crawler endpoint fallback; leave both empty to disable it.
func New(fetcher *fetch.Fetcher, timeout time.Duration, crawlerAPIURL, crawlerAPIKey string) *Extractor {
	return &Extractor{
		fetcher:       fetcher,
		timeout:       timeout,
		crawlerAPIURL: crawlerAPIURL,
		crawlerAPIKey: crawlerAPIKey,
	}
}

// Extract fetches rawURL and returns its full content and description.
// It never returns an error: on total failure it returns a zero-value
// Result so the caller can proceed with title/comments alone.
func (e *Extractor) Extract(ctx context.Context, rawURL string) Result {
	html, err := e.fetchHTML(ctx, rawURL)
	if err != nil {
		return e.crawlerFallback(ctx, rawURL)
	}

	if res, ok := e.viaReadability(rawURL, html); ok {
		return res
	}
	if res, ok := viaMetaDescription(html); ok {
		res.Source = "meta-description"
		return res
	}
	return e.crawlerFallback(ctx, rawURL)
}

func (e *Extractor) fetchHTML(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := e.fetcher.Fetch(ctx, "GET", rawURL, fetch.Options{
		Timeout: e.timeout,
		Headers: map[string]string{"Accept": "text/html,application/xhtml+xml"},
		Source:  "article",
	})
	if err != nil {
		return nil, err
	}
	body, err := maybeGunzip(resp.Body)
	if err != nil {
		return nil, err
	}
	return decodeHTML(body, resp.Header.Get("Content-Type")), nil
}

var metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset=["']?([A-Za-z0-9_-]+)`)

// decodeHTML converts a legacy-encoded page to UTF-8 based on the
// charset declared in the Content-Type header or an early meta tag.
// Pages with no declaration, declaring UTF-8, or declaring a charset
// the decoder doesn't know pass through unchanged.
func decodeHTML(body []byte, contentType string) []byte {
	name := declaredCharset(body, contentType)
	if name == "" || name == "utf-8" || name == "utf8" {
		return body
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return body
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return body
	}
	return decoded
}

func declaredCharset(body []byte, contentType string) string {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if cs := params["charset"]; cs != "" {
			return strings.ToLower(cs)
		}
	}
	head := body
	if len(head) > 1024 {
		head = head[:1024]
	}
	if m := metaCharsetRe.FindSubmatch(head); m != nil {
		return strings.ToLower(string(m[1]))
	}
	return ""
}

func maybeGunzip(body []byte) ([]byte, error) {
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return body, nil
	}
	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return body, nil
	}
	defer func() { _ = gz.Close() }()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(gz); err != nil {
		return body, nil
	}
	return buf.Bytes(), nil
}

func (e *Extractor) viaReadability(rawURL string, html []byte) (Result, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Result{}, false
	}
	article, err := readability.FromReader(bytes.NewReader(html), parsed)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return Result{}, false
	}
	desc := article.Excerpt
	if desc == "" {
		desc = truncateWords(article.TextContent, 60)
	}
	return Result{
		FullContent: strings.TrimSpace(article.TextContent),
		Description: desc,
		Source:      "readability",
	}, true
}

func viaMetaDescription(html []byte) (Result, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Result{}, false
	}
	desc, exists := doc.Find(`meta[name="description"]`).Attr("content")
	if !exists || strings.TrimSpace(desc) == "" {
		desc, exists = doc.Find(`meta[property="og:description"]`).Attr("content")
	}
	if !exists || strings.TrimSpace(desc) == "" {
		return Result{}, false
	}
	body := strings.TrimSpace(doc.Find("body").Text())
	return Result{
		FullContent: body,
		Description: strings.TrimSpace(desc),
	}, true
}

// crawlerFallback POSTs {"url": rawURL} to the configured crawler
// endpoint, expecting {success, markdown?, error?}. A non-2xx response
// (already classified as an error by the Fetcher) or success=false is a
// soft failure: both Result fields are left empty rather than
// propagated to the caller.
func (e *Extractor) crawlerFallback(ctx context.Context, rawURL string) Result {
	if e.crawlerAPIURL == "" {
		return Result{}
	}

	body, err := json.Marshal(struct {
		URL string `json:"url"`
	}{URL: rawURL})
	if err != nil {
		return Result{}
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if e.crawlerAPIKey != "" {
		headers["Authorization"] = "Bearer " + e.crawlerAPIKey
	}

	resp, err := e.fetcher.Fetch(ctx, "POST", e.crawlerAPIURL, fetch.Options{
		Timeout:    e.timeout,
		Headers:    headers,
		Body:       body,
		ExpectJSON: true,
		Source:     "article",
	})
	if err != nil {
		return Result{}
	}

	var payload struct {
		Success  bool   `json:"success"`
		Markdown string `json:"markdown"`
		Error    string `json:"error"`
	}
	if err := resp.JSON(&payload); err != nil || !payload.Success {
		return Result{}
	}

	return Result{
		FullContent: payload.Markdown,
		Source:      "crawler",
	}
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ") + "..."
}

package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"castgrab/internal/httputil"
	"castgrab/internal/media"
)

// Static reads the data island from the server-rendered HTML without running
// any page scripts. It only succeeds for pages rendered on the server.
type Static struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// NewStatic creates a Static extractor with the given request timeout.
func NewStatic(timeout time.Duration, userAgent string) *Static {
	return &Static{
		client:    httputil.NewClient(timeout),
		timeout:   timeout,
		userAgent: userAgent,
	}
}

// Extract fetches the page once and decodes its data island.
func (s *Static) Extract(ctx context.Context, rawURL string) media.Result {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := httputil.GetPage(ctx, s.client, rawURL, s.userAgent)
	if err != nil {
		return media.Failure(media.Network, fmt.Sprintf("fetch error: %v", err))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return media.Failure(media.MissingDataIsland, fmt.Sprintf("html parse error: %v", err))
	}

	text, ok := findIsland(doc)
	if !ok {
		return media.Failure(media.MissingDataIsland, "data island not found")
	}

	return decodeIsland(text)
}

// findIsland returns the text of the data island script element.
// Falls back to scanning every script for ids the selector misses,
// such as ones padded with whitespace.
func findIsland(doc *goquery.Document) (string, bool) {
	sel := doc.Find("script#" + dataIslandID).First()
	if sel.Length() == 0 {
		doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if id, ok := s.Attr("id"); ok && strings.TrimSpace(id) == dataIslandID {
				sel = s
				return false
			}
			return true
		})
	}
	if sel.Length() == 0 {
		return "", false
	}
	return sel.Text(), true
}

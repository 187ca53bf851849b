package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"autoseo/internal/logging"
	"autoseo/internal/models"
)

// DefaultUserAgent identifies the crawler to origin servers
const DefaultUserAgent = "AutoSEO Bot/1.0"

const (
	defaultFetchTimeout    = 10 * time.Second
	defaultPolitenessDelay = 500 * time.Millisecond
	maxLinkTextLen         = 100
)

// Config tunes a crawler instance
type Config struct {
	UserAgent       string
	FetchTimeout    time.Duration
	PolitenessDelay time.Duration
}

// DefaultConfig returns the production crawl settings
func DefaultConfig() Config {
	return Config{
		UserAgent:       DefaultUserAgent,
		FetchTimeout:    defaultFetchTimeout,
		PolitenessDelay: defaultPolitenessDelay,
	}
}

// Crawler walks a site breadth-first from a start URL, following internal
// links only, and extracts per-page SEO signals. Instances are safe for
// concurrent use; each Crawl call keeps its own frontier and visited set.
type Crawler struct {
	client    *http.Client
	logger    logging.Logger
	userAgent string
	delay     time.Duration
}

// New creates a crawler with the given settings
func New(logger logging.Logger, cfg Config) *Crawler {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	return &Crawler{
		client:    &http.Client{Timeout: cfg.FetchTimeout},
		logger:    logger,
		userAgent: cfg.UserAgent,
		delay:     cfg.PolitenessDelay,
	}
}

// Crawl fetches up to maxPages pages reachable from startURL over internal
// links. Individual fetch or parse failures are logged and skipped; the crawl
// fails as a whole on a malformed start URL, a canceled context, or when not
// even the start URL could be fetched.
func (c *Crawler) Crawl(ctx context.Context, startURL string, maxPages int) ([]models.Page, error) {
	start, err := url.Parse(startURL)
	if err != nil || start.Host == "" {
		return nil, fmt.Errorf("invalid start URL %q", startURL)
	}

	var pages []models.Page
	visited := make(map[string]bool)
	queue := []string{startURL}

	for len(queue) > 0 && len(pages) < maxPages {
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		target := queue[0]
		queue = queue[1:]
		if visited[target] {
			continue
		}
		visited[target] = true

		page, err := c.fetch(ctx, target)
		if err != nil {
			c.logger.WithError(err).WithField("url", target).Warn("Failed to crawl page")
			continue
		}
		if page == nil {
			// non-200, skipped
			continue
		}

		pages = append(pages, *page)

		for _, link := range page.Links {
			if link.Internal && !visited[link.URL] {
				queue = append(queue, link.URL)
			}
		}

		if c.delay > 0 {
			select {
			case <-time.After(c.delay):
			case <-ctx.Done():
				return pages, ctx.Err()
			}
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages could be fetched from %s", startURL)
	}

	return pages, nil
}

func (c *Crawler) fetch(ctx context.Context, target string) (*models.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logging.Fields{
			"url":    target,
			"status": resp.StatusCode,
		}).Debug("Skipping non-200 page")
		return nil, nil
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	loadTime := float64(time.Since(started).Milliseconds())

	base, err := url.Parse(target)
	if err != nil {
		return nil, err
	}

	page := &models.Page{
		URL:        target,
		StatusCode: resp.StatusCode,
		LoadTimeMs: loadTime,
		H1:         []string{},
		H2:         []string{},
		Images:     []models.PageImage{},
		Links:      []models.PageLink{},
	}
	c.extract(doc, base, page)
	page.WordCount = len(strings.Fields(textContent(doc)))

	return page, nil
}

// extract walks the parse tree once, collecting every signal the analyzer
// consumes
func (c *Crawler) extract(n *html.Node, base *url.URL, page *models.Page) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if page.Title == "" {
				page.Title = strings.TrimSpace(textContent(n))
			}
		case "meta":
			if attr(n, "name") == "description" {
				if content := strings.TrimSpace(attr(n, "content")); content != "" {
					page.MetaDescription = content
				}
			}
		case "h1":
			page.H1 = append(page.H1, strings.TrimSpace(textContent(n)))
		case "h2":
			page.H2 = append(page.H2, strings.TrimSpace(textContent(n)))
		case "img":
			if src := attr(n, "src"); src != "" {
				alt := attr(n, "alt")
				page.Images = append(page.Images, models.PageImage{
					Src:    resolve(base, src),
					Alt:    alt,
					HasAlt: alt != "",
				})
			}
		case "a":
			href := strings.TrimSpace(attr(n, "href"))
			if href != "" && !skipHref(href) {
				full := resolve(base, href)
				if full != "" {
					page.Links = append(page.Links, models.PageLink{
						URL:      full,
						Text:     truncate(strings.TrimSpace(textContent(n)), maxLinkTextLen),
						Internal: sameHost(full, base.Host),
					})
				}
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.extract(child, base, page)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func skipHref(href string) bool {
	return strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:")
}

func resolve(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(parsed)
	resolved.Fragment = ""
	return resolved.String()
}

func sameHost(rawURL, host string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return parsed.Host == host
}

// textContent returns the visible text under a node, excluding script and
// style bodies
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return ""
	}
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		sb.WriteString(textContent(child))
		sb.WriteString(" ")
	}
	return sb.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

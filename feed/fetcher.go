// Package feed provides RSS/media feed fetching, parsing and recency
// filtering for pget.
package feed

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pget-dev/pget/model"
)

// fetchTimeout bounds a single feed poll end to end.
const fetchTimeout = 30 * time.Second

// Fetcher retrieves and parses media feeds.
type Fetcher struct {
	client *http.Client
	parser *gofeed.Parser
}

// NewFetcher creates a Fetcher with a timeout-bounded HTTP client.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
		parser: gofeed.NewParser(),
	}
}

// Fetch retrieves the raw feed document from a URL. It performs a single
// GET with no retry; any network or protocol failure is returned as an
// error naming the URL.
func (f *Fetcher) Fetch(url string) ([]byte, error) {
	resp, err := f.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch feed from %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed from %s: %w", url, err)
	}
	return data, nil
}

// Parse decodes feed bytes into items, newest first. Items without a
// resolvable media content URL are dropped entirely. An item whose pubDate
// is present but unparseable fails the whole parse; a missing pubDate gets
// the epoch sentinel.
func (f *Fetcher) Parse(content []byte, feedURL string) ([]*model.Item, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("feed content is empty")
	}

	parsed, err := f.parser.ParseString(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	var items []*model.Item
	for _, gi := range parsed.Items {
		item, ok, err := f.convertItem(gi, feedURL)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		items = append(items, item)
	}

	// Newest first.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Published.After(items[j].Published)
	})

	return items, nil
}

// Poll fetches and parses a feed in one step.
func (f *Fetcher) Poll(url string) ([]*model.Item, error) {
	content, err := f.Fetch(url)
	if err != nil {
		return nil, err
	}
	return f.Parse(content, url)
}

// convertItem converts a gofeed.Item to a model.Item. The second return is
// false when the item carries no media content and must be dropped.
func (f *Fetcher) convertItem(gi *gofeed.Item, feedURL string) (*model.Item, bool, error) {
	url, mtype := mediaContent(gi)
	if url == "" {
		return nil, false, nil
	}

	item := &model.Item{
		Title:       gi.Title,
		Description: gi.Description,
		GUID:        gi.GUID,
		MediaURL:    url,
		MediaType:   mtype,
	}

	if item.Title == "" {
		item.Title = feedURL + "(Unknown Title)"
	}

	switch {
	case gi.PublishedParsed != nil:
		item.Published = *gi.PublishedParsed
	case gi.Published != "":
		return nil, false, fmt.Errorf("failed to parse pubDate %q for item %q", gi.Published, item.Title)
	default:
		item.Published = model.EpochSentinel
	}

	return item, true, nil
}

// mediaContent resolves the url and type attributes of the namespaced
// media content element. gofeed's extension parser has already resolved the
// namespace declaration to the conventional "media" prefix.
func mediaContent(gi *gofeed.Item) (url, mtype string) {
	exts, ok := gi.Extensions["media"]
	if !ok {
		return "", ""
	}
	content, ok := exts["content"]
	if !ok || len(content) == 0 {
		return "", ""
	}
	return content[0].Attrs["url"], content[0].Attrs["type"]
}

// Recent returns the items published strictly after now minus the trailing
// window in days. Input order is preserved.
func Recent(items []*model.Item, days int, now time.Time) []*model.Item {
	threshold := now.Add(-time.Duration(days) * 24 * time.Hour)

	var recent []*model.Item
	for _, item := range items {
		if item.Published.After(threshold) {
			recent = append(recent, item)
		}
	}
	return recent
}

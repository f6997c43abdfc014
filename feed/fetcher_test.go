package feed

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/pget-dev/pget/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_ParseMediaFeed(t *testing.T) {
	data, err := os.ReadFile("../testdata/media.xml")
	require.NoError(t, err)

	fetcher := NewFetcher()
	items, err := fetcher.Parse(data, "http://example.com/rss")
	require.NoError(t, err)

	// The show-notes item has no media content and is dropped entirely.
	require.Len(t, items, 3, "items without media content should be dropped")

	// Sorted newest first.
	assert.Equal(t, "March Episode", items[0].Title)
	assert.Equal(t, "February Episode", items[1].Title)
	assert.Equal(t, "January Episode", items[2].Title)

	assert.Equal(t, "http://example.com/media/march.mp3", items[0].MediaURL)
	assert.Equal(t, "audio/mpeg", items[0].MediaType)
	assert.Equal(t, "ep-mar", items[0].GUID)
	assert.Equal(t, "The third episode", items[0].Description)
}

func TestFetcher_ParseMissingPubDate(t *testing.T) {
	content := `<?xml version="1.0"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Sentinel Feed</title>
    <item>
      <title>Undated Episode</title>
      <media:content url="http://example.com/undated.mp3" type="audio/mpeg"/>
    </item>
  </channel>
</rss>`

	fetcher := NewFetcher()
	items, err := fetcher.Parse([]byte(content), "http://example.com/rss")
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.True(t, items[0].Published.Equal(model.EpochSentinel),
		"missing pubDate should get the epoch sentinel, got %v", items[0].Published)
}

func TestFetcher_ParseBadPubDateFailsFeed(t *testing.T) {
	content := `<?xml version="1.0"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Broken Feed</title>
    <item>
      <title>Bad Date Episode</title>
      <pubDate>sometime last spring</pubDate>
      <media:content url="http://example.com/bad.mp3" type="audio/mpeg"/>
    </item>
  </channel>
</rss>`

	fetcher := NewFetcher()
	_, err := fetcher.Parse([]byte(content), "http://example.com/rss")
	assert.Error(t, err, "a present but unparseable pubDate should fail the feed")
}

func TestFetcher_ParseMissingTitle(t *testing.T) {
	content := `<?xml version="1.0"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Untitled Feed</title>
    <item>
      <pubDate>Fri, 01 Jan 2021 10:00:00 +0000</pubDate>
      <media:content url="http://example.com/untitled.mp3" type="audio/mpeg"/>
    </item>
  </channel>
</rss>`

	fetcher := NewFetcher()
	items, err := fetcher.Parse([]byte(content), "http://example.com/rss")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "http://example.com/rss(Unknown Title)", items[0].Title)
}

func TestFetcher_ParseInvalid(t *testing.T) {
	fetcher := NewFetcher()

	_, err := fetcher.Parse([]byte("<invalid>xml</broken>"), "http://example.com/rss")
	assert.Error(t, err, "should error on invalid XML")

	_, err = fetcher.Parse(nil, "http://example.com/rss")
	assert.Error(t, err, "should error on empty content")
}

func TestFetcher_Fetch(t *testing.T) {
	data, err := os.ReadFile("../testdata/media.xml")
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write(data)
	}))
	defer server.Close()

	fetcher := NewFetcher()
	content, err := fetcher.Fetch(server.URL)
	require.NoError(t, err)
	assert.Equal(t, data, content)
}

func TestFetcher_FetchNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	fetcher := NewFetcher()
	_, err := fetcher.Fetch(server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), server.URL, "fetch errors should name the URL")
}

func TestFetcher_FetchConnectionRefused(t *testing.T) {
	// Grab an address with no listener behind it.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	fetcher := NewFetcher()
	_, err := fetcher.Fetch(url)
	assert.Error(t, err)
}

func TestRecent(t *testing.T) {
	now := time.Date(2021, time.June, 15, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	items := []*model.Item{
		{Title: "six days old", Published: now.Add(-6 * day)},
		{Title: "eight days old", Published: now.Add(-8 * day)},
		{Title: "exactly at threshold", Published: now.Add(-7 * day)},
	}

	recent := Recent(items, 7, now)
	require.Len(t, recent, 1)
	assert.Equal(t, "six days old", recent[0].Title)
}

func TestRecent_PreservesOrder(t *testing.T) {
	now := time.Date(2021, time.June, 15, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	items := []*model.Item{
		{Title: "newest", Published: now.Add(-1 * day)},
		{Title: "middle", Published: now.Add(-2 * day)},
		{Title: "oldest kept", Published: now.Add(-3 * day)},
		{Title: "too old", Published: now.Add(-40 * day)},
	}

	recent := Recent(items, 7, now)
	require.Len(t, recent, 3)
	assert.Equal(t, "newest", recent[0].Title)
	assert.Equal(t, "middle", recent[1].Title)
	assert.Equal(t, "oldest kept", recent[2].Title)
}

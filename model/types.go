// Package model defines the core data structures for pget.
package model

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// EpochSentinel is the publish date assigned to feed items whose pubDate
// element is missing entirely. Present-but-unparseable dates are a parse
// error, never coerced to this value.
var EpochSentinel = time.Date(1970, time.January, 1, 2, 0, 0, 0, time.UTC)

// Item represents a single downloadable entry within a feed.
type Item struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Published   time.Time `json:"published"`
	GUID        string    `json:"guid,omitempty"`
	MediaURL    string    `json:"media_url"`
	MediaType   string    `json:"media_type,omitempty"`
}

// Filename derives the on-disk name for the item: the last path segment of
// its media URL.
func (i *Item) Filename() string {
	idx := strings.LastIndex(i.MediaURL, "/")
	if idx < 0 {
		return i.MediaURL
	}
	return i.MediaURL[idx+1:]
}

// Age returns how long ago the item was published.
func (i *Item) Age() time.Duration {
	return time.Since(i.Published)
}

// Feed represents one configured polling target.
type Feed struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	BasePath string `json:"dpath"`
	Dir      string `json:"dir"`
	Days     int    `json:"days"`
}

// DownloadDir returns the directory media files for this feed are written to.
func (f *Feed) DownloadDir() string {
	return filepath.Join(f.BasePath, f.Dir)
}

// Validate checks that the feed has the fields required to poll it.
func (f *Feed) Validate() error {
	if f.URL == "" {
		return errors.New("feed URL is required")
	}
	if f.BasePath == "" || f.Dir == "" {
		return errors.New("feed download path is required")
	}
	return nil
}

// Record is one ledger entry for a completed download.
type Record struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	Time      float64 `json:"time"`
	Tolerance float64 `json:"-"`
}

// NewRecord builds a ledger record for a file downloaded at the given time.
func NewRecord(name, path string, completed time.Time) Record {
	return Record{Name: name, Path: path, Time: float64(completed.Unix())}
}

// Equal reports whether two records describe the same download: names and
// paths match and the completion times differ by no more than the sum of
// the two tolerance windows.
func (r Record) Equal(other Record) bool {
	if r.Name != other.Name || r.Path != other.Path {
		return false
	}
	delta := r.Time - other.Time
	if delta < 0 {
		delta = -delta
	}
	return delta <= r.Tolerance+other.Tolerance
}

// OlderThan reports whether the record completed before the cutoff,
// expressed in epoch seconds.
func (r Record) OlderThan(cutoff float64) bool {
	return r.Time < cutoff
}

// Package poll ties the pipeline together: fetch a feed, narrow its items
// to the recency window, reconcile against the ledger and download what is
// missing.
package poll

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pget-dev/pget/download"
	"github.com/pget-dev/pget/feed"
	"github.com/pget-dev/pget/ledger"
	"github.com/pget-dev/pget/model"
)

// Summary counts the outcomes of one run across all feeds.
type Summary struct {
	Feeds      int `json:"feeds"`
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Poller runs the poll-and-download pipeline. Feeds are processed one at a
// time and items within a feed download sequentially, newest first.
type Poller struct {
	Fetcher *feed.Fetcher
	Engine  *download.Engine
	Ledger  *ledger.Ledger
	Out     io.Writer
	Verbose bool

	// Now is the clock for the recency window and ledger timestamps.
	Now func() time.Time
}

// New creates a Poller around a ledger with default collaborators.
func New(l *ledger.Ledger) *Poller {
	return &Poller{
		Fetcher: feed.NewFetcher(),
		Engine:  download.NewEngine(),
		Ledger:  l,
		Out:     os.Stdout,
		Now:     time.Now,
	}
}

// Run polls every feed in order. No per-feed or per-item failure aborts the
// run; failures are reported and counted.
func (p *Poller) Run(feeds []*model.Feed) Summary {
	var sum Summary
	for _, f := range feeds {
		sum.Feeds++
		p.runFeed(f, &sum)
	}
	return sum
}

func (p *Poller) runFeed(f *model.Feed, sum *Summary) {
	items, err := p.Fetcher.Poll(f.URL)
	if err != nil {
		p.reportError("polling feed for "+f.URL, err)
		return
	}

	recent := feed.Recent(items, f.Days, p.Now())
	if len(recent) == 0 {
		return
	}

	dir := f.DownloadDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		p.reportError("creating download dir for "+f.URL, err)
		return
	}

	for _, item := range recent {
		p.runItem(item, dir, sum)
	}
}

func (p *Poller) runItem(item *model.Item, dir string, sum *Summary) {
	name := item.Filename()
	if _, ok := p.Ledger.Lookup(name); ok {
		if p.Verbose {
			fmt.Fprintf(p.Out, "%s already in ledger\n", name)
		}
		sum.Skipped++
		return
	}

	result, err := p.Engine.Download(item, dir)
	switch result.Status {
	case download.StatusCompleted:
		sum.Downloaded++
		if err := p.Ledger.Append(model.NewRecord(name, result.Path, p.Now())); err != nil {
			p.reportError("recording "+name, err)
		}
	case download.StatusSkipped:
		// The file predates this run but the ledger never heard of
		// it, e.g. a crash between rename and append. Reconcile with
		// the file's mtime so the ledger converges.
		sum.Skipped++
		if err := p.reconcile(name, result.Path); err != nil {
			p.reportError("recording "+name, err)
		}
	default:
		sum.Failed++
		p.reportError("downloading "+item.Title, err)
	}
}

func (p *Poller) reconcile(name, path string) error {
	completed := p.Now()
	if info, err := os.Stat(path); err == nil {
		completed = info.ModTime()
	}
	return p.Ledger.Append(model.NewRecord(name, path, completed))
}

func (p *Poller) reportError(what string, err error) {
	fmt.Fprintf(p.Out, "[pget] Error %s\n", what)
	fmt.Fprintf(p.Out, "[pget]\t%s\n", err)
}

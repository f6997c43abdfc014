// Package ledger persists the table of completed downloads used for
// deduplication and retention cleanup.
package ledger

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pget-dev/pget/model"
	"gopkg.in/ini.v1"
)

// Ledger is the file-backed set of completed-download records. It is read
// in full at open and the backing file is rewritten in full on every
// mutation.
type Ledger struct {
	path    string
	records []model.Record
}

// Open loads the ledger at path. A missing file yields an empty ledger;
// sections lacking a path or a numeric time are ignored.
func Open(path string) (*Ledger, error) {
	f, err := ini.LooseLoad(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger %s: %w", path, err)
	}

	l := &Ledger{path: path}
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		if !sec.HasKey("path") || !sec.HasKey("time") {
			continue
		}
		t, err := sec.Key("time").Float64()
		if err != nil {
			continue
		}
		l.records = append(l.records, model.Record{
			Name: sec.Name(),
			Path: sec.Key("path").String(),
			Time: t,
		})
	}
	return l, nil
}

// Records returns the in-memory record set.
func (l *Ledger) Records() []model.Record {
	return l.records
}

// Contains scans the ledger for a record equal to rec under the tolerant
// time-window comparison.
func (l *Ledger) Contains(rec model.Record) bool {
	for _, r := range l.records {
		if r.Equal(rec) {
			return true
		}
	}
	return false
}

// Lookup finds the record for a derived filename.
func (l *Ledger) Lookup(name string) (model.Record, bool) {
	for _, r := range l.records {
		if r.Name == name {
			return r, true
		}
	}
	return model.Record{}, false
}

// Append adds a record and immediately rewrites the backing file.
func (l *Ledger) Append(rec model.Record) error {
	l.records = append(l.records, rec)
	return l.rewrite()
}

// RemoveOlder deletes the on-disk file of every record older than the
// retention window and drops the record, rewriting the ledger once at the
// end if anything changed. days == 0 is a strict no-op. A record whose
// file cannot be removed is kept so a later run retries it. Returns the
// number of records dropped.
func (l *Ledger) RemoveOlder(days int, now time.Time, notify func(path string)) (int, error) {
	if days == 0 {
		return 0, nil
	}

	cutoff := float64(now.Unix()) - float64(days)*86400
	kept := l.records[:0:0]
	removed := 0
	var firstErr error

	for _, r := range l.records {
		if !r.OlderThan(cutoff) {
			kept = append(kept, r)
			continue
		}
		if err := os.Remove(r.Path); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to remove %s: %w", r.Path, err)
			}
			kept = append(kept, r)
			continue
		}
		removed++
		if notify != nil {
			notify(r.Path)
		}
	}

	if removed > 0 {
		l.records = kept
		if err := l.rewrite(); err != nil {
			return removed, err
		}
	}
	return removed, firstErr
}

// rewrite replaces the backing file with the full current record set.
func (l *Ledger) rewrite() error {
	f := ini.Empty()
	for _, r := range l.records {
		sec, err := f.NewSection(r.Name)
		if err != nil {
			return fmt.Errorf("failed to build ledger section %s: %w", r.Name, err)
		}
		if _, err := sec.NewKey("path", r.Path); err != nil {
			return fmt.Errorf("failed to build ledger section %s: %w", r.Name, err)
		}
		if _, err := sec.NewKey("time", strconv.FormatFloat(r.Time, 'f', -1, 64)); err != nil {
			return fmt.Errorf("failed to build ledger section %s: %w", r.Name, err)
		}
	}
	if err := f.SaveTo(l.path); err != nil {
		return fmt.Errorf("failed to rewrite ledger %s: %w", l.path, err)
	}
	return nil
}

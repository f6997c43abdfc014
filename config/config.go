// Package config loads the podcasts file: one INI section per feed.
package config

import (
	"fmt"

	"github.com/pget-dev/pget/model"
	"gopkg.in/ini.v1"
)

// DefaultDays is the recency window applied when a section has no days key.
const DefaultDays = 7

var requiredKeys = []string{"title", "url", "dpath", "dir"}

// Load reads the podcasts file at path and returns one Feed per valid
// section. Sections missing any required key or carrying a non-numeric
// days value are skipped entirely.
func Load(path string) ([]*model.Feed, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load podcasts file %s: %w", path, err)
	}
	return feedsFrom(f), nil
}

// LoadLoose behaves like Load but treats a missing file as empty.
func LoadLoose(path string) ([]*model.Feed, error) {
	f, err := ini.LooseLoad(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load podcasts file %s: %w", path, err)
	}
	return feedsFrom(f), nil
}

func feedsFrom(f *ini.File) []*model.Feed {
	var feeds []*model.Feed
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		if !hasRequiredKeys(sec) {
			continue
		}

		days := DefaultDays
		if sec.HasKey("days") {
			d, err := sec.Key("days").Int()
			if err != nil || d < 0 {
				continue
			}
			days = d
		}

		feeds = append(feeds, &model.Feed{
			Title:    sec.Key("title").String(),
			URL:      sec.Key("url").String(),
			BasePath: sec.Key("dpath").String(),
			Dir:      sec.Key("dir").String(),
			Days:     days,
		})
	}
	return feeds
}

func hasRequiredKeys(sec *ini.Section) bool {
	for _, key := range requiredKeys {
		if !sec.HasKey(key) {
			return false
		}
	}
	return true
}

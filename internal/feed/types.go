package feed

import (
	"time"
)

type Metadata struct {
	Title       string
	Link        string
	Description string
}

type Entry struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Summary     string
	PublishedAt *time.Time // Nil when the item carried no parseable date
}

// Parsed is one successful parse of a feed document; Entries keep document order.
type Parsed struct {
	Metadata Metadata
	Entries  []Entry
}

type Seed struct {
	URL     string `yaml:"url"`
	Enabled *bool  `yaml:"enabled"`
}

func (s Seed) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type seedFile struct {
	Feeds []Seed `yaml:"feeds"`
}

package scrape

import (
	"fmt"
	"sort"

	"horse.fit/paperboy/internal/story"
)

// Source converts one source's native API payload into input records. The
// set of sources is closed and selected by name; no source ever performs
// network I/O here, the payload is handed in by the caller.
type Source interface {
	Name() string
	Parse(payload []byte) ([]story.InputRecord, error)
}

var sources = map[string]Source{
	"hackernews": hackerNews{},
	"lobsters":   lobsters{},
	"reddit":     reddit{},
	"slashdot":   slashdot{},
}

// ByName selects a source parser.
func ByName(name string) (Source, error) {
	s, ok := sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q (known: %v)", name, Names())
	}
	return s, nil
}

// Names lists the supported sources, sorted.
func Names() []string {
	out := make([]string, 0, len(sources))
	for name := range sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

package tagger

import (
	"sort"
	"strings"
)

const maxTagLength = 40

// Config is the tag vocabulary. Aliases maps canonical tags to their known
// spellings across all sources; Sources holds per-source override tables
// (raw spelling to canonical tag) for sources whose vocabulary clashes with
// the shared one. Injected at construction so tests can swap tables.
type Config struct {
	Aliases map[string][]string          `yaml:"aliases"`
	Sources map[string]map[string]string `yaml:"sources"`
}

// Normalizer maps source-specific tag spellings to canonical tags. It is
// deterministic and has no failure path: a tag that cannot be resolved and
// does not look like a valid tag on its own is simply dropped.
type Normalizer struct {
	// canonical form keyed by lowercased spelling.
	reverse map[string]string
	// per-source overrides, lowercased.
	sources map[string]map[string]string
	// raw spellings keyed by canonical tag, for admin inspection.
	spellings map[string][]string
}

func NewNormalizer(cfg Config) *Normalizer {
	n := &Normalizer{
		reverse:   map[string]string{},
		sources:   map[string]map[string]string{},
		spellings: map[string][]string{},
	}
	for canonical, aliases := range cfg.Aliases {
		canonical = strings.ToLower(strings.TrimSpace(canonical))
		if canonical == "" {
			continue
		}
		n.reverse[canonical] = canonical
		n.addSpelling(canonical, canonical)
		for _, alias := range aliases {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias == "" {
				continue
			}
			n.reverse[alias] = canonical
			n.addSpelling(canonical, alias)
		}
	}
	for source, table := range cfg.Sources {
		source = strings.ToLower(strings.TrimSpace(source))
		clean := map[string]string{}
		for raw, canonical := range table {
			raw = strings.ToLower(strings.TrimSpace(raw))
			canonical = strings.ToLower(strings.TrimSpace(canonical))
			if raw == "" || canonical == "" {
				continue
			}
			clean[raw] = canonical
			n.addSpelling(canonical, raw)
		}
		n.sources[source] = clean
	}
	return n
}

func (n *Normalizer) addSpelling(canonical, raw string) {
	for _, existing := range n.spellings[canonical] {
		if existing == raw {
			return
		}
	}
	n.spellings[canonical] = append(n.spellings[canonical], raw)
}

// Normalize resolves one raw tag as reported by a source. The per-source
// table wins over the shared alias table; an unmapped tag survives only if
// it passes the validity filter, in which case it is its own canonical form.
func (n *Normalizer) Normalize(sourceName, raw string) (string, bool) {
	tag := strings.ToLower(strings.TrimSpace(raw))
	if tag == "" {
		return "", false
	}
	if table, ok := n.sources[strings.ToLower(sourceName)]; ok {
		if canonical, ok := table[tag]; ok {
			return canonical, true
		}
	}
	if canonical, ok := n.reverse[tag]; ok {
		return canonical, true
	}
	if validTag(tag) {
		return tag, true
	}
	return "", false
}

// NormalizeAll resolves a batch of raw tags, dropping unresolvable ones and
// de-duplicating the result. Order of the output is sorted.
func (n *Normalizer) NormalizeAll(sourceName string, raw []string) []string {
	seen := map[string]struct{}{}
	for _, r := range raw {
		if canonical, ok := n.Normalize(sourceName, r); ok {
			seen[canonical] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// TagsForCanonical returns the known raw spellings of a canonical tag,
// sorted, for admin inspection. Unknown tags yield nil.
func (n *Normalizer) TagsForCanonical(tag string) []string {
	raw := n.spellings[strings.ToLower(strings.TrimSpace(tag))]
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, len(raw))
	copy(out, raw)
	sort.Strings(out)
	return out
}

// Canonicals lists every canonical tag the vocabulary knows about, sorted.
func (n *Normalizer) Canonicals() []string {
	out := make([]string, 0, len(n.spellings))
	for t := range n.spellings {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// validTag accepts short lowercase tokens made of letters, digits and the
// few punctuation marks that appear in real tags ("c++", "c#", ".net",
// "e-ink"). Everything else is noise from the source side.
func validTag(tag string) bool {
	if len(tag) > maxTagLength {
		return false
	}
	letters := 0
	for _, r := range tag {
		switch {
		case r >= 'a' && r <= 'z':
			letters++
		case r >= '0' && r <= '9':
		case r == '+' || r == '#' || r == '.' || r == '-' || r == '_':
		default:
			return false
		}
	}
	return letters > 0
}

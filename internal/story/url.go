package story

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Query parameters that only carry click tracking and never identify a
// distinct page. Two submissions differing only in these are the same story.
var ignoredQueryParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"utm_expid":    {},
	"gclid":        {},
	"_ga":          {},
	"_gl":          {},
	"msclkid":      {},
	"fbclid":       {},
	"mc_cid":       {},
	"mc_eid":       {},
}

var wwwPrefix = regexp.MustCompile(`^www?[0-9]*\.`)

// URL carries a submitted URL together with its normalization, which is the
// identity used for clustering, and the reversed-label domain used for
// parent-domain prefix queries.
type URL struct {
	Raw    string
	Host   string
	Norm   string
	Domain string
}

// ParseURL normalizes a raw submission URL. The normalization lowercases the
// host, strips a leading www-style label, default ports, tracking query
// parameters, empty path segments and a short trailing file extension, then
// joins the remaining tokens. Anything unparseable or hostless is rejected.
func ParseURL(raw string) (URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return URL{}, fmt.Errorf("url is empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return URL{}, fmt.Errorf("parse url %q: %w", trimmed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return URL{}, fmt.Errorf("url %q: unsupported scheme %q", trimmed, u.Scheme)
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return URL{}, fmt.Errorf("url %q has no host", trimmed)
	}

	stripped := wwwPrefix.ReplaceAllString(host, "")
	if stripped == "" {
		stripped = host
	}

	tokens := []string{stripped}
	tokens = append(tokens, pathTokens(u.EscapedPath())...)
	tokens = append(tokens, queryTokens(u.RawQuery)...)

	return URL{
		Raw:    trimmed,
		Host:   host,
		Norm:   strings.Join(tokens, ":"),
		Domain: ReverseDomain(stripped),
	}, nil
}

// NormHash is a stable 64-bit digest of the normalization string. Story
// identity derives from it, so it must not vary across processes.
func (u URL) NormHash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(u.Norm))
	return h.Sum64()
}

// ReverseDomain flips host labels so a registrable domain becomes a prefix:
// "news.example.com" -> "com.example.news".
func ReverseDomain(host string) string {
	labels := strings.Split(host, ".")
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return strings.Join(labels, ".")
}

// DomainMatchesPrefix reports whether a reversed-label domain falls under the
// reversed-label prefix, matching only at label boundaries so that
// "com.example" does not match "com.examples".
func DomainMatchesPrefix(domain, prefix string) bool {
	if prefix == "" {
		return true
	}
	if domain == prefix {
		return true
	}
	return strings.HasPrefix(domain, prefix+".")
}

func pathTokens(path string) []string {
	segments := strings.Split(path, "/")
	tokens := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		tokens = append(tokens, strings.ToLower(seg))
	}
	// Strip anything that looks like a trailing file type (.html etc).
	if n := len(tokens); n > 0 {
		if base, ext, ok := cutLast(tokens[n-1], '.'); ok && len(ext) <= 6 && base != "" {
			tokens[n-1] = base
		}
	}
	return tokens
}

func queryTokens(rawQuery string) []string {
	if rawQuery == "" {
		return nil
	}
	type pair struct{ key, value string }
	pairs := make([]pair, 0, 4)
	for _, bit := range strings.Split(rawQuery, "&") {
		if bit == "" {
			continue
		}
		key, value, _ := strings.Cut(bit, "=")
		if _, ignored := ignoredQueryParams[strings.ToLower(key)]; ignored {
			continue
		}
		pairs = append(pairs, pair{key, value})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})
	tokens := make([]string, 0, len(pairs)*2)
	for _, p := range pairs {
		tokens = append(tokens, p.key, p.value)
	}
	return tokens
}

func cutLast(s string, sep byte) (before, after string, found bool) {
	if idx := strings.LastIndexByte(s, sep); idx >= 0 {
		return s[:idx], s[idx+1:], true
	}
	return s, "", false
}

package story

import "testing"

func TestParseURLNormalizationEquivalent(t *testing.T) {
	t.Parallel()

	cases := [][2]string{
		{"http://google.com", "https://google.com"},
		{"https://www.google.com", "https://google.com"},
		{"https://www3.google.com", "https://google.com"},
		{"https://www.google.com/foo.html", "https://www.google.com/foo"},
		{"https://www.google.com/", "https://www.google.com"},
		{"https://www.google.com/foo", "https://www.google.com/foo/"},
		{"https://www.google.com//foo", "https://www.google.com/foo"},
		{"http://x.com?utm_source=foo", "http://x.com"},
		{"http://x.com?fbclid=foo&gclid=bar", "http://x.com"},
		{"http://x.com?fbclid=foo", "http://x.com?fbclid=other"},
		{"http://example.com/x", "http://example.com/x/"},
	}
	for _, c := range cases {
		a, err := ParseURL(c[0])
		if err != nil {
			t.Fatalf("parse %q: %v", c[0], err)
		}
		b, err := ParseURL(c[1])
		if err != nil {
			t.Fatalf("parse %q: %v", c[1], err)
		}
		if a.Norm != b.Norm {
			t.Fatalf("expected %q and %q to normalize equal: %q != %q", c[0], c[1], a.Norm, b.Norm)
		}
		if a.NormHash() != b.NormHash() {
			t.Fatalf("hash mismatch for %q / %q", c[0], c[1])
		}
	}
}

func TestParseURLNormalizationDistinct(t *testing.T) {
	t.Parallel()

	cases := [][2]string{
		{"https://google.com", "https://facebook.com"},
		{"https://google.com/abc", "https://google.com/def"},
		{"https://google.com/?page=1", "https://google.com/?page=2"},
		{"https://example.com", "https://examples.com"},
	}
	for _, c := range cases {
		a, err := ParseURL(c[0])
		if err != nil {
			t.Fatalf("parse %q: %v", c[0], err)
		}
		b, err := ParseURL(c[1])
		if err != nil {
			t.Fatalf("parse %q: %v", c[1], err)
		}
		if a.Norm == b.Norm {
			t.Fatalf("expected %q and %q to normalize differently, both %q", c[0], c[1], a.Norm)
		}
	}
}

func TestParseURLRejects(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", "notaurl", "ftp://example.com/x", "http://"} {
		if _, err := ParseURL(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestReverseDomain(t *testing.T) {
	t.Parallel()

	if got := ReverseDomain("news.example.com"); got != "com.example.news" {
		t.Fatalf("unexpected reversed domain: %q", got)
	}
	if got := ReverseDomain("example.com"); got != "com.example" {
		t.Fatalf("unexpected reversed domain: %q", got)
	}
	if got := ReverseDomain("localhost"); got != "localhost" {
		t.Fatalf("unexpected reversed domain: %q", got)
	}
}

func TestDomainMatchesPrefix(t *testing.T) {
	t.Parallel()

	prefix := ReverseDomain("example.com")
	for _, host := range []string{"example.com", "www.example.com", "blog.example.com", "a.b.example.com"} {
		u, err := ParseURL("https://" + host + "/x")
		if err != nil {
			t.Fatalf("parse %s: %v", host, err)
		}
		if !DomainMatchesPrefix(u.Domain, prefix) {
			t.Fatalf("expected %s (domain %q) to match prefix %q", host, u.Domain, prefix)
		}
	}
	for _, host := range []string{"otherexample.com", "examples.com", "example.org"} {
		u, err := ParseURL("https://" + host + "/x")
		if err != nil {
			t.Fatalf("parse %s: %v", host, err)
		}
		if DomainMatchesPrefix(u.Domain, prefix) {
			t.Fatalf("expected %s (domain %q) to not match prefix %q", host, u.Domain, prefix)
		}
	}
}

func TestParseURLDomainStripsWWW(t *testing.T) {
	t.Parallel()

	u, err := ParseURL("https://www.example.com/story")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Domain != "com.example" {
		t.Fatalf("expected www label stripped from domain, got %q", u.Domain)
	}
	if u.Host != "www.example.com" {
		t.Fatalf("expected original host preserved, got %q", u.Host)
	}
}

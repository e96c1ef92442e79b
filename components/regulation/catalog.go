package regulation

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Entry describes one regulatory domain and the terms that reference it.
// Patterns match case-insensitively on whole words, a pattern can opt out
// of case folding with a (?-i:...) group.
type Entry struct {
	Domain      Domain   `json:"domain" yaml:"domain" mapstructure:"domain"`
	Title       string   `json:"title" yaml:"title" mapstructure:"title"`
	Description string   `json:"description,omitempty" yaml:"description" mapstructure:"description"`
	Patterns    []string `json:"patterns,omitempty" yaml:"patterns" mapstructure:"patterns"`
	compiled    []*regexp.Regexp
}

// Match is a domain mentioned in a text, with the terms that triggered it
type Match struct {
	Domain Domain
	Terms  []string
}

// Catalog is an ordered registry of regulatory domains.
// threadsafe
type Catalog struct {
	entries []*Entry
	mtx     sync.RWMutex
}

// DefaultEntries returns the built-in catalog entries
func DefaultEntries() []Entry {
	return []Entry{
		{
			Domain:      EASA,
			Title:       "European Union Aviation Safety Agency",
			Description: "EU civil aviation rules: Basic Regulation, Part-21, Part-M/145/CAMO, Certification Specifications (CS) and AMC/GM.",
			Patterns: []string{
				`EASA`,
				`European Union Aviation Safety Agency`,
				`CS-?(?:23|25|27|29|ETSO|FCD|APU|E|P)`,
				`(?-i:AMC)`,
				`(?-i:GM)\s?\d`,
				`Part-(?:21|66|145|CAMO|ML|M)`,
				`Easy Access Rules`,
			},
		},
		{
			Domain:      DEFSTAN,
			Title:       "UK Defence Standards",
			Description: "UK Ministry of Defence standards, in particular DEF STAN 00-970 design and airworthiness requirements for service aircraft.",
			Patterns: []string{
				`DEF[- ]?STAN(?:\s?\d{2}-\d{2,3})?`,
				`Defence Standard`,
				`00-970`,
				`UK MOD`,
				`MAA RA\s?\d{4}`,
			},
		},
		{
			Domain:      EDA,
			Title:       "European Defence Agency",
			Description: "European Military Airworthiness Requirements (EMAR) and EMACC guidance published by the European Defence Agency.",
			Patterns: []string{
				`(?-i:EDA)`,
				`European Defence Agency`,
				`EMAR(?:\s?\d{2,3})?`,
				`EMACC`,
			},
		},
		{
			Domain:      FAA,
			Title:       "Federal Aviation Administration",
			Description: "US civil aviation rules: 14 CFR (FARs) as published in the eCFR, Advisory Circulars and Orders.",
			Patterns: []string{
				`FAA`,
				`Federal Aviation Administration`,
				`14\s?CFR`,
				`eCFR`,
				`(?-i:FARs?)\s?(?:Part\s?)?\d+`,
				`Advisory Circular`,
				`(?-i:AC)\s?\d{2,3}-\d+`,
			},
		},
		{
			Domain:      JSSG,
			Title:       "Joint Service Specification Guides",
			Description: "US DoD Joint Service Specification Guides for air system performance and airworthiness (JSSG-2001, JSSG-2006, ...).",
			Patterns: []string{
				`JSSG(?:-\d{4})?`,
				`Joint Service Specification Guide`,
				`MIL-HDBK-516`,
			},
		},
	}
}

// NewCatalog returns a catalog seeded with the given entries
func NewCatalog(entries ...Entry) (*Catalog, error) {
	ret := new(Catalog)
	for _, e := range entries {
		if err := ret.Register(e); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// DefaultCatalog returns a catalog with the built-in domains
func DefaultCatalog() *Catalog {
	ret, err := NewCatalog(DefaultEntries()...)
	if err != nil {
		panic(err)
	}
	return ret
}

// Register adds or replaces an entry. Replacing keeps the original position.
func (c *Catalog) Register(e Entry) error {
	d, err := ParseDomain(string(e.Domain))
	if err != nil {
		return err
	}
	e.Domain = d
	if e.Title == "" {
		e.Title = string(d)
	}
	if len(e.Patterns) == 0 {
		e.Patterns = []string{regexp.QuoteMeta(string(d))}
	}
	e.compiled = make([]*regexp.Regexp, 0, len(e.Patterns))
	for _, p := range e.Patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return fmt.Errorf("domain %s pattern %q: %w", d, p, err)
		}
		e.compiled = append(e.compiled, re)
	}
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for idx, v := range c.entries {
		if v.Domain == d {
			c.entries[idx] = &e
			return nil
		}
	}
	c.entries = append(c.entries, &e)
	return nil
}

// Lookup returns the entry of a domain
func (c *Catalog) Lookup(d Domain) (Entry, bool) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	for _, v := range c.entries {
		if v.Domain == d {
			return *v, true
		}
	}
	return Entry{}, false
}

// Title returns the display title of a domain, falling back to the tag
func (c *Catalog) Title(d Domain) string {
	if e, ok := c.Lookup(d); ok {
		return e.Title
	}
	return string(d)
}

// Domains returns the registered domains in catalog order
func (c *Catalog) Domains() []Domain {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	ret := make([]Domain, 0, len(c.entries))
	for _, v := range c.entries {
		ret = append(ret, v.Domain)
	}
	return ret
}

// Entries returns a copy of all entries in catalog order
func (c *Catalog) Entries() []Entry {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	ret := make([]Entry, 0, len(c.entries))
	for _, v := range c.entries {
		ret = append(ret, *v)
	}
	return ret
}

// Detect returns the domains mentioned in text, in catalog order.
// When only is not empty, domains outside of it are ignored.
func (c *Catalog) Detect(text string, only ...Domain) []Match {
	allowed := make(map[Domain]struct{}, len(only))
	for _, d := range only {
		allowed[d] = struct{}{}
	}
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	var ret []Match
	for _, e := range c.entries {
		if len(allowed) > 0 {
			if _, ok := allowed[e.Domain]; !ok {
				continue
			}
		}
		var terms []string
		for _, re := range e.compiled {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				terms = appendUnique(terms, strings.TrimSpace(m[1]))
			}
		}
		if len(terms) > 0 {
			ret = append(ret, Match{Domain: e.Domain, Terms: terms})
		}
	}
	return ret
}

// findWords returns the matches of re not glued to a letter or digit.
// A rejected match restarts the search one rune later.
func findWords(re *regexp.Regexp, text string) []string {
	var ret []string
	for pos := 0; pos < len(text); {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end > start && isBoundary(text, start, end) {
			ret = append(ret, text[start:end])
			pos = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		pos = start + max(size, 1)
	}
	return ret
}

func isBoundary(text string, start int, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return list
		}
	}
	return append(list, v)
}

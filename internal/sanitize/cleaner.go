// Package sanitize masks banned words in outgoing chat text.
package sanitize

import (
	"cmp"
	"html"
	"regexp"
	"slices"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultWords is the built-in banned word list. Configured words are added to it.
var DefaultWords = []string{
	"ass", "asshole", "bastard", "bitch", "bollocks", "bullshit", "crap",
	"cunt", "damn", "dick", "fuck", "fucker", "fucking", "motherfucker",
	"piss", "prick", "pussy", "shit", "slut", "twat", "wanker", "whore",
}

// Cleaner masks banned words with asterisks. Text is otherwise returned as
// typed unless markup stripping was enabled.
type Cleaner struct {
	policy *bluemonday.Policy
	base   []string

	mu    sync.Mutex
	cache map[string]*regexp.Regexp
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithMarkupStripping treats input as HTML: tags are removed and entities
// decoded before masking. Used by the dev server when strip_markup is set.
func WithMarkupStripping() Option {
	return func(c *Cleaner) {
		c.policy = bluemonday.StrictPolicy()
	}
}

// New returns a cleaner using the default word list.
func New(opts ...Option) *Cleaner {
	return NewWithWords(DefaultWords, opts...)
}

// NewWithWords returns a cleaner whose built-in list is base.
func NewWithWords(base []string, opts ...Option) *Cleaner {
	c := &Cleaner{
		base:  base,
		cache: make(map[string]*regexp.Regexp),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StripsMarkup reports whether the cleaner removes HTML markup.
func (c *Cleaner) StripsMarkup() bool {
	return c.policy != nil
}

// Clean returns text with every banned word (the built-in list plus extra)
// replaced by asterisks of the same length. Matching is case-insensitive and
// on whole words, where a word boundary is any rune that is not a letter,
// digit or underscore.
func (c *Cleaner) Clean(text string, extra []string) string {
	if c.policy != nil {
		text = html.UnescapeString(c.policy.Sanitize(text))
	}

	re := c.pattern(extra)
	if re == nil {
		return text
	}
	return mask(re, text)
}

func mask(re *regexp.Regexp, text string) string {
	var b strings.Builder
	last := 0
	for pos := 0; pos < len(text); {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if start < end && boundaryBefore(text, start) && boundaryAfter(text, end) {
			b.WriteString(text[last:start])
			b.WriteString(strings.Repeat("*", utf8.RuneCountInString(text[start:end])))
			last, pos = end, end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		pos = start + max(size, 1)
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func (c *Cleaner) pattern(extra []string) *regexp.Regexp {
	words := make([]string, 0, len(c.base)+len(extra))
	for _, list := range [][]string{c.base, extra} {
		for _, w := range list {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" || slices.Contains(words, w) {
				continue
			}
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return nil
	}

	// Longest first, so "asshole" wins over "ass" at the same position.
	slices.SortStableFunc(words, func(a, b string) int {
		return cmp.Compare(len(b), len(a))
	})
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	key := strings.Join(quoted, "|")

	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.cache[key]; ok {
		return re
	}
	re := regexp.MustCompile(`(?i)(?:` + key + `)`)
	c.cache[key] = re
	return re
}

package sanitize

import "testing"

func TestCleanMasksBannedWords(t *testing.T) {
	c := New()

	tests := []struct {
		name  string
		in    string
		extra []string
		want  string
	}{
		{"clean text untouched", "hello there", nil, "hello there"},
		{"configured word", "hello there", []string{"hello"}, "***** there"},
		{"case insensitive", "HeLLo there", []string{"hello"}, "***** there"},
		{"whole words only", "shell hello", []string{"hell"}, "shell hello"},
		{"built-in word", "oh shit", nil, "oh ****"},
		{"punctuation boundary", "damn!", nil, "****!"},
		{"adjacent words", "shit shit shit", nil, "**** **** ****"},
		{"longest word wins", "you asshole", nil, "you *******"},
		{"blank extra ignored", "fine", []string{" ", ""}, "fine"},
		{"angle brackets kept", "if a<b and c>d then", nil, "if a<b and c>d then"},
		{"entities kept", "type &lt;b&gt; literally", nil, "type &lt;b&gt; literally"},
		{"markup kept", "<b>hi</b> & bye", nil, "<b>hi</b> & bye"},
		{"cyrillic word", "ты сука", []string{"сука"}, "ты ****"},
		{"cyrillic inside word", "сукам", []string{"сука"}, "сукам"},
		{"cyrillic case insensitive", "СУКА!", []string{"сука"}, "****!"},
		{"symbol in word", "you a$$", []string{"a$$"}, "you ***"},
		{"symbol word not inside word", "a$$x", []string{"a$$"}, "a$$x"},
		{"non-ascii ending", "straße", []string{"straße"}, "******"},
		{"non-ascii neighbour is a letter", "éstraße", []string{"straße"}, "éstraße"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Clean(tt.in, tt.extra); got != tt.want {
				t.Fatalf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanMarkupStrippingIsOptIn(t *testing.T) {
	plain := NewWithWords(nil)
	if plain.StripsMarkup() {
		t.Fatal("markup stripping should be off by default")
	}

	c := NewWithWords([]string{"bye"}, WithMarkupStripping())
	if !c.StripsMarkup() {
		t.Fatal("expected markup stripping to be enabled")
	}
	got := c.Clean(`<script>alert(1)</script><b>hi</b> & bye`, nil)
	if got != "hi & ***" {
		t.Fatalf("unexpected sanitized text %q", got)
	}
}

func TestCleanWithoutWords(t *testing.T) {
	c := NewWithWords(nil)
	if got := c.Clean("anything goes", nil); got != "anything goes" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestPatternIsCached(t *testing.T) {
	c := NewWithWords([]string{"a"})
	first := c.pattern([]string{"b"})
	second := c.pattern([]string{"B "})
	if first != second {
		t.Fatal("expected cached pattern for equivalent word lists")
	}
}

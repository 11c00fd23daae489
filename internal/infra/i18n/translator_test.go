//go:build !integration

package i18n

import (
	"testing"
)

func TestTranslator(t *testing.T) {
	translator, err := newTranslatorFromBytes([]byte("greeting: Hello\nfarewell: |\n  Bye\n  now\n"))
	if err != nil {
		t.Fatalf("newTranslatorFromBytes failed: %v", err)
	}

	t.Run("should return a simple entry", func(t *testing.T) {
		if got, ok := translator.Lookup("greeting"); !ok || got != "Hello" {
			t.Errorf("wanted 'Hello', got '%s' (%v)", got, ok)
		}
	})

	t.Run("should keep block scalars intact", func(t *testing.T) {
		if got, _ := translator.Lookup("farewell"); got != "Bye\nnow\n" {
			t.Errorf("wanted 'Bye\\nnow\\n', got %q", got)
		}
	})

	t.Run("should report a missing key", func(t *testing.T) {
		if _, ok := translator.Lookup("nonexistent_key"); ok {
			t.Error("Lookup should report a missing key")
		}
	})

	t.Run("should reject malformed yaml", func(t *testing.T) {
		if _, err := newTranslatorFromBytes([]byte("greeting: [unterminated")); err == nil {
			t.Error("expected a parse error")
		}
	})
}

func TestEmbeddedCatalog(t *testing.T) {
	tr, err := NewTranslator(LocalesFS, "en")
	if err != nil {
		t.Fatalf("NewTranslator failed: %v", err)
	}
	if tr.Lang() != "en" {
		t.Errorf("expected lang en, got %s", tr.Lang())
	}
	for _, family := range []string{"trial_ending", "past_due", "suspended"} {
		for _, part := range []string{"subject", "html", "text"} {
			if _, ok := tr.Lookup(family + "." + part); !ok {
				t.Errorf("missing %s.%s", family, part)
			}
		}
	}

	if _, err := NewTranslator(LocalesFS, "xx"); err == nil {
		t.Error("expected an error for an unknown language")
	}
}

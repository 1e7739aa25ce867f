package security

import (
	"strings"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	valid := []string{"title", "product_name", "_internal", "field2", "a"}
	for _, name := range valid {
		if err := ValidateIdentifier(name); err != nil {
			t.Errorf("expected %q to be valid: %v", name, err)
		}
	}

	invalid := []string{
		"",
		"Title",
		"1field",
		"field-name",
		"field name",
		"field;drop",
		"café",
		strings.Repeat("a", 64),
	}
	for _, name := range invalid {
		if err := ValidateIdentifier(name); err == nil {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}

func TestValidateIdentifierReservedWords(t *testing.T) {
	for _, word := range []string{"select", "table", "where", "user", "order"} {
		if err := ValidateIdentifier(word); err == nil {
			t.Errorf("expected reserved word %q to be rejected", word)
		}
	}
}

func TestValidateFieldName(t *testing.T) {
	// Reserved SQL words are legal field names: fields live in JSONB keys.
	valid := []string{"title", "order", "user", "limit", "desc", "default", "select", "_meta"}
	for _, name := range valid {
		if err := ValidateFieldName(name); err != nil {
			t.Errorf("expected %q to be valid: %v", name, err)
		}
	}

	invalid := []string{"", "Title", "1field", "field name", "café", strings.Repeat("a", 64)}
	for _, name := range invalid {
		if err := ValidateFieldName(name); err == nil {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}

func TestQuoteIdentifier(t *testing.T) {
	if got := QuoteIdentifier("title"); got != `"title"` {
		t.Errorf("unexpected quoting %s", got)
	}
	if got := QuoteIdentifier(`odd"name`); got != `"odd""name"` {
		t.Errorf("embedded quote not escaped: %s", got)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Product Catalog": "product_catalog",
		"blog-posts":      "blog_posts",
		"  FAQ  ":         "faq",
		"Team's Members!": "teams_members",
		"a  b   c":        "a_b_c",
		"___x___":         "x",
		"!!!":             "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

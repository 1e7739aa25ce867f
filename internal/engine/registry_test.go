package engine

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestStorageIdentifierDeterministic(t *testing.T) {
	siteID := uuid.MustParse("a1b2c3d4-0000-0000-0000-000000000000")

	table, err := StorageIdentifier(siteID, "Product Catalog")
	if err != nil {
		t.Fatal(err)
	}
	if table != "dynamic_a1b2c3d4_product_catalog" {
		t.Errorf("unexpected identifier %s", table)
	}

	again, err := StorageIdentifier(siteID, "Product Catalog")
	if err != nil {
		t.Fatal(err)
	}
	if table != again {
		t.Error("identifier must be deterministic")
	}
}

func TestStorageIdentifierSitesDoNotCollide(t *testing.T) {
	a, err := StorageIdentifier(uuid.New(), "posts")
	if err != nil {
		t.Fatal(err)
	}
	b, err := StorageIdentifier(uuid.New(), "posts")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("identifiers for different sites collided: %s", a)
	}
}

func TestStorageIdentifierSlugging(t *testing.T) {
	siteID := uuid.New()

	cases := map[string]string{
		"Team Members":  "team_members",
		"blog-posts":    "blog_posts",
		"FAQ  Entries!": "faq_entries",
	}
	for name, wantSuffix := range cases {
		table, err := StorageIdentifier(siteID, name)
		if err != nil {
			t.Errorf("%q: %v", name, err)
			continue
		}
		if !strings.HasSuffix(table, "_"+wantSuffix) {
			t.Errorf("%q: expected suffix %s, got %s", name, wantSuffix, table)
		}
		if !strings.HasPrefix(table, "dynamic_") {
			t.Errorf("%q: expected dynamic_ prefix, got %s", name, table)
		}
	}
}

func TestStorageIdentifierRejectsEmptySlug(t *testing.T) {
	if _, err := StorageIdentifier(uuid.New(), "!!!"); err == nil {
		t.Error("name that slugs to nothing must be rejected")
	}
	if _, err := StorageIdentifier(uuid.New(), ""); err == nil {
		t.Error("empty name must be rejected")
	}
}

package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/linkstash/internal/apperror"
)

func TestTagAttachCreatesAndIncrements(t *testing.T) {
	db := newTestDB(t)

	if err := db.Attach(context.Background(), "GoLang"); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if err := db.Attach(context.Background(), "golang"); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}

	tag, err := db.GetBySlug(context.Background(), "golang")
	if err != nil {
		t.Fatalf("GetBySlug() error = %v", err)
	}
	if tag.Count != 2 {
		t.Errorf("Count = %d, want 2", tag.Count)
	}
	// Display name follows the most recent write.
	if tag.Name != "golang" {
		t.Errorf("Name = %q, want %q", tag.Name, "golang")
	}
}

func TestTagDetachBalancesAttach(t *testing.T) {
	db := newTestDB(t)

	if err := db.Attach(context.Background(), "reading"); err != nil {
		t.Fatal(err)
	}
	if err := db.Attach(context.Background(), "reading"); err != nil {
		t.Fatal(err)
	}
	if err := db.Detach(context.Background(), "reading"); err != nil {
		t.Fatalf("Detach() error = %v", err)
	}

	tag, err := db.GetBySlug(context.Background(), "reading")
	if err != nil {
		t.Fatal(err)
	}
	if tag.Count != 1 {
		t.Errorf("Count after attach+attach+detach = %d, want 1", tag.Count)
	}
}

func TestTagDetachMissingIsNoop(t *testing.T) {
	db := newTestDB(t)

	if err := db.Detach(context.Background(), "never-attached"); err != nil {
		t.Errorf("Detach() on missing tag error = %v, want nil", err)
	}
}

func TestTagListHidesZeroCounts(t *testing.T) {
	db := newTestDB(t)

	if err := db.Attach(context.Background(), "visible"); err != nil {
		t.Fatal(err)
	}
	if err := db.Attach(context.Background(), "hidden"); err != nil {
		t.Fatal(err)
	}
	if err := db.Detach(context.Background(), "hidden"); err != nil {
		t.Fatal(err)
	}

	tags, err := db.List(context.Background(), 50)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(tags) != 1 || tags[0].Slug != "visible" {
		t.Errorf("List() = %v, want only the visible tag", tags)
	}

	// The row itself is never deleted, only hidden.
	if _, err := db.GetBySlug(context.Background(), "hidden"); err != nil {
		t.Errorf("GetBySlug(hidden) error = %v, want the row to still exist", err)
	}
}

func TestTagListOrdersByPopularity(t *testing.T) {
	db := newTestDB(t)

	for i := 0; i < 3; i++ {
		if err := db.Attach(context.Background(), "popular"); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.Attach(context.Background(), "niche"); err != nil {
		t.Fatal(err)
	}

	tags, err := db.List(context.Background(), 50)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(tags) != 2 || tags[0].Slug != "popular" || tags[1].Slug != "niche" {
		t.Errorf("List() order = %v, want popular first", tags)
	}
}

func TestTagGetBySlugNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetBySlug(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetBySlug() error = %v, want ErrNotFound", err)
	}
}

package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *FSStore {
	t.Helper()
	store, err := NewFSStore(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	return store
}

func TestPutExistsDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := "screenshots/user1/abc.jpg"

	ok, err := store.Exists(ctx, key)
	if err != nil || ok {
		t.Fatalf("Exists() before put = %v, %v; want false, nil", ok, err)
	}

	if err := store.Put(ctx, key, []byte("jpeg-bytes")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	ok, err = store.Exists(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Exists() after put = %v, %v; want true, nil", ok, err)
	}

	data, err := os.ReadFile(filepath.Join(store.Root(), "screenshots", "user1", "abc.jpg"))
	if err != nil {
		t.Fatalf("reading stored blob: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("stored data = %q", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	ok, _ = store.Exists(ctx, key)
	if ok {
		t.Error("Exists() after delete = true")
	}
}

func TestDeleteMissingKeyIsNoop(t *testing.T) {
	store := newTestStore(t)

	if err := store.Delete(context.Background(), "screenshots/u/missing.jpg"); err != nil {
		t.Errorf("Delete() on missing key error = %v, want nil", err)
	}
}

func TestURL(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), "http://localhost:8080/")
	if err != nil {
		t.Fatal(err)
	}

	got := store.URL("screenshots/u/a.jpg")
	want := "http://localhost:8080/screenshots/u/a.jpg"
	if got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"../outside.jpg", "screenshots/../../etc/passwd", ""} {
		if err := store.Put(ctx, key, []byte("x")); err == nil {
			t.Errorf("Put(%q) succeeded, want error", key)
		}
	}
}

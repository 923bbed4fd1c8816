package imagestore

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"derroche/internal/testutil"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("save_and_load", func(t *testing.T) {
		store, err := NewFileStore(t.TempDir())
		testutil.AssertNoError(t, err)

		ref, err := store.Save(ctx, 42, []byte("receipt"))
		testutil.AssertNoError(t, err)

		if !strings.HasPrefix(ref, "42_") || !strings.HasSuffix(ref, ".jpg") {
			t.Errorf("unexpected ref format %q", ref)
		}

		data, err := store.Load(ctx, ref)
		testutil.AssertNoError(t, err)
		if !bytes.Equal(data, []byte("receipt")) {
			t.Errorf("expected stored bytes back, got %q", data)
		}
	})

	t.Run("unique_refs", func(t *testing.T) {
		store, _ := NewFileStore(t.TempDir())
		a, _ := store.Save(ctx, 1, []byte("a"))
		b, _ := store.Save(ctx, 1, []byte("b"))
		if a == b {
			t.Errorf("expected distinct refs, got %q twice", a)
		}
	})

	t.Run("missing", func(t *testing.T) {
		store, _ := NewFileStore(t.TempDir())
		_, err := store.Load(ctx, "1_20250101_000000_deadbeef.jpg")
		testutil.AssertAppError(t, err, "IMAGE_NOT_FOUND")
	})

	t.Run("rejects_paths", func(t *testing.T) {
		store, _ := NewFileStore(t.TempDir())
		for _, ref := range []string{"../etc/passwd", "sub/file.jpg", "", ".hidden"} {
			_, err := store.Load(ctx, ref)
			testutil.AssertAppError(t, err, "IMAGE_NOT_FOUND")
		}
	})

	t.Run("delete", func(t *testing.T) {
		store, _ := NewFileStore(t.TempDir())
		ref, _ := store.Save(ctx, 1, []byte("a"))

		testutil.AssertNoError(t, store.Delete(ctx, ref))
		testutil.AssertNoError(t, store.Delete(ctx, ref))

		_, err := store.Load(ctx, ref)
		testutil.AssertAppError(t, err, "IMAGE_NOT_FOUND")
	})
}

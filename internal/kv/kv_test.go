// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kv

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// =============================================================================
// BACKEND CONTRACT TESTS
// =============================================================================

func openBackend(t *testing.T, backend, dir string) Store {
	t.Helper()
	store, err := Open(Options{Backend: backend, Dir: dir})
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", backend, err)
	}
	return store
}

func TestStore_Contract(t *testing.T) {
	for _, backend := range Backends() {
		t.Run(backend, func(t *testing.T) {
			store := openBackend(t, backend, t.TempDir())
			defer store.Close()

			if _, ok, err := store.Get("missing"); err != nil || ok {
				t.Fatalf("Get(missing) = ok %v, err %v; want absent", ok, err)
			}

			if err := store.Set("themeColor", "dark_mode"); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if err := store.Set("themeColor", "light_mode"); err != nil {
				t.Fatalf("Set overwrite failed: %v", err)
			}
			got, ok, err := store.Get("themeColor")
			if err != nil || !ok {
				t.Fatalf("Get(themeColor) = ok %v, err %v", ok, err)
			}
			if got != "light_mode" {
				t.Errorf("Get(themeColor) = %q, want %q", got, "light_mode")
			}

			for _, k := range []string{"chat-titles", "saved-chats", "Chat 1"} {
				if err := store.Set(k, "[]"); err != nil {
					t.Fatalf("Set(%q) failed: %v", k, err)
				}
			}
			keys, err := store.Keys()
			if err != nil {
				t.Fatalf("Keys failed: %v", err)
			}
			want := []string{"Chat 1", "chat-titles", "saved-chats", "themeColor"}
			if diff := cmp.Diff(want, keys); diff != "" {
				t.Errorf("Keys mismatch (-want +got):\n%s", diff)
			}

			if err := store.Delete("Chat 1"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if err := store.Delete("never-set"); err != nil {
				t.Errorf("Delete of missing key should succeed, got %v", err)
			}
			if _, ok, _ := store.Get("Chat 1"); ok {
				t.Error("Deleted key still present")
			}

			if err := store.Clear(); err != nil {
				t.Fatalf("Clear failed: %v", err)
			}
			keys, err = store.Keys()
			if err != nil {
				t.Fatalf("Keys after Clear failed: %v", err)
			}
			if len(keys) != 0 {
				t.Errorf("Keys after Clear = %v, want none", keys)
			}
		})
	}
}

func TestStore_ClosedReturnsErrClosed(t *testing.T) {
	for _, backend := range Backends() {
		t.Run(backend, func(t *testing.T) {
			store := openBackend(t, backend, t.TempDir())
			if err := store.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}
			if err := store.Close(); err != nil {
				t.Errorf("second Close should be a no-op, got %v", err)
			}

			if _, _, err := store.Get("k"); !errors.Is(err, ErrClosed) {
				t.Errorf("Get after Close: got %v, want ErrClosed", err)
			}
			if err := store.Set("k", "v"); !errors.Is(err, ErrClosed) {
				t.Errorf("Set after Close: got %v, want ErrClosed", err)
			}
			if _, err := store.Keys(); !errors.Is(err, ErrClosed) {
				t.Errorf("Keys after Close: got %v, want ErrClosed", err)
			}
		})
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	for _, backend := range []string{BackendFile, BackendPebble, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()

			store := openBackend(t, backend, dir)
			if err := store.Set("saved-chats", `[{"id":"msg_1"}]`); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if err := store.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}

			store = openBackend(t, backend, dir)
			defer store.Close()
			got, ok, err := store.Get("saved-chats")
			if err != nil || !ok {
				t.Fatalf("Get after reopen = ok %v, err %v", ok, err)
			}
			if got != `[{"id":"msg_1"}]` {
				t.Errorf("Get after reopen = %q", got)
			}
		})
	}
}

// =============================================================================
// FACTORY TESTS
// =============================================================================

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "redis", Dir: t.TempDir()})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Open(redis) error = %v, want ErrUnknownBackend", err)
	}
}

func TestOpen_RequiresDir(t *testing.T) {
	if _, err := Open(Options{Backend: BackendFile}); err == nil {
		t.Error("Open(file) without Dir should fail")
	}
	store, err := Open(Options{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("Open(memory) without Dir failed: %v", err)
	}
	store.Close()
}

func TestOpen_DefaultsToFile(t *testing.T) {
	dir := t.TempDir()
	store := openBackend(t, "", dir)
	defer store.Close()

	if _, ok := store.(*File); !ok {
		t.Fatalf("Open with empty backend returned %T, want *File", store)
	}
	if err := store.Set("k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, fileStoreName)); err != nil {
		t.Errorf("store file not written: %v", err)
	}
}

// =============================================================================
// FILE BACKEND TESTS
// =============================================================================

func TestFile_WritesPrivateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	if err := f.Set("k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 && os.PathSeparator == '/' {
		t.Errorf("store file mode = %o, want 600", perm)
	}
}

func TestFile_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFile(path); err == nil {
		t.Error("OpenFile should reject a corrupt document")
	}
}

func TestFile_EmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile(empty) failed: %v", err)
	}
	keys, _ := f.Keys()
	if len(keys) != 0 {
		t.Errorf("Keys = %v, want none", keys)
	}
}

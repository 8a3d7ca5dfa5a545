package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

// storeFactories lets every Store implementation run the same contract.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"file": func() Store {
			s, err := NewFileStore(t.TempDir())
			if err != nil {
				t.Fatalf("NewFileStore: %v", err)
			}
			return s
		},
	}
}

func TestStoreContract(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore()
			defer store.Close()

			id := uuid.NewString()
			future := time.Now().Add(time.Hour)

			if data, err := store.Load(ctx, id); data != nil || err != nil {
				t.Errorf("Load(missing) = %q, %v; want nil, nil", data, err)
			}

			if err := store.Save(ctx, id, []byte("payload"), future); err != nil {
				t.Fatalf("Save: %v", err)
			}
			data, err := store.Load(ctx, id)
			if err != nil || string(data) != "payload" {
				t.Errorf("Load = %q, %v", data, err)
			}

			if err := store.Delete(ctx, id); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if data, _ := store.Load(ctx, id); data != nil {
				t.Error("token still present after Delete")
			}
			if err := store.Delete(ctx, id); err != nil {
				t.Errorf("Delete(missing) = %v, want nil", err)
			}
		})
	}
}

func TestStoreDeleteExpired(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore()
			defer store.Close()

			now := time.Now().Truncate(time.Second)
			expired := uuid.NewString()
			boundary := uuid.NewString()
			live := uuid.NewString()

			store.Save(ctx, expired, []byte("a"), now.Add(-time.Hour))
			store.Save(ctx, boundary, []byte("b"), now)
			store.Save(ctx, live, []byte("c"), now.Add(time.Hour))

			n, err := store.DeleteExpired(ctx, now)
			if err != nil {
				t.Fatalf("DeleteExpired: %v", err)
			}
			if n != 2 {
				t.Errorf("DeleteExpired removed %d, want 2", n)
			}
			if data, _ := store.Load(ctx, live); string(data) != "c" {
				t.Error("live token removed")
			}
			if data, _ := store.Load(ctx, boundary); data != nil {
				t.Error("token expiring exactly now should be removed")
			}
		})
	}
}

func TestStoreClosed(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore()
			store.Close()

			if err := store.Save(ctx, uuid.NewString(), []byte("x"), time.Now()); err == nil {
				t.Error("Save after Close should fail")
			}
			if _, err := store.Load(ctx, uuid.NewString()); err == nil {
				t.Error("Load after Close should fail")
			}
		})
	}
}

func TestFileStoreRejectsNonUUIDIDs(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(filepath.Join(dir, "tokens"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	secret := filepath.Join(dir, "secret")
	os.WriteFile(secret, []byte("do not read"), 0o600)

	for _, id := range []string{"../secret", "secret", "", "4B0E9E5C-9F7A-4D51-B8A3-6B7D0C1D2E3F"} {
		if err := store.Save(ctx, id, []byte("x"), time.Now().Add(time.Hour)); err == nil {
			t.Errorf("Save(%q) should fail", id)
		}
		if data, err := store.Load(ctx, id); data != nil || err != nil {
			t.Errorf("Load(%q) = %q, %v; want nil, nil", id, data, err)
		}
	}
}

func TestFileStoreWritesExpiryAsModTime(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	id := uuid.NewString()
	exp := time.Now().Add(90 * time.Minute).Truncate(time.Second)

	if err := store.Save(context.Background(), id, []byte("x"), exp); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(store.Dir(), id))
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(exp) {
		t.Errorf("ModTime = %v, want %v", info.ModTime(), exp)
	}
}

func TestFileStoreManagerIntegration(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	m := NewManager(store, testSecret)
	ctx := context.Background()

	id, err := m.Generate(ctx, loggedIn("abcd", "Alice"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), id)); err != nil {
		t.Errorf("token file missing: %v", err)
	}

	s, ok := m.Parse(ctx, id)
	if !ok || s.LoginUser.ID != "abcd" {
		t.Errorf("Parse = %+v, %v", s, ok)
	}

	os.Remove(filepath.Join(store.Dir(), id))
	if _, ok := m.Parse(ctx, id); ok {
		t.Error("Parse accepted a token whose file was removed")
	}
}

func TestFileStoreDefaultDir(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())
	store, err := NewFileStore("")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(store.Dir()) != DefaultDirName {
		t.Errorf("Dir() = %q, want suffix %q", store.Dir(), DefaultDirName)
	}
}

package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKeyFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"/plx/cont/lfp/0.5/1.0/disk/session.plx?chans=145,146", "plxcontlfp0510disksessionplx_chans145,146"},
		{"/plx/summary/disk/a/b/c.plx", "plxsummarydiskabcplx"},
	}
	for _, c := range cases {
		if got := KeyFromURL(c.url); got != c.want {
			t.Errorf("KeyFromURL(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestPutAndGetItem(t *testing.T) {
	c := New(t.TempDir(), nil)
	if err := c.Setup(); err != nil {
		t.Fatal(err)
	}
	payload := []byte("frame bytes")
	if err := c.PutItem("entry", FetchedDir, payload); err != nil {
		t.Fatal(err)
	}
	got, err := c.GetData("entry", FetchedDir)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Errorf("got %q, want %q", got, payload)
	}
	if _, err := c.GetData("missing", FetchedDir); err == nil {
		t.Error("expected error for missing entry")
	}
}

func TestEvictOnce(t *testing.T) {
	c := New(t.TempDir(), nil)
	if err := c.Setup(); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(c.Location, WindowsDir)
	if err := os.WriteFile(filepath.Join(dir, "old"), make([]byte, 64), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "new"), make([]byte, 64), 0o644); err != nil {
		t.Fatal(err)
	}

	evicted, err := c.evictOnce(dir, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if evicted {
		t.Error("evicted under budget")
	}

	evicted, err = c.evictOnce(dir, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !evicted {
		t.Error("expected eviction over budget")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries after eviction, want 1", len(entries))
	}
}

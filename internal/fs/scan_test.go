package fs

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTree creates files (relative path -> content) under a new temp dir.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func remotePaths(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.RemotePath
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestScan(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.txt":           "a",
		"b.log":           "log",
		"docs/c.txt":      "cc",
		"docs/deep/d.txt": "ddd",
		"build/out.o":     "obj",
		IgnoreFileName:    "*.log\nbuild/\n",
	})

	t.Run("recursive keeps layout and honors ignore file", func(t *testing.T) {
		entries, err := Scan(root, "/user1/backup", true)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		want := []string{"/user1/backup/a.txt", "/user1/backup/docs/c.txt", "/user1/backup/docs/deep/d.txt"}
		if got := remotePaths(entries); !equal(got, want) {
			t.Errorf("Scan() = %v, want %v", got, want)
		}
		if entries[2].Size != 3 {
			t.Errorf("Size = %d, want 3", entries[2].Size)
		}
	})

	t.Run("non-recursive lists top level only", func(t *testing.T) {
		entries, err := Scan(root, "/user1", false)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if got := remotePaths(entries); !equal(got, []string{"/user1/a.txt"}) {
			t.Errorf("Scan() = %v, want [/user1/a.txt]", got)
		}
	})

	t.Run("skips symlinks", func(t *testing.T) {
		dir := writeTree(t, map[string]string{"real.txt": "x"})
		if err := os.Symlink(filepath.Join(dir, "real.txt"), filepath.Join(dir, "link.txt")); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}
		entries, err := Scan(dir, "/user1", true)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if got := remotePaths(entries); !equal(got, []string{"/user1/real.txt"}) {
			t.Errorf("Scan() = %v, want [/user1/real.txt]", got)
		}
	})

	t.Run("rejects a file", func(t *testing.T) {
		if _, err := Scan(filepath.Join(root, "a.txt"), "/user1", true); err == nil {
			t.Fatal("Scan() expected error for a regular file")
		}
	})
}

func TestReadAll(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "alpha", "b.txt": "beta"})
	entries, err := Scan(root, "/user1", false)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	paths, payloads, err := ReadAll(entries)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !equal(paths, []string{"/user1/a.txt", "/user1/b.txt"}) {
		t.Errorf("paths = %v", paths)
	}
	if string(payloads[0]) != "alpha" || string(payloads[1]) != "beta" {
		t.Errorf("payloads = %q", payloads)
	}

	entries = append(entries, Entry{LocalPath: filepath.Join(root, "gone.txt"), RemotePath: "/user1/gone.txt"})
	if _, _, err := ReadAll(entries); err == nil {
		t.Error("ReadAll() expected error for missing file")
	}
}

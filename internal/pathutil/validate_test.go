package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestRedactPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"points.csv", "points.csv"},
		{"/points.csv", "points.csv"},
		{"/home/user/.kuramap/data/points.csv", ".../data/points.csv"},
	}
	for _, tt := range tests {
		if got := RedactPath(tt.in); got != tt.want {
			t.Errorf("RedactPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	allowed := filepath.Join(root, "data")
	if err := os.MkdirAll(filepath.Join(allowed, "sub"), 0700); err != nil {
		t.Fatal(err)
	}
	resolvedAllowed, err := filepath.EvalSymlinks(allowed)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"file in dir", filepath.Join(allowed, "points.csv"), ""},
		{"nested missing file", filepath.Join(allowed, "sub", "new", "points.csv"), ""},
		{"the dir itself", allowed, ""},
		{"traversal", filepath.Join(allowed, "..", "secret.csv"), "outside allowed"},
		{"sibling prefix", allowed + "x/points.csv", "outside allowed"},
		{"empty", "", "empty"},
		{"null byte", filepath.Join(allowed, "a\x00b"), "null byte"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.path, []string{allowed})
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("Resolve(%q) error = %v, want %q", tt.path, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.path, err)
			}
			if !within(got, resolvedAllowed) {
				t.Errorf("Resolve(%q) = %q, not under %q", tt.path, got, resolvedAllowed)
			}
		})
	}

	if _, err := Resolve(filepath.Join(allowed, "x.csv"), nil); err == nil {
		t.Error("Resolve() with no allowed dirs succeeded")
	}
}

func TestResolve_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	allowed := filepath.Join(root, "data")
	outside := filepath.Join(root, "outside")
	for _, d := range []string{allowed, outside} {
		if err := os.MkdirAll(d, 0700); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink(outside, filepath.Join(allowed, "link")); err != nil {
		t.Fatal(err)
	}

	if _, err := Resolve(filepath.Join(allowed, "link", "points.csv"), []string{allowed}); err == nil {
		t.Error("Resolve() followed a symlink out of the allowed directory")
	}
}

func TestDefaultAllowedDataDirs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	dirs, err := DefaultAllowedDataDirs("/work")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(home, ".kuramap", "data"), "/work"}
	if len(dirs) != 2 || dirs[0] != want[0] || dirs[1] != want[1] {
		t.Errorf("DefaultAllowedDataDirs() = %v, want %v", dirs, want)
	}

	dirs, _ = DefaultAllowedDataDirs("")
	if len(dirs) != 1 {
		t.Errorf("DefaultAllowedDataDirs(\"\") = %v, want one dir", dirs)
	}
}

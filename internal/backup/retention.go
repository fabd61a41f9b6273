package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Info describes one archive file for retention decisions.
type Info struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// RetentionPolicy decides which archives to keep. Input is sorted
// newest-first.
type RetentionPolicy interface {
	Apply(archives []Info) (keep []Info)
}

// CountPolicy keeps the N most recent archives.
type CountPolicy struct {
	MaxCount int
}

// Apply implements RetentionPolicy.
func (p CountPolicy) Apply(archives []Info) []Info {
	if len(archives) <= p.MaxCount {
		return archives
	}
	return archives[:max(p.MaxCount, 0)]
}

// AgePolicy keeps archives modified within MaxAge.
type AgePolicy struct {
	MaxAge time.Duration
	now    func() time.Time
}

// Apply implements RetentionPolicy.
func (p AgePolicy) Apply(archives []Info) []Info {
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	cutoff := now().Add(-p.MaxAge)
	var keep []Info
	for _, a := range archives {
		if a.ModTime.After(cutoff) {
			keep = append(keep, a)
		}
	}
	return keep
}

// List returns the archives in dir written by GeneratePath, newest first.
// A missing directory holds no archives.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading archive directory: %w", err)
	}

	var archives []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		archives = append(archives, Info{
			Path:    filepath.Join(dir, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	// The timestamp in the name sorts lexically.
	sort.Slice(archives, func(i, j int) bool {
		return filepath.Base(archives[i].Path) > filepath.Base(archives[j].Path)
	})
	return archives, nil
}

// ApplyRetention deletes the archives in dir that policy does not keep.
func ApplyRetention(dir string, policy RetentionPolicy) (deleted []string, err error) {
	archives, err := List(dir)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool)
	for _, a := range policy.Apply(archives) {
		keep[a.Path] = true
	}
	for _, a := range archives {
		if keep[a.Path] {
			continue
		}
		if err := os.Remove(a.Path); err != nil {
			return deleted, fmt.Errorf("removing %s: %w", filepath.Base(a.Path), err)
		}
		deleted = append(deleted, a.Path)
	}
	return deleted, nil
}

// ParseDuration parses "720h" style durations plus "30d" and "2w".
func ParseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	day := 24 * time.Hour
	switch s[len(s)-1] {
	case 'd':
		return time.Duration(n) * day, nil
	case 'w':
		return time.Duration(n) * 7 * day, nil
	default:
		return 0, fmt.Errorf("unknown duration suffix in %q", s)
	}
}

package watcher

import (
	"os"
	"sort"
	"strings"
	"time"
)

// InitialOffset is the cursor given to a newly discovered file. Offsets count
// consumed lines, so a new file is scanned from line 1.
const InitialOffset = 0

// WatchedFile is the cursor state for one file in the watched directory.
type WatchedFile struct {
	Name    string
	Offset  int // lines already scanned
	AddedAt time.Time
	Matches int
}

// WatchSet maps file names to their cursors. It has a single owner (the
// Watcher's run loop) and is not safe for concurrent use.
type WatchSet struct {
	files map[string]*WatchedFile
}

// NewWatchSet returns an empty WatchSet.
func NewWatchSet() *WatchSet {
	return &WatchSet{files: make(map[string]*WatchedFile)}
}

// Len returns the number of watched files.
func (s *WatchSet) Len() int {
	return len(s.files)
}

// Get returns the entry for name.
func (s *WatchSet) Get(name string) (*WatchedFile, bool) {
	wf, ok := s.files[name]
	return wf, ok
}

// Names returns the watched file names in sorted order.
func (s *WatchSet) Names() []string {
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reconcile brings the set in line with a directory listing. Names that pass
// match and are not yet watched are added at InitialOffset; watched names
// missing from the listing are removed. Entries present in both keep their
// cursor. Both returned slices are sorted.
func (s *WatchSet) Reconcile(listing []string, match func(string) bool) (added, removed []string) {
	present := make(map[string]struct{}, len(listing))
	now := time.Now()

	for _, name := range listing {
		if match != nil && !match(name) {
			continue
		}
		present[name] = struct{}{}
		if _, ok := s.files[name]; ok {
			continue
		}
		s.files[name] = &WatchedFile{Name: name, Offset: InitialOffset, AddedAt: now}
		added = append(added, name)
	}

	// Names() is a copy, so deleting while iterating it is safe.
	for _, name := range s.Names() {
		if _, ok := present[name]; ok {
			continue
		}
		delete(s.files, name)
		removed = append(removed, name)
	}

	sort.Strings(added)
	return added, removed
}

// ExtFilter returns a predicate matching names that end in ext.
// An empty ext matches every name.
func ExtFilter(ext string) func(string) bool {
	return func(name string) bool {
		return strings.HasSuffix(name, ext)
	}
}

// ListDir returns the names of the non-directory entries in dir.
// Errors from the OS are returned as-is so callers can classify them.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

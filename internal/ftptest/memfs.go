package ftptest

import (
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"
	"time"
)

// Entry describes one node of a MemFS.
type Entry struct {
	Name    string
	Size    int64
	IsDir   bool
	ModTime time.Time
}

// MemFS is an in-memory directory tree. Paths are slash separated and
// resolved from the root; relative paths are treated as absolute.
//
// MemFS is safe for concurrent use.
type MemFS struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]time.Time
	times map[string]time.Time
	now   func() time.Time
}

// NewMemFS returns an empty tree containing only the root directory.
func NewMemFS() *MemFS {
	return &MemFS{
		files: make(map[string][]byte),
		dirs:  map[string]time.Time{"/": {}},
		times: make(map[string]time.Time),
		now:   time.Now,
	}
}

func clean(p string) string {
	return path.Clean("/" + p)
}

// MkdirAll creates dir and any missing parents.
func (m *MemFS) MkdirAll(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mkdirAll(clean(dir))
}

func (m *MemFS) mkdirAll(dir string) error {
	if _, ok := m.files[dir]; ok {
		return &fs.PathError{Op: "mkdir", Path: dir, Err: fs.ErrExist}
	}
	if _, ok := m.dirs[dir]; ok {
		return nil
	}
	if err := m.mkdirAll(path.Dir(dir)); err != nil {
		return err
	}
	m.dirs[dir] = m.now()
	return nil
}

// WriteFile stores data at name, creating parent directories.
func (m *MemFS) WriteFile(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = clean(name)
	if _, ok := m.dirs[name]; ok {
		return &fs.PathError{Op: "write", Path: name, Err: fs.ErrExist}
	}
	if err := m.mkdirAll(path.Dir(name)); err != nil {
		return err
	}
	m.files[name] = slices.Clone(data)
	m.times[name] = m.now()
	return nil
}

// create stores data at name. Unlike WriteFile, the parent must exist.
func (m *MemFS) create(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = clean(name)
	if _, ok := m.dirs[path.Dir(name)]; !ok {
		return &fs.PathError{Op: "create", Path: name, Err: fs.ErrNotExist}
	}
	if _, ok := m.dirs[name]; ok {
		return &fs.PathError{Op: "create", Path: name, Err: fs.ErrExist}
	}
	m.files[name] = data
	m.times[name] = m.now()
	return nil
}

// ReadFile returns a copy of the contents of name.
func (m *MemFS) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[clean(name)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return slices.Clone(data), nil
}

// IsDir reports whether dir exists and is a directory.
func (m *MemFS) IsDir(dir string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.dirs[clean(dir)]
	return ok
}

// ReadDir lists the direct children of dir sorted by name.
func (m *MemFS) ReadDir(dir string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dir = clean(dir)
	if _, ok := m.dirs[dir]; !ok {
		return nil, &fs.PathError{Op: "readdir", Path: dir, Err: fs.ErrNotExist}
	}

	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}

	var entries []Entry
	for p, data := range m.files {
		if name, ok := childName(prefix, p); ok {
			entries = append(entries, Entry{Name: name, Size: int64(len(data)), ModTime: m.times[p]})
		}
	}
	for p, mod := range m.dirs {
		if name, ok := childName(prefix, p); ok {
			entries = append(entries, Entry{Name: name, IsDir: true, ModTime: mod})
		}
	}

	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return entries, nil
}

func childName(prefix, p string) (string, bool) {
	if p == "/" || !strings.HasPrefix(p, prefix) {
		return "", false
	}
	rest := p[len(prefix):]
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// String renders the tree for test failure messages.
func (m *MemFS) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for p := range m.dirs {
		names = append(names, strings.TrimSuffix(p, "/")+"/")
	}
	for p, data := range m.files {
		names = append(names, fmt.Sprintf("%s (%d)", p, len(data)))
	}
	slices.Sort(names)
	return strings.Join(names, "\n")
}

package resfs

import (
	"context"
	"errors"
	"iter"
	"sort"
	"strings"
	"sync"
)

// mockDevice is a simple in-memory device for testing. It counts calls
// and records whether listings released their resources.
type mockDevice struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool

	reads     int
	listOpen  int // listings started and not yet released
	listErr   error
	readErr   error
	resolveFn func(string) (string, error)
}

func newMockDevice() *mockDevice {
	return &mockDevice{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"": true},
	}
}

func (m *mockDevice) put(path string, data string) *mockDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = []byte(data)
	for dir := parentDir(path); dir != ""; dir = parentDir(dir) {
		m.dirs[dir] = true
	}
	return m
}

func parentDir(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

func (m *mockDevice) Read(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.readErr != nil {
		return nil, m.readErr
	}
	data, ok := m.files[path]
	if !ok {
		return nil, &PathError{Op: "read", Path: path, Err: ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (m *mockDevice) Size(_ context.Context, path string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return 0, &PathError{Op: "size", Path: path, Err: ErrNotExist}
	}
	return int64(len(data)), nil
}

func (m *mockDevice) Exists(ctx context.Context, path string) bool {
	return m.IsFile(ctx, path) || m.IsDir(ctx, path)
}

func (m *mockDevice) IsFile(_ context.Context, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

func (m *mockDevice) IsDir(_ context.Context, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirs[path]
}

func (m *mockDevice) List(_ context.Context, path string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		m.mu.Lock()
		m.listOpen++
		err := m.listErr
		var names []string
		seen := map[string]bool{}
		if !m.dirs[path] && err == nil {
			err = &PathError{Op: "list", Path: path, Err: ErrNotExist}
		}
		add := func(p string) {
			if p != "" && parentDir(p) == path && !seen[p] {
				seen[p] = true
				names = append(names, p[strings.LastIndexByte(p, '/')+1:])
			}
		}
		for p := range m.files {
			add(p)
		}
		for p := range m.dirs {
			add(p)
		}
		m.mu.Unlock()

		defer func() {
			m.mu.Lock()
			m.listOpen--
			m.mu.Unlock()
		}()

		if err != nil {
			yield("", err)
			return
		}
		sort.Strings(names)
		for _, name := range names {
			if !yield(name, nil) {
				return
			}
		}
	}
}

func (m *mockDevice) openListings() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listOpen
}

func (m *mockDevice) readCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func (m *mockDevice) Resolve(path string) (string, error) {
	if m.resolveFn != nil {
		return m.resolveFn(path)
	}
	return "/mock/" + path, nil
}

func (m *mockDevice) Write(_ context.Context, path string, data []byte) error {
	if path == "" {
		return errors.New("cannot write root")
	}
	m.put(path, string(data))
	return nil
}

func (m *mockDevice) MkdirAll(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for dir := path; dir != ""; dir = parentDir(dir) {
		m.dirs[dir] = true
	}
	return nil
}

func (m *mockDevice) Remove(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; ok {
		delete(m.files, path)
		return true, nil
	}
	if m.dirs[path] {
		delete(m.dirs, path)
		return true, nil
	}
	return false, nil
}

func (m *mockDevice) RemoveAll(_ context.Context, path string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	under := func(p string) bool { return p == path || strings.HasPrefix(p, path+"/") }
	for p := range m.files {
		if under(p) {
			delete(m.files, p)
			n++
		}
	}
	for p := range m.dirs {
		if p != "" && under(p) {
			delete(m.dirs, p)
			n++
		}
	}
	return n, nil
}

var _ Device = (*mockDevice)(nil)

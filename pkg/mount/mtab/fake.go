package mtab

import "sync"

// FakeTable is an in-memory Table for tests. Paths are registered with the
// device string that backs them.
type FakeTable struct {
	mu     sync.Mutex
	mounts map[string]string
}

// NewFakeTable creates an empty fake mount table.
func NewFakeTable() *FakeTable {
	return &FakeTable{mounts: make(map[string]string)}
}

// AddMount registers path as a mount point backed by device.
func (f *FakeTable) AddMount(path, device string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mounts[path] = device
}

// RemoveMount unregisters a mount point.
func (f *FakeTable) RemoveMount(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.mounts, path)
}

// IsMountPoint implements Table.
func (f *FakeTable) IsMountPoint(path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.mounts[path]
	return ok, nil
}

// DeviceFor implements Table.
func (f *FakeTable) DeviceFor(path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mounts[path], nil
}

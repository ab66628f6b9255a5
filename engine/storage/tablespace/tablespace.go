// Package tablespace maps logical tablespace names to backing files
// and routes tables to a tablespace by name prefix, per spec.md §4.4
// and the original engine's allocate_tablespace_for_table heuristic
// (SPEC_FULL.md §4.15).
package tablespace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/juju/errors"
)

const DefaultName = "default"

type Info struct {
	Name        string `json:"name"`
	FilePath    string `json:"file_path"`
	SizeMB      int    `json:"size_mb"`
	CreatedTime int64  `json:"created_time"`
	IsDefault   bool   `json:"is_default"`
	Status      string `json:"status"`
}

// FileMappingListener is notified whenever the name->path mapping
// changes, per spec.md §4.4's "notifies the page manager" requirement.
type FileMappingListener func(name, path string)

type Manager struct {
	mu       sync.Mutex
	dataDir  string
	metaPath string
	spaces   map[string]*Info
	onChange FileMappingListener
}

func New(dataDir string) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.Annotate(err, "tablespace: create data dir")
	}
	m := &Manager{
		dataDir:  dataDir,
		metaPath: filepath.Join(dataDir, "tablespaces.json"),
		spaces:   map[string]*Info{},
	}
	m.load()
	if err := m.ensureDefault(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) OnFileMappingChange(fn FileMappingListener) { m.onChange = fn }

func (m *Manager) load() {
	data, err := os.ReadFile(m.metaPath)
	if err != nil {
		return
	}
	var spaces map[string]*Info
	if json.Unmarshal(data, &spaces) == nil {
		m.spaces = spaces
	}
}

func (m *Manager) save() error {
	data, err := json.MarshalIndent(m.spaces, "", "  ")
	if err != nil {
		return errors.Annotate(err, "tablespace: marshal")
	}
	tmp := m.metaPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Annotate(err, "tablespace: write temp")
	}
	return os.Rename(tmp, m.metaPath)
}

func (m *Manager) ensureDefault() error {
	if _, ok := m.spaces[DefaultName]; ok {
		return nil
	}
	return m.createLocked(DefaultName, 100, true)
}

func (m *Manager) Create(name string, sizeMB int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(name, sizeMB, false)
}

func (m *Manager) createLocked(name string, sizeMB int, isDefault bool) error {
	if _, exists := m.spaces[name]; exists {
		return nil
	}
	path := filepath.Join(m.dataDir, name+"_tablespace.db")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return errors.Annotate(err, "tablespace: create backing file")
		}
		if err := f.Truncate(int64(sizeMB) * 1024 * 1024); err != nil {
			f.Close()
			return errors.Annotate(err, "tablespace: preallocate")
		}
		f.Close()
	}
	info := &Info{Name: name, FilePath: path, SizeMB: sizeMB, IsDefault: isDefault, Status: "active"}
	m.spaces[name] = info
	if err := m.save(); err != nil {
		return err
	}
	if m.onChange != nil {
		m.onChange(name, path)
	}
	return nil
}

func (m *Manager) Drop(name string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name == DefaultName {
		return errors.New("tablespace: cannot drop default tablespace")
	}
	info, ok := m.spaces[name]
	if !ok {
		return errors.NotFoundf("tablespace %q", name)
	}
	delete(m.spaces, name)
	if force {
		_ = os.Remove(info.FilePath)
	}
	return m.save()
}

func (m *Manager) List() []*Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Info, 0, len(m.spaces))
	for _, v := range m.spaces {
		out = append(out, v)
	}
	return out
}

func (m *Manager) FilePath(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if info, ok := m.spaces[name]; ok {
		return info.FilePath
	}
	return m.spaces[DefaultName].FilePath
}

var prefixRoutes = []struct {
	prefixes []string
	target   string
}{
	{[]string{"sys_", "pg_", "system_", "catalog_"}, "system"},
	{[]string{"temp_", "tmp_", "sort_"}, "temp"},
	{[]string{"log_", "audit_", "history_"}, "log"},
}

// AllocateForTable returns the preferred tablespace when it exists.
// Otherwise it auto-creates the system/user_data/temp/log tablespaces
// on first use and routes the table name to one of them by prefix,
// falling back to the default when the routed tablespace is missing.
func (m *Manager) AllocateForTable(tableName string, preferred string) (string, error) {
	if preferred != "" {
		m.mu.Lock()
		_, exists := m.spaces[preferred]
		m.mu.Unlock()
		if exists {
			return preferred, nil
		}
	}

	if err := m.ensureSystemTablespaces(); err != nil {
		return "", err
	}

	target := "user_data"
	lower := strings.ToLower(tableName)
	for _, route := range prefixRoutes {
		for _, p := range route.prefixes {
			if strings.HasPrefix(lower, p) {
				target = route.target
				break
			}
		}
	}

	m.mu.Lock()
	_, exists := m.spaces[target]
	m.mu.Unlock()
	if !exists {
		target = DefaultName
	}
	return target, nil
}

func (m *Manager) ensureSystemTablespaces() error {
	defaults := []struct {
		name string
		mb   int
	}{
		{"system", 50}, {"user_data", 200}, {"temp", 100}, {"log", 50},
	}
	for _, d := range defaults {
		m.mu.Lock()
		_, exists := m.spaces[d.name]
		m.mu.Unlock()
		if !exists {
			if err := m.Create(d.name, d.mb); err != nil {
				return err
			}
		}
	}
	return nil
}

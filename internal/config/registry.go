package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "ssdp"
	configFile = "config.yaml"
)

const fileHeader = `# SSDP tools configuration file
# Defaults for search, listen and monitor. Command-line flags override them.
# Discovered devices are never stored here.
#
# Location: %s

`

// Store reads and writes one configuration file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store for the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultStore returns the store for the platform config path.
func DefaultStore() (*Store, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return NewStore(path), nil
}

// Path returns the file the store uses.
func (s *Store) Path() string {
	return s.path
}

// Load parses and validates the file. A missing file yields the defaults.
func (s *Store) Load() (*Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if reg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", reg.Version, CurrentVersion)
	}
	if reg.Preferences == nil {
		reg.Preferences = DefaultPreferences()
	}
	if err := reg.Preferences.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", s.path, err)
	}
	return &reg, nil
}

// Save writes reg through a temporary file and a rename, so a crash never
// leaves a half-written config behind.
func (s *Store) Save(reg *Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	body, err := yaml.Marshal(reg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data := append([]byte(fmt.Sprintf(fileHeader, s.path)), body...)

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// Create writes the defaults with a fresh control point identity. It
// refuses to replace an existing file.
func (s *Store) Create() error {
	if _, err := os.Stat(s.path); err == nil {
		return fmt.Errorf("config file already exists: %s", s.path)
	}
	reg := NewRegistry()
	reg.EnsureControlPoint(DefaultFriendlyName())
	return s.Save(reg)
}

// GetConfigDir returns the platform config directory for ssdp:
//   - Linux: $XDG_CONFIG_HOME/ssdp or $HOME/.config/ssdp
//   - macOS: $HOME/.config/ssdp
//   - Windows: %LOCALAPPDATA%\ssdp
func GetConfigDir() (string, error) {
	base, err := configBase()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appName), nil
}

func configBase() (string, error) {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return dir, nil
		}
		profile := os.Getenv("USERPROFILE")
		if profile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(profile, "AppData", "Local"), nil
	}

	if runtime.GOOS != "darwin" {
		if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
			return dir, nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config"), nil
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

var (
	globalMu           sync.Mutex
	globalRegistry     *Registry
	globalRegistryErr  error
	globalRegistryOnce sync.Once
)

// LoadRegistry loads the platform config file once per process; later
// calls return the same registry.
func LoadRegistry() (*Registry, error) {
	globalRegistryOnce.Do(func() {
		store, err := DefaultStore()
		if err != nil {
			globalRegistryErr = err
			return
		}
		globalRegistry, globalRegistryErr = store.Load()
	})
	return globalRegistry, globalRegistryErr
}

// ReloadRegistry drops the loaded registry and reads the file again.
func ReloadRegistry() (*Registry, error) {
	globalMu.Lock()
	globalRegistryOnce = sync.Once{}
	globalMu.Unlock()
	return LoadRegistry()
}

// Save writes the registry to the platform config path.
func (r *Registry) Save() error {
	store, err := DefaultStore()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return store.Save(r)
}

// CreateDefaultConfig creates the platform config file and returns its path.
func CreateDefaultConfig() (string, error) {
	store, err := DefaultStore()
	if err != nil {
		return "", err
	}
	return store.Path(), store.Create()
}

// DefaultFriendlyName is the CPFN used when none is configured.
func DefaultFriendlyName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "ssdp control point"
	}
	return "ssdp on " + host
}

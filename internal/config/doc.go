// Package config manages the preferences file of the ssdp command.
//
// The file is YAML and holds defaults only: UPnP version, MX, IP version,
// interface, URN domain, product token, control point identity, listener
// queue size and the monitor feed address. Command-line flags override it.
// Discovered devices are never written to disk.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/ssdp/config.yaml or $HOME/.config/ssdp/config.yaml
//   - macOS: $HOME/.config/ssdp/config.yaml
//   - Windows: %LOCALAPPDATA%\ssdp\config.yaml
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	opts, err := registry.Preferences.SearchOptions()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// 2.0 searches need a control point identity; the CPUUID is generated
//	// once and kept in the file.
//	registry.EnsureControlPoint(config.DefaultFriendlyName())
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// LoadRegistry reads the file once per process. A Store serializes its own
// reads and writes; saves go through a temporary file and a rename.
package config

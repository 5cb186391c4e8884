package version

import (
	"fmt"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"github.com/muurk/ssdp/internal/ssdp"
)

// These variables can be set at build time via ldflags:
//
//	go build -ldflags="-X github.com/muurk/ssdp/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/ssdp/internal/version.Commit=abc123"
//
// Unset values come from the VCS build stamp, else "dev" and a timestamp.
var (
	Version = ""
	Commit  = ""
)

func init() {
	if Version == "" || Commit == "" {
		fromBuildInfo()
	}
	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromBuildInfo fills the unset variables from the VCS stamp Go embeds
// when building inside a git checkout.
func fromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	vcs := make(map[string]string)
	for _, s := range info.Settings {
		vcs[s.Key] = s.Value
	}

	if rev := vcs["vcs.revision"]; Commit == "" && rev != "" {
		Commit = rev[:min(7, len(rev))]
		if vcs["vcs.modified"] == "true" {
			Commit += "-dirty"
		}
	}
	// Tags are not part of the stamp.
	if t, err := time.Parse(time.RFC3339, vcs["vcs.time"]); Version == "" && err == nil {
		Version = "dev-" + t.Format("20060102")
	}
}

// ProductName is the product token name the CLI sends in USER-AGENT and
// SERVER headers.
const ProductName = "ssdp-cli"

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

var dottedPrefix = regexp.MustCompile(`^\d+(\.\d+)*`)

// Product returns the USER-AGENT product token for this build. UDA requires
// a dotted-number version, so "v1.4.2-rc1" becomes 1.4.2 and dev builds
// report 0.0.
func Product() ssdp.ProductVersion {
	return ssdp.ProductVersion{Name: ProductName, Version: productVersion(Version)}
}

func productVersion(v string) string {
	if n := dottedPrefix.FindString(strings.TrimPrefix(v, "v")); n != "" {
		return n
	}
	return "0.0"
}

// Info is the machine-readable form printed by `ssdp version --format json`.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Product string `json:"product"`
}

// Get returns the build information.
func Get() Info {
	return Info{Version: Version, Commit: Commit, Product: Product().String()}
}

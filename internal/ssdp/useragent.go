package ssdp

import (
	"fmt"
	"runtime"
	"strings"
	"unicode"
)

// ProductVersion is one "name/version" token of a SERVER or USER-AGENT value.
type ProductVersion struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// String returns "name/version"
func (p ProductVersion) String() string {
	return p.Name + "/" + p.Version
}

// IsZero reports whether both fields are empty.
func (p ProductVersion) IsZero() bool {
	return p.Name == "" && p.Version == ""
}

// Validate checks the token against the UDA grammar: the name must not
// contain '/' and the version must be dotted digits.
func (p ProductVersion) Validate() error {
	if p.Name == "" || strings.ContainsAny(p.Name, "/ ") {
		return fmt.Errorf("%w: product name %q must be non-empty without '/' or spaces", ErrInvalidOption, p.Name)
	}
	if !isDottedNumber(p.Version) {
		return fmt.Errorf("%w: product version %q must be dotted digits", ErrInvalidOption, p.Version)
	}
	return nil
}

func isDottedNumber(s string) bool {
	if s == "" || s[0] == '.' || s[len(s)-1] == '.' {
		return false
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ProductVersions is the decoded three-token "OS/ver UPnP/x.y product/ver"
// value of SERVER and USER-AGENT headers.
type ProductVersions struct {
	OS      ProductVersion `json:"os"`
	UPnP    ProductVersion `json:"upnp"`
	Product ProductVersion `json:"product"`
}

// String renders the three tokens separated by spaces
func (p ProductVersions) String() string {
	return fmt.Sprintf("%s %s %s", p.OS, p.UPnP, p.Product)
}

// UPnPVersion returns the architecture version advertised in the UPnP token.
func (p ProductVersions) UPnPVersion() (Version, bool) {
	if !strings.EqualFold(p.UPnP.Name, UPnPProductName) {
		return V10, false
	}
	v, err := ParseVersion(p.UPnP.Version)
	return v, err == nil
}

// ParseProductVersions decodes a SERVER or USER-AGENT value. Real devices
// are loose with this header (commas between tokens, extra tokens, spaces in
// OS names) so parsing is best effort: the UPnP token is located by name and
// the tokens either side of it become OS and product. ok is false when no
// UPnP token was found.
func ParseProductVersions(s string) (ProductVersions, bool) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})

	upnp := -1
	for i, f := range fields {
		if strings.HasPrefix(strings.ToUpper(f), strings.ToUpper(UPnPProductName)+"/") {
			upnp = i
			break
		}
	}
	if upnp < 0 {
		return ProductVersions{}, false
	}

	var out ProductVersions
	out.UPnP = splitToken(fields[upnp])
	if upnp > 0 {
		out.OS = splitToken(strings.Join(fields[:upnp], " "))
	}
	if upnp+1 < len(fields) {
		out.Product = splitToken(strings.Join(fields[upnp+1:], " "))
	}
	return out, true
}

func splitToken(s string) ProductVersion {
	name, version, found := strings.Cut(s, "/")
	if !found {
		return ProductVersion{Name: s}
	}
	return ProductVersion{Name: name, Version: version}
}

// OperatingSystem is the OS token placed in USER-AGENT and SERVER values.
// Detecting the real OS version is left to the host; callers that know it
// may overwrite this at startup.
var OperatingSystem = ProductVersion{Name: osName(), Version: "1.0"}

func osName() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS"
	case "windows":
		return "Windows"
	case "linux":
		return "Linux"
	default:
		return runtime.GOOS
	}
}

// DefaultProduct is the product token used when the caller supplies none.
func DefaultProduct() ProductVersion {
	return ProductVersion{Name: defaultProductName, Version: defaultProductVersion}
}

// UserAgent renders "OS/ver UPnP/x.y product/ver" for the given version. A
// nil product uses DefaultProduct.
func UserAgent(v Version, product *ProductVersion) string {
	p := DefaultProduct()
	if product != nil && !product.IsZero() {
		p = *product
	}
	return ProductVersions{OS: OperatingSystem, UPnP: v.Product(), Product: p}.String()
}

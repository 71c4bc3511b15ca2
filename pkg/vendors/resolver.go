package vendors

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/imgsync/imgsync/pkg/errors"
)

// Resolution is where a vendor's images live.
type Resolution struct {
	Vendor     string
	Directory  string
	StripCodes bool
}

// Identify attributes a variation to a vendor. The display name is checked
// for a known short-code prefix first; the vendor annotation is the
// fallback. Variations matching neither belong to Unknown.
func (t *Table) Identify(variationName, annotation string) string {
	name := strings.ToUpper(strings.TrimSpace(variationName))
	for _, p := range t.prefixes {
		if strings.HasPrefix(name, p.prefix) && !letterAt(name, len(p.prefix)) {
			return p.vendor
		}
	}
	if a := strings.TrimSpace(annotation); a != "" {
		return a
	}
	return Unknown
}

func letterAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsLetter(r)
}

// ResolveDirectory returns the image directory of vendor, relative to the
// image root. Aliases are applied first: an alias that is a bare domain is
// the directory itself. Otherwise the website table and then the directory
// table are consulted.
func (t *Table) ResolveDirectory(vendor string) (string, bool) {
	if strings.TrimSpace(vendor) == "" || vendor == Unknown {
		return "", false
	}

	name := vendor
	if alias, ok := t.aliases[canonicalKey(vendor)]; ok {
		if looksLikeDomain(alias) {
			return stripWWW(alias), true
		}
		name = alias
	}

	for _, key := range keys(name, vendor) {
		if host, ok := t.hosts[key]; ok {
			return host, true
		}
	}
	for _, key := range keys(name, vendor) {
		if dir, ok := t.directories[key]; ok {
			return dir, true
		}
	}
	return "", false
}

// StripCodes reports whether the vendor's file names carry product codes.
func (t *Table) StripCodes(vendor string) bool {
	name := vendor
	if alias, ok := t.aliases[canonicalKey(vendor)]; ok && !looksLikeDomain(alias) {
		name = alias
	}
	for _, key := range keys(name, vendor) {
		if t.stripCodes[key] {
			return true
		}
	}
	return false
}

// Resolve combines ResolveDirectory and StripCodes. It returns an error
// matching errors.ErrConfigurationMissing when no rule applies.
func (t *Table) Resolve(vendor string) (Resolution, error) {
	dir, ok := t.ResolveDirectory(vendor)
	if !ok {
		return Resolution{Vendor: vendor}, fmt.Errorf("vendor %q: %w", vendor, errors.ErrConfigurationMissing)
	}
	return Resolution{Vendor: vendor, Directory: dir, StripCodes: t.StripCodes(vendor)}, nil
}

func keys(name, original string) []string {
	k1, k2 := canonicalKey(name), canonicalKey(original)
	if k1 == k2 {
		return []string{k1}
	}
	return []string{k1, k2}
}

// Package vendors maps catalog vendors to image directories.
//
// The rule table is a versioned YAML document. It is parsed once into lookup
// tables; every resolution afterwards is a pure function of its input.
package vendors

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/imgsync/imgsync/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Unknown is the vendor identity of variations no rule could attribute.
const Unknown = "unknown"

// SupportedVersion is the rule table format this package understands.
const SupportedVersion = 1

// Rule describes one vendor.
type Rule struct {
	Name string `yaml:"name"`
	// Prefixes are short codes that open a variation's display name, e.g. "RR".
	Prefixes []string `yaml:"prefixes"`
	// Directory is the image directory used when no website rule applies.
	Directory string `yaml:"directory"`
	// StripCodes marks directories whose file names start with product codes.
	StripCodes bool `yaml:"strip_codes"`
}

// Website gives the canonical URL of a vendor's site.
type Website struct {
	Vendor string `yaml:"vendor"`
	URL    string `yaml:"url"`
}

// Document is the on-disk rule table.
type Document struct {
	Version  int               `yaml:"version"`
	Vendors  []Rule            `yaml:"vendors"`
	Aliases  map[string]string `yaml:"aliases"`
	Websites []Website         `yaml:"websites"`
}

// Table is a parsed, read-only rule table.
type Table struct {
	prefixes    []prefixRule
	aliases     map[string]string
	hosts       map[string]string
	directories map[string]string
	stripCodes  map[string]bool
}

type prefixRule struct {
	prefix string // upper case
	vendor string
}

// LoadFile reads and parses a rule table from path.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read vendor rules")
	}
	table, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	slog.Info("vendor_rules_loaded", "path", path, "prefixes", len(table.prefixes), "aliases", len(table.aliases), "websites", len(table.hosts))
	return table, nil
}

// Parse parses a YAML rule table.
func Parse(data []byte) (*Table, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse vendor rules")
	}
	return NewTable(doc)
}

// NewTable builds the lookup tables for doc.
func NewTable(doc Document) (*Table, error) {
	if doc.Version != SupportedVersion {
		return nil, fmt.Errorf("unsupported vendor rules version %d (want %d)", doc.Version, SupportedVersion)
	}

	t := &Table{
		aliases:     make(map[string]string, len(doc.Aliases)),
		hosts:       make(map[string]string, len(doc.Websites)),
		directories: make(map[string]string, len(doc.Vendors)),
		stripCodes:  make(map[string]bool, len(doc.Vendors)),
	}

	for _, rule := range doc.Vendors {
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			return nil, fmt.Errorf("vendor rule without name")
		}
		key := canonicalKey(name)
		if _, dup := t.stripCodes[key]; dup {
			return nil, fmt.Errorf("duplicate vendor rule %q", name)
		}
		t.stripCodes[key] = rule.StripCodes
		if dir := strings.TrimSpace(rule.Directory); dir != "" {
			t.directories[key] = dir
		}
		for _, p := range rule.Prefixes {
			p = strings.ToUpper(strings.TrimSpace(p))
			if p == "" {
				continue
			}
			t.prefixes = append(t.prefixes, prefixRule{prefix: p, vendor: name})
		}
	}
	// Longest prefix first, so "RRX" is tried before "RR".
	sortPrefixes(t.prefixes)

	for from, to := range doc.Aliases {
		t.aliases[canonicalKey(from)] = strings.TrimSpace(to)
	}

	for _, site := range doc.Websites {
		host, err := hostOf(site.URL)
		if err != nil {
			return nil, fmt.Errorf("website for %q: %w", site.Vendor, err)
		}
		t.hosts[canonicalKey(site.Vendor)] = host
	}

	return t, nil
}

func sortPrefixes(rules []prefixRule) {
	sort.SliceStable(rules, func(i, j int) bool { return len(rules[i].prefix) > len(rules[j].prefix) })
}

func canonicalKey(vendor string) string {
	return strings.ToLower(strings.Join(strings.Fields(vendor), " "))
}

var domainPattern = regexp.MustCompile(`(?i)^([a-z0-9-]+\.)+[a-z]{2,}$`)

// looksLikeDomain reports whether s is a bare host name such as
// "www.example.com".
func looksLikeDomain(s string) bool {
	return domainPattern.MatchString(s)
}

func stripWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

func hostOf(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	return stripWWW(u.Hostname()), nil
}

package patterns

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/trackscope/internal/interfaces"
	"gopkg.in/yaml.v3"
)

//go:embed data/patterns.yaml
var defaultData []byte

type catalogFile struct {
	Trackers []interfaces.TrackerPattern `yaml:"trackers"`
	Partners map[string][]string         `yaml:"partners"`
}

// Catalog is an immutable tracker pattern and partner database
type Catalog struct {
	trackers   []interfaces.TrackerPattern
	byCategory map[string][]interfaces.TrackerPattern
	partners   map[string]string // lower-cased partner name -> category
	categories []string
}

var _ interfaces.PatternCatalog = (*Catalog)(nil)

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog, parsed on first use and shared for the process lifetime
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(defaultData)
	})
	return defaultCatalog, defaultErr
}

// Parse builds a catalog from YAML
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pattern database: %w", err)
	}

	c := &Catalog{
		byCategory: make(map[string][]interfaces.TrackerPattern),
		partners:   make(map[string]string),
	}
	seen := make(map[string]struct{})

	for i, t := range file.Trackers {
		t.Match = strings.ToLower(strings.TrimSpace(t.Match))
		if t.Match == "" || t.Category == "" {
			return nil, fmt.Errorf("tracker pattern %d: match and category are required", i)
		}
		c.trackers = append(c.trackers, t)
		c.byCategory[t.Category] = append(c.byCategory[t.Category], t)
		seen[t.Category] = struct{}{}
	}

	for category, names := range file.Partners {
		for _, name := range names {
			c.partners[strings.ToLower(strings.TrimSpace(name))] = category
		}
		seen[category] = struct{}{}
	}

	for category := range seen {
		c.categories = append(c.categories, category)
	}
	sort.Strings(c.categories)

	return c, nil
}

func (c *Catalog) ByCategory(category string) []interfaces.TrackerPattern {
	return append([]interfaces.TrackerPattern(nil), c.byCategory[category]...)
}

func (c *Catalog) MatchScript(scriptURL string) (interfaces.TrackerPattern, bool) {
	lower := strings.ToLower(scriptURL)
	for _, t := range c.trackers {
		if strings.Contains(lower, t.Match) {
			return t, true
		}
	}
	return interfaces.TrackerPattern{}, false
}

// PartnerCategory matches exactly, then by a known partner name contained in the given name
func (c *Catalog) PartnerCategory(name string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return "", false
	}
	if category, ok := c.partners[lower]; ok {
		return category, true
	}

	// Longest contained name wins so "Google Analytics 360" is not filed under a shorter partner
	best, bestCategory := "", ""
	for partner, category := range c.partners {
		if len(partner) > 2 && strings.Contains(lower, partner) && len(partner) > len(best) {
			best, bestCategory = partner, category
		}
	}
	return bestCategory, best != ""
}

func (c *Catalog) Categories() []string {
	return append([]string(nil), c.categories...)
}

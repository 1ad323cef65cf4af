package interfaces

// TrackerPattern is a description-tagged URL fragment from the pattern database
type TrackerPattern struct {
	Match       string `yaml:"match" json:"match"`
	Description string `yaml:"description" json:"description"`
	Category    string `yaml:"category" json:"category"`
}

// PatternCatalog is a read-only lookup over tracker patterns and partner lists.
// Implementations are immutable after load and safe for concurrent use.
type PatternCatalog interface {
	// ByCategory returns the tracker patterns of a category
	ByCategory(category string) []TrackerPattern
	// MatchScript returns the first pattern contained in the script URL
	MatchScript(scriptURL string) (TrackerPattern, bool)
	// PartnerCategory returns the category of a named consent partner
	PartnerCategory(name string) (string, bool)
	Categories() []string
}

package models

// TrackingSummary is a deterministic aggregate over the capture collections
type TrackingSummary struct {
	PageURL             string            `json:"page_url"`
	PageDomain          string            `json:"page_domain"`
	TotalCookies        int               `json:"total_cookies"`
	TotalScripts        int               `json:"total_scripts"`
	TotalRequests       int               `json:"total_requests"`
	LocalStorageCount   int               `json:"local_storage_count"`
	SessionStorageCount int               `json:"session_storage_count"`
	ThirdPartyDomains   []string          `json:"third_party_domains"`
	DomainBreakdown     []DomainBreakdown `json:"domain_breakdown"`
	Trackers            []TrackerMatch    `json:"trackers"`
	LocalStorage        []StoragePreview  `json:"local_storage"`
	SessionStorage      []StoragePreview  `json:"session_storage"`
}

// DomainBreakdown aggregates artifacts by base domain
type DomainBreakdown struct {
	Domain        string   `json:"domain"`
	IsThirdParty  bool     `json:"is_third_party"`
	CookieNames   []string `json:"cookie_names"`
	ScriptCount   int      `json:"script_count"`
	RequestCount  int      `json:"request_count"`
	ResourceTypes []string `json:"resource_types"`
}

// StoragePreview is a storage key with a length-bounded value
type StoragePreview struct {
	Key          string `json:"key"`
	ValuePreview string `json:"value_preview"`
	Truncated    bool   `json:"truncated,omitempty"`
}

// TrackerMatch is a script matched against the pattern database
type TrackerMatch struct {
	URL         string `json:"url"`
	Domain      string `json:"domain"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// AnalysisResult is the payload of the complete event.
// Every optional field is independent; only Success reflects the narrative.
type AnalysisResult struct {
	Success        bool            `json:"success"`
	Analysis       *string         `json:"analysis,omitempty"`
	AnalysisHTML   *string         `json:"analysis_html,omitempty"`
	HighRisks      *string         `json:"high_risks,omitempty"`
	PrivacyScore   *int            `json:"privacy_score,omitempty"`
	PrivacySummary *string         `json:"privacy_summary,omitempty"`
	Summary        TrackingSummary `json:"summary"`
	ConsentDetails *ConsentDetails `json:"consent_details,omitempty"`
	Error          *string         `json:"error,omitempty"`
}

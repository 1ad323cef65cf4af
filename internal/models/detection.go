package models

// AccessDenialResult reports whether the page looks like a bot block or access wall
type AccessDenialResult struct {
	Denied bool    `json:"denied"`
	Reason *string `json:"reason,omitempty"`
}

// ConfidenceTier is the resolver's confidence in a consent detection
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// CookieConsentDetection is produced once per job by the overlay resolver and never mutated
type CookieConsentDetection struct {
	Found      bool           `json:"found"`
	Type       *string        `json:"type,omitempty"`
	Selector   *string        `json:"selector,omitempty"`
	ButtonText *string        `json:"button_text,omitempty"`
	Confidence ConfidenceTier `json:"confidence"`
	Reason     string         `json:"reason"`
}

// NotFoundDetection builds a negative detection carrying the reason
func NotFoundDetection(reason string) CookieConsentDetection {
	return CookieConsentDetection{
		Found:      false,
		Confidence: ConfidenceLow,
		Reason:     reason,
	}
}

// ConsentPartner is a vendor named by the consent dialog
type ConsentPartner struct {
	Name     string  `json:"name"`
	Purpose  string  `json:"purpose,omitempty"`
	URL      string  `json:"url,omitempty"`
	Category *string `json:"category,omitempty"` // nil until matched against the partner database
}

// ConsentDetails is derived only when a consent dialog was found
type ConsentDetails struct {
	HasManageOptions      bool             `json:"has_manage_options"`
	ManageOptionsSelector *string          `json:"manage_options_selector,omitempty"`
	Categories            []string         `json:"categories"`
	Partners              []ConsentPartner `json:"partners"`
	Purposes              []string         `json:"purposes"`
	RawText               string           `json:"raw_text"`
}

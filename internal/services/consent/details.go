package consent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/interfaces"
	"github.com/ternarybob/trackscope/internal/models"
	"github.com/ternarybob/trackscope/internal/services/llm"
)

const (
	maxDetailsPromptChars = 30000
	maxRawTextChars       = 5000
)

const detailsSystemPrompt = `You read the text of cookie consent dialogs and list what they disclose.
Respond with ONLY a JSON object of this exact shape:
{"hasManageOptions": boolean, "manageOptionsSelector": string or null, "categories": [string], "partners": [string or {"name": string, "purpose": string, "url": string}], "purposes": [string], "rawText": string}
"categories" are cookie categories such as "Strictly necessary" or "Advertising".
"partners" are the named vendors or third parties the site shares data with.
"purposes" are the processing purposes the dialog lists.
"rawText" is a short excerpt of the most relevant disclosure text.`

type detailsResponse struct {
	HasManageOptions      bool           `json:"hasManageOptions"`
	ManageOptionsSelector *string        `json:"manageOptionsSelector"`
	Categories            []string       `json:"categories"`
	Partners              []partnerEntry `json:"partners"`
	Purposes              []string       `json:"purposes"`
	RawText               string         `json:"rawText"`
}

// partnerEntry accepts either a bare name or an object
type partnerEntry struct {
	Name    string `json:"name"`
	Purpose string `json:"purpose"`
	URL     string `json:"url"`
}

func (p *partnerEntry) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		p.Name = name
		return nil
	}
	type plain partnerEntry
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("partner is neither a string nor an object: %w", err)
	}
	*p = partnerEntry(obj)
	return nil
}

// DetailsExtractor asks the text model what a found consent dialog discloses
type DetailsExtractor struct {
	provider    interfaces.LLMProvider
	catalog     interfaces.PatternCatalog
	callTimeout time.Duration
	logger      arbor.ILogger
}

func NewDetailsExtractor(provider interfaces.LLMProvider, catalog interfaces.PatternCatalog, callTimeout time.Duration, logger arbor.ILogger) *DetailsExtractor {
	return &DetailsExtractor{
		provider:    provider,
		catalog:     catalog,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// Extract returns nil details with an error on model or parse failure
func (e *DetailsExtractor) Extract(ctx context.Context, blocks []string) (*models.ConsentDetails, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: no consent text to extract from", models.ErrConsentDetection)
	}

	text := joinBounded(blocks, maxDetailsPromptChars)
	request := &interfaces.ContentRequest{
		SystemInstruction: detailsSystemPrompt,
		Messages:          []interfaces.Message{{Role: "user", Content: "Consent dialog text:\n\n" + text}},
		JSONResponse:      true,
	}

	answer, err := llm.Call(ctx, e.provider, e.callTimeout, request)
	if err != nil {
		return nil, fmt.Errorf("%w: details extraction: %v", models.ErrConsentDetection, err)
	}

	details, err := e.ParseDetails(answer)
	if err != nil {
		return nil, fmt.Errorf("%w: details extraction: %v", models.ErrConsentDetection, err)
	}
	if details.RawText == "" {
		details.RawText = truncateRunes(text, maxRawTextChars)
	}

	e.logger.Info().
		Int("partners", len(details.Partners)).
		Int("categories", len(details.Categories)).
		Bool("manage_options", details.HasManageOptions).
		Msg("Consent details extracted")
	return details, nil
}

// ParseDetails decodes the extraction contract and tags partners with catalog categories
func (e *DetailsExtractor) ParseDetails(text string) (*models.ConsentDetails, error) {
	var resp detailsResponse
	if err := llm.ExtractJSON(text, &resp); err != nil {
		return nil, err
	}

	details := &models.ConsentDetails{
		HasManageOptions: resp.HasManageOptions,
		Categories:       dedupe(resp.Categories),
		Purposes:         dedupe(resp.Purposes),
		Partners:         []models.ConsentPartner{},
		RawText:          truncateRunes(strings.TrimSpace(resp.RawText), maxRawTextChars),
	}
	if resp.ManageOptionsSelector != nil {
		if selector := strings.TrimSpace(*resp.ManageOptionsSelector); selector != "" {
			details.ManageOptionsSelector = &selector
		}
	}

	seen := make(map[string]struct{})
	for _, entry := range resp.Partners {
		name := strings.TrimSpace(entry.Name)
		key := strings.ToLower(name)
		if name == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		partner := models.ConsentPartner{
			Name:    name,
			Purpose: strings.TrimSpace(entry.Purpose),
			URL:     strings.TrimSpace(entry.URL),
		}
		if e.catalog != nil {
			if category, ok := e.catalog.PartnerCategory(name); ok {
				partner.Category = &category
			}
		}
		details.Partners = append(details.Partners, partner)
	}
	sort.SliceStable(details.Partners, func(i, j int) bool {
		return strings.ToLower(details.Partners[i].Name) < strings.ToLower(details.Partners[j].Name)
	})

	return details, nil
}

func dedupe(values []string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func joinBounded(blocks []string, limit int) string {
	var sb strings.Builder
	for _, block := range blocks {
		if sb.Len() > 0 && sb.Len()+len(block)+1 > limit {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(block)
	}
	return truncateRunes(sb.String(), limit)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

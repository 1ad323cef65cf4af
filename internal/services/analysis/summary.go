// Package analysis reduces a capture snapshot to a summary and asks a text model to interpret it.
package analysis

import (
	"sort"
	"strings"

	"github.com/ternarybob/trackscope/internal/interfaces"
	"github.com/ternarybob/trackscope/internal/models"
	"github.com/ternarybob/trackscope/internal/services/capture"
)

const (
	// MaxStoragePreviews bounds the storage keys listed per area
	MaxStoragePreviews = 20
	// MaxPreviewChars bounds each storage value preview
	MaxPreviewChars = 100
)

// ClassifyScripts returns copies of scripts with Description set from the catalog.
// Scripts with no matching pattern get an empty, non-nil description.
func ClassifyScripts(scripts []models.TrackedScript, catalog interfaces.PatternCatalog) []models.TrackedScript {
	out := make([]models.TrackedScript, len(scripts))
	for i, script := range scripts {
		description := ""
		if catalog != nil {
			if pattern, ok := catalog.MatchScript(script.URL); ok {
				description = pattern.Description
			}
		}
		script.Description = &description
		out[i] = script
	}
	return out
}

type domainAccumulator struct {
	cookieNames   map[string]struct{}
	resourceTypes map[string]struct{}
	scripts       int
	requests      int
}

// BuildSummary aggregates the snapshot without any external calls.
// The result depends only on the snapshot contents, not on their order.
func BuildSummary(snapshot models.CaptureSnapshot, catalog interfaces.PatternCatalog) models.TrackingSummary {
	pageDomain := capture.ExtractDomain(snapshot.PageURL)
	pageBase := capture.GetBaseDomain(pageDomain)

	domains := make(map[string]*domainAccumulator)
	get := func(host string) *domainAccumulator {
		base := capture.GetBaseDomain(strings.TrimPrefix(strings.ToLower(host), "."))
		if base == "" {
			base = capture.UnknownDomain
		}
		acc, ok := domains[base]
		if !ok {
			acc = &domainAccumulator{
				cookieNames:   make(map[string]struct{}),
				resourceTypes: make(map[string]struct{}),
			}
			domains[base] = acc
		}
		return acc
	}

	for _, cookie := range snapshot.Cookies {
		get(cookie.Domain).cookieNames[cookie.Name] = struct{}{}
	}
	for _, script := range snapshot.Scripts {
		get(script.Domain).scripts++
	}
	for _, req := range snapshot.Requests {
		acc := get(req.Domain)
		acc.requests++
		if req.ResourceType != "" {
			acc.resourceTypes[req.ResourceType] = struct{}{}
		}
	}

	summary := models.TrackingSummary{
		PageURL:             snapshot.PageURL,
		PageDomain:          pageDomain,
		TotalCookies:        len(snapshot.Cookies),
		TotalScripts:        len(snapshot.Scripts),
		TotalRequests:       len(snapshot.Requests),
		LocalStorageCount:   len(snapshot.LocalStorage),
		SessionStorageCount: len(snapshot.SessionStorage),
		ThirdPartyDomains:   []string{},
		DomainBreakdown:     []models.DomainBreakdown{},
		Trackers:            matchTrackers(snapshot.Scripts, catalog),
		LocalStorage:        previewStorage(snapshot.LocalStorage),
		SessionStorage:      previewStorage(snapshot.SessionStorage),
	}

	for base, acc := range domains {
		thirdParty := base != pageBase
		if thirdParty {
			summary.ThirdPartyDomains = append(summary.ThirdPartyDomains, base)
		}
		summary.DomainBreakdown = append(summary.DomainBreakdown, models.DomainBreakdown{
			Domain:        base,
			IsThirdParty:  thirdParty,
			CookieNames:   sortedKeys(acc.cookieNames),
			ScriptCount:   acc.scripts,
			RequestCount:  acc.requests,
			ResourceTypes: sortedKeys(acc.resourceTypes),
		})
	}
	sort.Strings(summary.ThirdPartyDomains)
	sort.Slice(summary.DomainBreakdown, func(i, j int) bool {
		a, b := summary.DomainBreakdown[i], summary.DomainBreakdown[j]
		if a.IsThirdParty != b.IsThirdParty {
			return !a.IsThirdParty
		}
		return a.Domain < b.Domain
	})

	return summary
}

func matchTrackers(scripts []models.TrackedScript, catalog interfaces.PatternCatalog) []models.TrackerMatch {
	matches := []models.TrackerMatch{}
	if catalog == nil {
		return matches
	}
	seen := make(map[string]struct{})
	for _, script := range scripts {
		if _, dup := seen[script.URL]; dup {
			continue
		}
		pattern, ok := catalog.MatchScript(script.URL)
		if !ok {
			continue
		}
		seen[script.URL] = struct{}{}
		matches = append(matches, models.TrackerMatch{
			URL:         script.URL,
			Domain:      script.Domain,
			Description: pattern.Description,
			Category:    pattern.Category,
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].URL < matches[j].URL })
	return matches
}

func previewStorage(items []models.StorageItem) []models.StoragePreview {
	sorted := append([]models.StorageItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	previews := []models.StoragePreview{}
	for _, item := range sorted {
		if len(previews) == MaxStoragePreviews {
			break
		}
		value := []rune(item.Value)
		preview := models.StoragePreview{Key: item.Key, ValuePreview: item.Value}
		if len(value) > MaxPreviewChars {
			preview.ValuePreview = string(value[:MaxPreviewChars])
			preview.Truncated = true
		}
		previews = append(previews, preview)
	}
	return previews
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package report

import (
	"fmt"
	"strings"

	"github.com/ternarybob/trackscope/internal/models"
)

// maxTableRows bounds the per-domain table in the report
const maxTableRows = 40

// Markdown composes the report document for a result. Missing optional
// fields are reported as unavailable rather than omitted.
func Markdown(result models.AnalysisResult) string {
	var sb strings.Builder
	s := result.Summary

	title := s.PageDomain
	if title == "" {
		title = s.PageURL
	}
	fmt.Fprintf(&sb, "# Tracking report: %s\n\n", escapeCell(title))
	fmt.Fprintf(&sb, "Scanned URL: %s\n\n", s.PageURL)

	if result.PrivacyScore != nil {
		fmt.Fprintf(&sb, "**Privacy score:** %d / 100", *result.PrivacyScore)
		if result.PrivacySummary != nil {
			fmt.Fprintf(&sb, " - %s", *result.PrivacySummary)
		}
		sb.WriteString("\n\n")
	} else {
		sb.WriteString("**Privacy score:** unavailable\n\n")
	}

	sb.WriteString("## Overview\n\n")
	sb.WriteString("| Artifact | Count |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Cookies | %d |\n", s.TotalCookies)
	fmt.Fprintf(&sb, "| Scripts | %d |\n", s.TotalScripts)
	fmt.Fprintf(&sb, "| Network requests | %d |\n", s.TotalRequests)
	fmt.Fprintf(&sb, "| localStorage keys | %d |\n", s.LocalStorageCount)
	fmt.Fprintf(&sb, "| sessionStorage keys | %d |\n", s.SessionStorageCount)
	fmt.Fprintf(&sb, "| Third-party domains | %d |\n\n", len(s.ThirdPartyDomains))

	if result.HighRisks != nil && strings.TrimSpace(*result.HighRisks) != "" {
		sb.WriteString("## High risks\n\n")
		sb.WriteString(strings.TrimSpace(*result.HighRisks))
		sb.WriteString("\n\n")
	}

	if len(s.DomainBreakdown) > 0 {
		sb.WriteString("## Domains\n\n")
		sb.WriteString("| Domain | Party | Cookies | Scripts | Requests | Types |\n|---|---|---|---|---|---|\n")
		for i, d := range s.DomainBreakdown {
			if i == maxTableRows {
				fmt.Fprintf(&sb, "| ... %d more | | | | | |\n", len(s.DomainBreakdown)-maxTableRows)
				break
			}
			party := "first"
			if d.IsThirdParty {
				party = "third"
			}
			fmt.Fprintf(&sb, "| %s | %s | %d | %d | %d | %s |\n",
				escapeCell(d.Domain), party, len(d.CookieNames), d.ScriptCount, d.RequestCount,
				escapeCell(strings.Join(d.ResourceTypes, ", ")))
		}
		sb.WriteString("\n")
	}

	if len(s.Trackers) > 0 {
		sb.WriteString("## Known trackers\n\n")
		for _, tr := range s.Trackers {
			fmt.Fprintf(&sb, "- **%s** (%s): %s\n", tr.Domain, tr.Category, tr.Description)
		}
		sb.WriteString("\n")
	}

	if d := result.ConsentDetails; d != nil && len(d.Partners) > 0 {
		sb.WriteString("## Consent partners\n\n")
		for _, p := range d.Partners {
			category := "uncategorised"
			if p.Category != nil {
				category = *p.Category
			}
			fmt.Fprintf(&sb, "- %s (%s)\n", p.Name, category)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Analysis\n\n")
	switch {
	case result.Analysis != nil:
		sb.WriteString(strings.TrimSpace(*result.Analysis))
		sb.WriteString("\n")
	case result.Error != nil:
		fmt.Fprintf(&sb, "Analysis unavailable: %s\n", *result.Error)
	default:
		sb.WriteString("Analysis unavailable.\n")
	}

	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

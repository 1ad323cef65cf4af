package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/interfaces"
	"github.com/ternarybob/trackscope/internal/models"
	"github.com/ternarybob/trackscope/internal/services/llm"
)

// routedProvider answers by system prompt so the three concurrent calls can be scripted independently
type routedProvider struct {
	mu        sync.Mutex
	narrative string
	highRisks string
	score     string
	failOn    map[string]error
	prompts   []string
}

func (r *routedProvider) Name() string { return "routed" }

func (r *routedProvider) GenerateContent(ctx context.Context, request *interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
	r.mu.Lock()
	r.prompts = append(r.prompts, request.SystemInstruction)
	r.mu.Unlock()

	var kind, text string
	switch request.SystemInstruction {
	case narrativeSystemPrompt:
		kind, text = "narrative", r.narrative
	case highRiskSystemPrompt:
		kind, text = "high", r.highRisks
	default:
		kind, text = "score", r.score
	}
	if err := r.failOn[kind]; err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, err
	}
	return &interfaces.ContentResponse{Text: text}, nil
}

func newTestPipeline(provider interfaces.LLMProvider) *Pipeline {
	return NewPipeline(provider, 100*time.Millisecond, arbor.NewLogger())
}

func TestAnalyzeAllFields(t *testing.T) {
	provider := &routedProvider{
		narrative: "## Overview\n\nThe page loads **Google Tag Manager**.\n\n<script>alert(1)</script>",
		highRisks: "- Criteo retargeting",
		score:     `Sure: {"score": 42, "summary": "Heavy advertising tracking."}`,
	}
	summary := BuildSummary(models.CaptureSnapshot{PageURL: "https://example.com"}, nil)
	details := &models.ConsentDetails{Partners: []models.ConsentPartner{{Name: "Criteo"}}}

	result := newTestPipeline(provider).Analyze(context.Background(), summary, details)

	assert.True(t, result.Success)
	assert.Nil(t, result.Error)
	require.NotNil(t, result.Analysis)
	require.NotNil(t, result.AnalysisHTML)
	assert.Contains(t, *result.AnalysisHTML, "<h2")
	assert.Contains(t, *result.AnalysisHTML, "<strong>Google Tag Manager</strong>")
	assert.NotContains(t, *result.AnalysisHTML, "<script>")
	require.NotNil(t, result.HighRisks)
	assert.Equal(t, "- Criteo retargeting", *result.HighRisks)
	require.NotNil(t, result.PrivacyScore)
	assert.Equal(t, 42, *result.PrivacyScore)
	require.NotNil(t, result.PrivacySummary)
	assert.Equal(t, "Heavy advertising tracking.", *result.PrivacySummary)
	assert.Same(t, details, result.ConsentDetails)
	assert.Len(t, provider.prompts, 3)
}

func TestAnalyzeZeroArtifactsStillCallsNarrative(t *testing.T) {
	provider := &routedProvider{narrative: "Nothing tracked.", score: `{"score": 100, "summary": "Clean."}`, highRisks: "- none"}
	summary := BuildSummary(models.CaptureSnapshot{PageURL: "https://example.com"}, nil)

	result := newTestPipeline(provider).Analyze(context.Background(), summary, nil)

	assert.True(t, result.Success)
	assert.Contains(t, provider.prompts, narrativeSystemPrompt)
	assert.Zero(t, result.Summary.TotalCookies)
}

func TestAnalyzeFieldsAreIndependent(t *testing.T) {
	tests := []struct {
		name        string
		failOn      map[string]error
		score       string
		wantSuccess bool
		wantRisks   bool
		wantScore   bool
		errorHas    string
	}{
		{
			name:        "narrative fails",
			failOn:      map[string]error{"narrative": errors.New("overloaded")},
			score:       `{"score": 10, "summary": "Bad."}`,
			wantSuccess: false, wantRisks: true, wantScore: true,
			errorHas: "model call failed",
		},
		{
			name:        "narrative times out",
			failOn:      map[string]error{"narrative": context.DeadlineExceeded},
			score:       `{"score": 10, "summary": "Bad."}`,
			wantSuccess: false, wantRisks: true, wantScore: true,
			errorHas: "model timed out",
		},
		{
			name:        "score and risks fail",
			failOn:      map[string]error{"score": errors.New("500"), "high": errors.New("500")},
			wantSuccess: true, wantRisks: false, wantScore: false,
		},
		{
			name:        "score out of range",
			score:       `{"score": 140, "summary": "?"}`,
			wantSuccess: true, wantRisks: true, wantScore: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &routedProvider{narrative: "ok", highRisks: "- x", score: tt.score, failOn: tt.failOn}
			result := newTestPipeline(provider).Analyze(context.Background(), models.TrackingSummary{}, nil)

			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, tt.wantRisks, result.HighRisks != nil)
			assert.Equal(t, tt.wantScore, result.PrivacyScore != nil)
			if tt.errorHas != "" {
				require.NotNil(t, result.Error)
				assert.Contains(t, *result.Error, tt.errorHas)
				assert.Nil(t, result.Analysis)
			}
		})
	}
}

func TestParseScore(t *testing.T) {
	p := newTestPipeline(&routedProvider{})

	score, line, err := p.ParseScore(`{"score": 0, "summary": "  Everything is tracked. "}`)
	require.NoError(t, err)
	assert.Equal(t, 0, score)
	assert.Equal(t, "Everything is tracked.", line)

	for _, bad := range []string{`{"summary": "no score"}`, `{"score": -1, "summary": "x"}`, `{"score": 50, "summary": " "}`, "fifty"} {
		_, _, err := p.ParseScore(bad)
		assert.ErrorIs(t, err, llm.ErrParse, bad)
	}
}

func TestAnalysisInputMentionsMissingConsent(t *testing.T) {
	input, err := analysisInput(models.TrackingSummary{PageURL: "https://example.com"}, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(input, "Tracking summary:"))
	assert.Contains(t, input, `"page_url": "https://example.com"`)
	assert.Contains(t, input, "No consent dialog disclosures")
}

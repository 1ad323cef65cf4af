package app

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/common"
	"github.com/ternarybob/trackscope/internal/handlers"
	"github.com/ternarybob/trackscope/internal/services/analysis"
	"github.com/ternarybob/trackscope/internal/services/browser"
	"github.com/ternarybob/trackscope/internal/services/consent"
	"github.com/ternarybob/trackscope/internal/services/detection"
	"github.com/ternarybob/trackscope/internal/services/llm"
	"github.com/ternarybob/trackscope/internal/services/patterns"
	"github.com/ternarybob/trackscope/internal/services/report"
	"github.com/ternarybob/trackscope/internal/services/scan"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Pattern catalog shared by classification, summaries and consent details
	Catalog *patterns.Catalog

	// Model provider (Gemini or Claude)
	LLM *llm.ProviderFactory

	// Browser session manager
	Browser *browser.Manager

	// Scan pipeline
	Runner *scan.Runner

	// PDF report renderer
	ReportService *report.Service

	// HTTP handlers
	APIHandler     *handlers.APIHandler
	AnalyzeHandler *handlers.AnalyzeHandler
	ReportHandler  *handlers.ReportHandler
	ConfigHandler  *handlers.ConfigHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("provider", app.LLM.Name()).
		Bool("provider_configured", app.LLM.Configured()).
		Str("default_device", cfg.Browser.DefaultDevice).
		Bool("headless", cfg.Browser.Headless).
		Msg("Application initialization complete")

	if !app.LLM.Configured() {
		logger.Warn().Str("provider", app.LLM.Name()).
			Msg("No API key configured; consent detection and analysis will report model failures")
	}

	return app, nil
}

// initServices builds the scan pipeline bottom-up
func (a *App) initServices() error {
	catalog, err := patterns.Default()
	if err != nil {
		return fmt.Errorf("failed to load pattern catalog: %w", err)
	}
	a.Catalog = catalog
	a.Logger.Debug().Strs("categories", catalog.Categories()).Msg("Pattern catalog loaded")

	a.LLM = llm.NewProviderFactory(a.Config, a.Logger)
	a.Browser = browser.NewManager(a.Config.Browser, a.Logger)
	a.ReportService = report.NewService(a.Logger)

	callTimeout := common.Duration(a.Config.LLM.CallTimeout, 60*time.Second)
	extractor := detection.NewBlockExtractor(a.Config.Detection.MinBlockChars, a.Config.Detection.MaxBlockChars)

	deps := scan.Dependencies{
		Launcher:   a.Browser,
		Access:     detection.NewAccessDetector(a.Config.Detection.BodySampleChars, a.Logger),
		Overlay:    detection.NewOverlayResolver(a.LLM, extractor, callTimeout, a.Logger),
		Strategist: consent.NewStrategist(consent.DefaultStrategies(consent.TimeoutsFromConfig(a.Config.Consent)), a.Logger),
		Pipeline:   analysis.NewPipeline(a.LLM, callTimeout, a.Logger),
		Catalog:    catalog,
	}
	if a.Config.Consent.ExtractDetails {
		deps.Details = consent.NewDetailsExtractor(a.LLM, catalog, callTimeout, a.Logger)
	}

	a.Runner = scan.NewRunner(deps, a.Config.Browser, a.Logger)
	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.AnalyzeHandler = handlers.NewAnalyzeHandler(a.Runner, a.Config.Stream, a.Logger)
	a.ReportHandler = handlers.NewReportHandler(a.ReportService, a.Logger)
	a.ConfigHandler = handlers.NewConfigHandler(a.Config, a.Logger)
}

// Close releases application resources. Browser sessions are per-job and
// close with their job context.
func (a *App) Close() error {
	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}

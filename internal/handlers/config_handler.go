package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/common"
)

const redacted = "********"

type ConfigHandler struct {
	config *common.Config
	logger arbor.ILogger
}

func NewConfigHandler(config *common.Config, logger arbor.ILogger) *ConfigHandler {
	return &ConfigHandler{
		config: config,
		logger: logger,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Version string         `json:"version"`
	Build   string         `json:"build"`
	Port    int            `json:"port"`
	Host    string         `json:"host"`
	Config  *common.Config `json:"config"`
}

// GetConfig returns the effective configuration with API keys masked
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	masked := *h.config
	masked.Gemini.APIKey = mask(masked.Gemini.APIKey)
	masked.Claude.APIKey = mask(masked.Claude.APIKey)

	WriteJSON(w, http.StatusOK, ConfigResponse{
		Version: common.GetVersion(),
		Build:   common.GetBuild(),
		Port:    masked.Server.Port,
		Host:    masked.Server.Host,
		Config:  &masked,
	})
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	return redacted
}

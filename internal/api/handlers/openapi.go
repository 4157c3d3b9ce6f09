package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/platformbuilds/mirador-insights/internal/version"
)

// resolveOpenAPIPath returns a readable path to openapi.yaml, honouring
// MIRADOR_INSIGHTS_OPENAPI_PATH and then relative fallbacks for tests that run
// from package directories.
func resolveOpenAPIPath() string {
	if p := os.Getenv("MIRADOR_INSIGHTS_OPENAPI_PATH"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	candidates := []string{
		"api/openapi.yaml",
		filepath.FromSlash("../../api/openapi.yaml"),
		filepath.FromSlash("../../../api/openapi.yaml"),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "api/openapi.yaml"
}

// GetOpenAPISpec serves openapi.yaml as JSON, stamped with the build version
// and example instants for the default-window query.
func GetOpenAPISpec(c *gin.Context) {
	data, err := os.ReadFile(resolveOpenAPIPath())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load openapi.yaml"})
		return
	}
	var obj map[string]any
	if err := yaml.Unmarshal(data, &obj); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to parse openapi.yaml"})
		return
	}

	if info, ok := obj["info"].(map[string]any); ok {
		info["version"] = version.Version
	}

	end := time.Now().UTC().Truncate(time.Hour)
	if t, err := time.Parse(time.RFC3339, version.BuildTime); err == nil {
		end = t.UTC()
	}
	examples := map[string]string{
		"start": end.AddDate(0, 0, -30).Format(time.RFC3339),
		"end":   end.Format(time.RFC3339),
	}
	if paths, ok := obj["paths"].(map[string]any); ok {
		if p, ok := paths["/api/v1/insights/default-window"].(map[string]any); ok {
			if get, ok := p["get"].(map[string]any); ok {
				if params, ok := get["parameters"].([]any); ok {
					for _, raw := range params {
						param, ok := raw.(map[string]any)
						if !ok {
							continue
						}
						name, _ := param["name"].(string)
						if ex, ok := examples[name]; ok {
							param["example"] = ex
						}
					}
				}
			}
		}
	}

	c.JSON(http.StatusOK, obj)
}

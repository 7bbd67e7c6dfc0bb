package auth

import (
	"net/http"
	"strings"
)

// Policy maps requests to the feature key and access level they require.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth entirely.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredAccess resolves the feature and level a request needs.
func (p Policy) RequiredAccess(r *http.Request) (Feature, Level, bool) {
	if r == nil {
		return "", "", false
	}
	path := r.URL.Path
	method := r.Method
	readOnly := method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions

	switch {
	case path == "/api/v1/maintenance/due":
		return FeatureDashboard, LevelView, true
	case path == "/api/v1/maintenance/history" || strings.HasPrefix(path, "/api/v1/maintenance/history/"):
		return FeatureMaintenanceHistory, LevelView, true
	case strings.HasPrefix(path, "/api/v1/maintenance/results/"):
		return FeatureMaintenanceHistory, LevelView, true
	case strings.HasPrefix(path, "/api/v1/maintenance/events/"):
		if readOnly {
			return FeatureMaintenanceHistory, LevelView, true
		}
		return FeatureUpdateMaintenance, LevelEdit, true
	case path == "/api/v1/instruments" || strings.HasPrefix(path, "/api/v1/instruments/"):
		if readOnly {
			return FeatureInstruments, LevelView, true
		}
		return FeatureInstruments, LevelEdit, true
	case path == "/api/v1/templates" || strings.HasPrefix(path, "/api/v1/templates/"):
		if readOnly {
			return FeatureDesignTemplates, LevelView, true
		}
		return FeatureDesignTemplates, LevelEdit, true
	case path == "/api/v1/users" || strings.HasPrefix(path, "/api/v1/users/"):
		if readOnly {
			return FeatureUserManagement, LevelView, true
		}
		return FeatureUserManagement, LevelEdit, true
	case path == "/api/v1/settings" || strings.HasPrefix(path, "/api/v1/settings/"):
		if readOnly {
			return FeatureSettings, LevelView, true
		}
		return FeatureSettings, LevelEdit, true
	}

	if strings.HasPrefix(path, "/api/") {
		if readOnly {
			return FeatureDashboard, LevelView, true
		}
		return FeatureUpdateMaintenance, LevelEdit, true
	}
	return "", "", false
}

package auth

// Feature identifies a permission-gated area of the system. The set is
// closed: unknown keys are rejected at the boundary and resolve to no access.
type Feature string

const (
	FeatureDashboard          Feature = "dashboard"
	FeatureMaintenanceHistory Feature = "maintenance_history"
	FeatureUpdateMaintenance  Feature = "update_maintenance"
	FeatureInstruments        Feature = "instruments"
	FeatureDesignTemplates    Feature = "design_templates"
	FeatureSettings           Feature = "settings"
	FeatureUserManagement     Feature = "user_management"
)

// Level is the tri-state access level for a feature.
type Level string

const (
	LevelHidden Level = "hidden"
	LevelView   Level = "view"
	LevelEdit   Level = "edit"
)

// PermissionMap maps feature keys to access levels.
type PermissionMap map[Feature]Level

// NormalizeFeature validates a feature key.
func NormalizeFeature(value string) (Feature, bool) {
	switch Feature(value) {
	case FeatureDashboard, FeatureMaintenanceHistory, FeatureUpdateMaintenance,
		FeatureInstruments, FeatureDesignTemplates, FeatureSettings, FeatureUserManagement:
		return Feature(value), true
	default:
		return "", false
	}
}

// NormalizeLevel validates an access level.
func NormalizeLevel(value string) (Level, bool) {
	switch Level(value) {
	case LevelHidden, LevelView, LevelEdit:
		return Level(value), true
	default:
		return "", false
	}
}

// HasPermission reports whether the map grants the required level for a
// feature. Missing entries and unknown keys resolve to hidden (fail closed).
// Edit implies view; hidden grants nothing.
func HasPermission(permissions PermissionMap, feature Feature, required Level) bool {
	if _, known := NormalizeFeature(string(feature)); !known {
		return false
	}
	granted, ok := permissions[feature]
	if !ok {
		granted = LevelHidden
	}
	switch required {
	case LevelView:
		return granted == LevelView || granted == LevelEdit
	case LevelEdit:
		return granted == LevelEdit
	default:
		return false
	}
}

// DefaultPermissions is the least-privilege map applied to any user without
// an explicit profile row: dashboard and maintenance history read-only,
// everything else hidden.
func DefaultPermissions() PermissionMap {
	return PermissionMap{
		FeatureDashboard:          LevelView,
		FeatureMaintenanceHistory: LevelView,
		FeatureUpdateMaintenance:  LevelHidden,
		FeatureInstruments:        LevelHidden,
		FeatureDesignTemplates:    LevelHidden,
		FeatureSettings:           LevelHidden,
		FeatureUserManagement:     LevelHidden,
	}
}

// NormalizePermissions validates an externally supplied map, rejecting
// unknown feature keys or levels.
func NormalizePermissions(raw map[string]string) (PermissionMap, bool) {
	normalized := make(PermissionMap, len(raw))
	for key, value := range raw {
		feature, ok := NormalizeFeature(key)
		if !ok {
			return nil, false
		}
		level, ok := NormalizeLevel(value)
		if !ok {
			return nil, false
		}
		normalized[feature] = level
	}
	return normalized, true
}

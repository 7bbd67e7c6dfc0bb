package auth

import "testing"

func TestHasPermission_EditImpliesView(t *testing.T) {
	permissions := PermissionMap{FeatureInstruments: LevelEdit}
	if !HasPermission(permissions, FeatureInstruments, LevelView) {
		t.Fatal("edit should grant view")
	}
	if !HasPermission(permissions, FeatureInstruments, LevelEdit) {
		t.Fatal("edit should grant edit")
	}
}

func TestHasPermission_ViewDoesNotGrantEdit(t *testing.T) {
	permissions := PermissionMap{FeatureDashboard: LevelView}
	if !HasPermission(permissions, FeatureDashboard, LevelView) {
		t.Fatal("view should grant view")
	}
	if HasPermission(permissions, FeatureDashboard, LevelEdit) {
		t.Fatal("view must not grant edit")
	}
}

func TestHasPermission_HiddenGrantsNothing(t *testing.T) {
	permissions := PermissionMap{FeatureSettings: LevelHidden}
	if HasPermission(permissions, FeatureSettings, LevelView) {
		t.Fatal("hidden must not grant view")
	}
	if HasPermission(permissions, FeatureSettings, LevelEdit) {
		t.Fatal("hidden must not grant edit")
	}
}

func TestHasPermission_FailClosed(t *testing.T) {
	permissions := PermissionMap{FeatureDashboard: LevelEdit}
	if HasPermission(permissions, FeatureUserManagement, LevelView) {
		t.Fatal("missing entry must resolve to hidden")
	}
	if HasPermission(permissions, Feature("reports"), LevelView) {
		t.Fatal("unknown feature key must resolve to hidden")
	}
	if HasPermission(nil, FeatureDashboard, LevelView) {
		t.Fatal("nil map must grant nothing")
	}
}

func TestDefaultPermissions(t *testing.T) {
	defaults := DefaultPermissions()
	if defaults[FeatureDashboard] != LevelView {
		t.Fatalf("dashboard default = %s, want view", defaults[FeatureDashboard])
	}
	if defaults[FeatureMaintenanceHistory] != LevelView {
		t.Fatalf("maintenance_history default = %s, want view", defaults[FeatureMaintenanceHistory])
	}
	for _, feature := range []Feature{
		FeatureUpdateMaintenance, FeatureInstruments, FeatureDesignTemplates,
		FeatureSettings, FeatureUserManagement,
	} {
		if defaults[feature] != LevelHidden {
			t.Fatalf("%s default = %s, want hidden", feature, defaults[feature])
		}
	}
}

func TestNormalizePermissions_RejectsUnknownKeys(t *testing.T) {
	if _, ok := NormalizePermissions(map[string]string{"reports": "view"}); ok {
		t.Fatal("unknown feature key must be rejected")
	}
	if _, ok := NormalizePermissions(map[string]string{"dashboard": "full"}); ok {
		t.Fatal("unknown level must be rejected")
	}
	normalized, ok := NormalizePermissions(map[string]string{"dashboard": "edit", "settings": "hidden"})
	if !ok {
		t.Fatal("valid map rejected")
	}
	if normalized[FeatureDashboard] != LevelEdit {
		t.Fatalf("dashboard = %s, want edit", normalized[FeatureDashboard])
	}
}

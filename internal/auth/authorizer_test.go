package auth

import "testing"

func analystContext(level SecurityLevel) AuthContext {
	return AuthContext{
		UserID:        "test_user",
		Roles:         []string{RoleDataAnalyst},
		Permissions:   []string{PermReadData},
		SessionID:     "user-1",
		SecurityLevel: level,
	}
}

func adminContext() AuthContext {
	return AuthContext{
		UserID:        "admin_user",
		Roles:         []string{RoleDataAdmin},
		Permissions:   []string{PermAdmin},
		SessionID:     "user-2",
		SecurityLevel: LevelSecret,
	}
}

func TestParseResourceURI(t *testing.T) {
	info := ParseResourceURI("/api/table/user_info/public")
	if info.Type != "table" || info.Name != "user_info" || info.Schema != "public" {
		t.Errorf("info = %+v", info)
	}

	info = ParseResourceURI("/api/table/orders")
	if info.Type != "table" || info.Name != "orders" || info.Schema != "" {
		t.Errorf("info = %+v", info)
	}

	// Malformed URIs degrade to zero values instead of failing.
	for _, uri := range []string{"", "/", "not-a-uri", "/web/table/x"} {
		if info := ParseResourceURI(uri); info != (ResourceInfo{}) {
			t.Errorf("ParseResourceURI(%q) = %+v, want zero", uri, info)
		}
	}
}

func TestCheckPermissionAdminOverride(t *testing.T) {
	a := NewAuthorizer(map[string]SecurityLevel{"salary": LevelSecret})

	if !a.CheckPermission(adminContext(), "/api/table/salary", ActionWrite) {
		t.Error("admin should bypass all checks, including writes")
	}
}

func TestCheckPermissionClearance(t *testing.T) {
	a := NewAuthorizer(map[string]SecurityLevel{
		"user_info": LevelConfidential,
		"orders":    LevelInternal,
	})

	caller := analystContext(LevelInternal)
	if a.CheckPermission(caller, "/api/table/user_info", ActionRead) {
		t.Error("internal caller must not read a confidential table")
	}
	if !a.CheckPermission(caller, "/api/table/orders", ActionRead) {
		t.Error("internal caller should read an internal table")
	}
	if !a.CheckPermission(caller, "/api/table/unclassified", ActionRead) {
		t.Error("unlisted tables default to public")
	}
}

func TestCheckPermissionActions(t *testing.T) {
	a := NewAuthorizer(nil)
	caller := analystContext(LevelSecret)

	if !a.CheckPermission(caller, "/api/table/orders", ActionRead) {
		t.Error("read_data should grant reads")
	}
	if a.CheckPermission(caller, "/api/table/orders", ActionWrite) {
		t.Error("read_data must not grant writes")
	}
	if a.CheckPermission(caller, "/api/table/orders", "drop") {
		t.Error("unknown actions must be denied")
	}

	noPerms := AuthContext{UserID: "u", SecurityLevel: LevelSecret}
	if a.CheckPermission(noPerms, "/api/table/orders", ActionRead) {
		t.Error("caller without read_data must be denied")
	}
}

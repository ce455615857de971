package auth

import "strings"

// Actions known to the authorizer. Unknown actions are denied.
const (
	ActionRead  = "read"
	ActionWrite = "write"
)

// ResourceInfo is the parsed form of a resource URI.
type ResourceInfo struct {
	Type   string
	Name   string
	Schema string
}

// ParseResourceURI splits a path of the shape /api/{type}/{name}[/{schema}].
// Malformed input yields zero-valued fields rather than an error.
func ParseResourceURI(uri string) ResourceInfo {
	var info ResourceInfo
	parts := strings.Split(strings.Trim(uri, "/"), "/")
	if len(parts) < 3 || parts[0] != "api" {
		return info
	}
	info.Type = parts[1]
	info.Name = parts[2]
	if len(parts) > 3 {
		info.Schema = parts[3]
	}
	return info
}

// Authorizer decides read/write access against resource sensitivity.
type Authorizer struct {
	sensitive map[string]SecurityLevel
}

// NewAuthorizer builds an authorizer over the sensitive-resource map.
// Resources absent from the map default to LevelPublic.
func NewAuthorizer(sensitive map[string]SecurityLevel) *Authorizer {
	if sensitive == nil {
		sensitive = map[string]SecurityLevel{}
	}
	return &Authorizer{sensitive: sensitive}
}

// ResourceLevel returns the sensitivity classification of the resource.
func (a *Authorizer) ResourceLevel(info ResourceInfo) SecurityLevel {
	if level, ok := a.sensitive[info.Name]; ok {
		return level
	}
	return LevelPublic
}

// CheckPermission decides whether the caller may perform action on the
// resource. The decision order is: admin override allows everything; a caller
// whose clearance does not dominate the resource level is denied; otherwise
// role-based rules apply, denying by default.
func (a *Authorizer) CheckPermission(caller AuthContext, resourceURI, action string) bool {
	if caller.IsAdmin() {
		return true
	}

	info := ParseResourceURI(resourceURI)
	if !caller.SecurityLevel.Dominates(a.ResourceLevel(info)) {
		return false
	}

	switch action {
	case ActionRead:
		return caller.HasPermission(PermReadData)
	case ActionWrite:
		// read_data never grants writes; only the admin override does.
		return false
	default:
		return false
	}
}

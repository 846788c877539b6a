package model

// Permission levels carried in an auth token.
const (
	PermissionRead  = "read"
	PermissionWrite = "write"
	PermissionAdmin = "admin"
)

// AuthContext carries the caller's identity and permissions through
// every pipeline call. It is passed by value and never mutated.
type AuthContext struct {
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`

	// AppID is set for developer tokens scoped to an application.
	AppID string `json:"app_id,omitempty"`

	Permissions map[string]bool `json:"permissions"`
}

// HasPermission reports whether the token carries the given permission.
func (a AuthContext) HasPermission(perm string) bool {
	return a.Permissions[perm]
}

// DevToken mint request and response bodies.
type DevTokenRequest struct {
	EntityID string   `json:"entity_id"`
	AppID    string   `json:"app_id,omitempty"`
	Scopes   []string `json:"scopes,omitempty"`
}

type DevTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

package model

// Viewer is the authenticated acting identity, supplied by the auth
// subsystem. Admin status is consulted in exactly one place: the resolver.
type Viewer struct {
	ID      string `json:"id"`
	IsAdmin bool   `json:"is_admin"`
}

package services

// Viewer is the caller an operation runs on behalf of. A zero UserID is an anonymous viewer.
type Viewer struct {
	UserID  uint
	IsStaff bool
}

// Anonymous returns the unauthenticated viewer
func Anonymous() Viewer {
	return Viewer{}
}

// IsAnonymous reports whether the viewer is unauthenticated
func (v Viewer) IsAnonymous() bool {
	return v.UserID == 0
}

package caldav

// Calendar is a remote calendar collection
type Calendar struct {
	Path        string `json:"path"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
}

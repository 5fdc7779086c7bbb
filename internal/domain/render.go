package domain

// RenderedView is the aggregate view handed to result destinations.
// The engine does not know how a view is displayed, only that it can be
// created or updated at an opaque reference.
type RenderedView struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
	Final bool     `json:"final"`
}

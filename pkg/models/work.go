package models

// WorkType distinguishes catalog items whose chapter content is normalized
// prose from image-based works stored verbatim.
type WorkType string

const (
	WorkTypeProse       WorkType = "prose"
	WorkTypeIllustrated WorkType = "illustrated"
)

// Valid reports whether t is one of the known work types.
func (t WorkType) Valid() bool {
	return t == WorkTypeProse || t == WorkTypeIllustrated
}

type Work struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Author      string   `json:"author,omitempty"`
	Type        WorkType `json:"type"`
	Description string   `json:"description,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
}

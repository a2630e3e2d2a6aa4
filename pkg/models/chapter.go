package models

import "time"

type Chapter struct {
	ID          string     `json:"id"`
	WorkID      string     `json:"work_id"`
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
	Locked      bool       `json:"locked"`
	UnlockPrice int        `json:"unlock_price,omitempty"`
	Views       int        `json:"views"`

	// Content and ContentLength are populated on single-chapter reads.
	// ContentLength is derived from Content at read time, never stored.
	Content       string `json:"content,omitempty"`
	ContentLength int    `json:"content_length"`
}

// ChapterContent is the single content row associated with a chapter.
// At most one row exists per chapter at any time.
type ChapterContent struct {
	ID        string `json:"id"`
	ChapterID string `json:"chapter_id"`
	Content   string `json:"content"`
}

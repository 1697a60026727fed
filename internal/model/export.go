package model

import "time"

// ExportRequest asks for a downloadable text envelope of a generated prompt.
type ExportRequest struct {
	Title       string `json:"title" validate:"omitempty,max=200"`
	StylePrompt string `json:"stylePrompt" validate:"required,max=2000"`
	Lyrics      string `json:"lyrics" validate:"required,max=20000"`
	Upload      bool   `json:"upload"`
}

// ExportResponse is returned when the envelope was uploaded to storage.
type ExportResponse struct {
	FileName  string    `json:"fileName"`
	FileURL   string    `json:"fileUrl,omitempty"`
	Size      int       `json:"size"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

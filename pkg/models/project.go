package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is one slide deck and everything derived from it.
type Project struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	PDFPath   *string   `db:"pdf_path"   json:"pdf_path,omitempty"`
	PageCount int       `db:"page_count" json:"page_count"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Page is a single slide rendered to an image by the page-split stage.
type Page struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	ProjectID uuid.UUID `db:"project_id" json:"project_id"`
	Number    int       `db:"number"     json:"number"`
	ImagePath string    `db:"image_path" json:"image_path"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

package models

import "time"

// VideoSubmission — видеозаявка участника. Создаётся при входе в турнир,
// владеет ей только загрузивший пользователь.
type VideoSubmission struct {
	ID            int            `json:"id" db:"id"`
	Title         string         `json:"title" db:"title"`
	Description   string         `json:"description" db:"description"`
	VideoKey      string         `json:"-" db:"video_key"`
	VideoURL      string         `json:"video_url,omitempty" db:"-"`
	CoverImageKey *string        `json:"-" db:"cover_image_key"`
	CoverImageURL *string        `json:"cover_image_url,omitempty" db:"-"`
	Duration      *time.Duration `json:"duration,omitempty" db:"duration"`
	UserID        int            `json:"user_id" db:"user_id"`
	ViewsCount    int            `json:"views_count" db:"views_count"`
	Processed     bool           `json:"processed" db:"processed"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

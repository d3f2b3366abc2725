package models

import "time"

// Sponsor — спонсор, привязываемый к турнирам (many-to-many). Чисто
// промо-сущность, бизнес-логика турниров от неё не зависит.
type Sponsor struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	LogoKey     *string   `json:"-" db:"logo_key"`
	LogoURL     *string   `json:"logo_url,omitempty" db:"-"`
	WebsiteURL  *string   `json:"website_url,omitempty" db:"website_url"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

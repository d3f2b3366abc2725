package models

// Category — категория турниров (Gaming, Music, Sports и т.д.).
type Category struct {
	ID          int     `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Description *string `json:"description,omitempty" db:"description"`
}

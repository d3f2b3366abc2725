package models

import "time"

// UserRole соответствует ENUM user_role в БД.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User представляет пользователя платформы. Поле Tickets — живой баланс
// билетов; каждое его изменение сопровождается строкой TicketTransaction.
type User struct {
	ID           int       `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Nickname     string    `json:"nickname" db:"nickname"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         UserRole  `json:"role" db:"role"`
	Tickets      int       `json:"tickets" db:"tickets"`
	AvatarKey    *string   `json:"-" db:"avatar_key"`
	AvatarURL    *string   `json:"avatar_url,omitempty" db:"-"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

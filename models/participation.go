package models

import "time"

// Participation — запись об участии пользователя в конкретном турнире.
// Пара (user_id, tournament_id) уникальна на уровне БД.
// VotesReceived — денормализованный счётчик, изменяется только вместе со
// вставкой Vote в той же транзакции.
type Participation struct {
	ID                int       `json:"id" db:"id"`
	UserID            int       `json:"user_id" db:"user_id"`
	TournamentID      int       `json:"tournament_id" db:"tournament_id"`
	VideoSubmissionID int       `json:"video_submission_id" db:"video_submission_id"`
	VotesReceived     int       `json:"votes_received" db:"votes_received"`
	IsFinalist        bool      `json:"is_finalist" db:"is_finalist"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`

	User            *User            `json:"user,omitempty" db:"-"`
	VideoSubmission *VideoSubmission `json:"video_submission,omitempty" db:"-"`
}

package models

import "time"

// Vote — голос пользователя за участие в турнире. TournamentID копируется из
// participation при создании и больше не меняется; пара (voter_id, tournament_id)
// уникальна, то есть один голос на турнир независимо от выбранного участника.
type Vote struct {
	ID              int       `json:"id" db:"id"`
	VoterID         int       `json:"voter_id" db:"voter_id"`
	ParticipationID int       `json:"participation_id" db:"participation_id"`
	TournamentID    int       `json:"tournament_id" db:"tournament_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// VoteStatus — снимок состояния голосования пользователя в турнире.
type VoteStatus struct {
	HasVoted bool           `json:"has_voted"`
	CanVote  bool           `json:"can_vote"`
	VotedFor *Participation `json:"voted_for,omitempty"`
}

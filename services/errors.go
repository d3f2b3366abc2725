package services

import (
	"errors"
	"fmt"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed          = errors.New("validation failed")
	ErrPasswordTooShort          = errors.New("password is too short")
	ErrTournamentTitleRequired   = errors.New("tournament title is required")
	ErrTournamentDatesRequired   = errors.New("tournament start time is required")
	ErrTournamentEndTimeRequired = errors.New("tournament end time is required unless the tournament is repeating")
	ErrTournamentInvalidDates    = errors.New("tournament end time must be after start time")
	ErrTournamentInvalidCapacity = errors.New("tournament participant limit must be positive")
	ErrInvalidReportReason       = errors.New("invalid video report reason")

	// Ошибки входа в турнир
	ErrInsufficientTickets = errors.New("insufficient tickets to enter this tournament")
	ErrAlreadyEntered      = errors.New("user has already entered this tournament")
	ErrTournamentNotActive = errors.New("tournament is not currently active")
	ErrTournamentFull      = errors.New("tournament has reached maximum participants")

	// Ошибки голосования
	ErrAlreadyVoted         = errors.New("user has already voted in this tournament")
	ErrSelfVoteForbidden    = errors.New("voting for your own submission is not allowed")
	ErrVotingForbidden      = errors.New("only tournament participants may vote")
	ErrInvalidParticipation = errors.New("participation does not belong to this tournament")

	// Модерация
	ErrAlreadyReported = errors.New("user has already reported this video")

	// Аутентификация и авторизация
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already taken")
	ErrNicknameTaken      = errors.New("nickname is already taken")
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	// Билеты и заказы
	ErrPackageInactive = errors.New("ticket package is not available for purchase")
	ErrOrderNotPending = errors.New("order is not in a pending state")
)

// GroupFullError — структурный отказ "группа заполнена, попробуй новейшую":
// возвращается вместо ErrTournamentFull, когда у повторяющегося турнира уже
// есть более свежая группа, в которую ещё можно войти.
type GroupFullError struct {
	NewestGroupID int
}

func (e *GroupFullError) Error() string {
	return fmt.Sprintf("tournament group is full, try the newest group (tournament %d)", e.NewestGroupID)
}

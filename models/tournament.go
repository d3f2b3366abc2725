package models

import "time"

// Tournament представляет один соревновательный раунд.
//
// Повторяющийся турнир без родителя ("корень") порождает дочерние группы,
// когда текущая группа заполняется. Дочерний турнир (ParentTournamentID != nil)
// сам группы никогда не порождает.
type Tournament struct {
	ID                 int        `json:"id" db:"id"`
	Title              string     `json:"title" db:"title"`
	Description        string     `json:"description" db:"description"`
	Rules              *string    `json:"rules,omitempty" db:"rules"`
	Prizes             *string    `json:"prizes,omitempty" db:"prizes"`
	ImageKey           *string    `json:"-" db:"image_key"`
	ImageURL           *string    `json:"image_url,omitempty" db:"-"`
	CategoryID         int        `json:"category_id" db:"category_id"`
	Featured           bool       `json:"featured" db:"featured"`
	IsShowcase         bool       `json:"is_showcase" db:"is_showcase"`
	StartTime          time.Time  `json:"start_time" db:"start_time"`
	EndTime            *time.Time `json:"end_time,omitempty" db:"end_time"` // nil только для повторяющихся турниров
	ParticipantLimit   *int       `json:"participant_limit,omitempty" db:"participant_limit"`
	IsRepeating        bool       `json:"is_repeating" db:"is_repeating"`
	ParentTournamentID *int       `json:"parent_tournament_id,omitempty" db:"parent_tournament_id"`
	GroupName          string     `json:"group_name,omitempty" db:"group_name"`
	ActiveGroupCount   int        `json:"active_group_count" db:"active_group_count"`
	FinalistsCount     int        `json:"finalists_count" db:"finalists_count"`
	EntryFee           int        `json:"entry_fee" db:"entry_fee"`
	IsFinalTournament  bool       `json:"is_final_tournament" db:"is_final_tournament"`
	ViewsCount         int        `json:"views_count" db:"views_count"`
	CreatedBy          *int       `json:"created_by,omitempty" db:"created_by"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`

	// Связанные сущности (не мапятся напрямую)
	Category *Category `json:"category,omitempty" db:"-"`
}

// IsRoot сообщает, является ли турнир корневым повторяющимся турниром —
// единственным видом, которому разрешено порождать группы.
func (t *Tournament) IsRoot() bool {
	return t.IsRepeating && t.ParentTournamentID == nil
}

// IsActiveAt вычисляет предикат активности на момент now. Предикат никогда не
// персистится — он пересчитывается на каждом чтении, чтобы не устаревать.
// participantCount — текущее число участий турнира.
func (t *Tournament) IsActiveAt(now time.Time, participantCount int) bool {
	// Повторяющиеся турниры без end_time закрываются заполнением, а не временем.
	if t.IsRepeating && t.EndTime == nil {
		if now.Before(t.StartTime) {
			return false
		}
		if t.ParticipantLimit != nil {
			return participantCount < *t.ParticipantLimit
		}
		return true
	}
	if t.EndTime == nil {
		return false
	}
	return !now.Before(t.StartTime) && !now.After(*t.EndTime)
}

// NextGroupName возвращает имя группы для n уже созданных групп:
// 0 -> "A", 25 -> "Z", дальше двухбуквенные идентификаторы 26 -> "AA", 27 -> "AB".
func NextGroupName(n int) string {
	if n < 0 {
		n = 0
	}
	name := ""
	for {
		name = string(rune('A'+n%26)) + name
		n = n/26 - 1
		if n < 0 {
			return name
		}
	}
}

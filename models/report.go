package models

import "time"

// ReportReason соответствует ENUM report_reason в БД.
type ReportReason string

const (
	ReasonInappropriateUsername ReportReason = "inappropriate_username"
	ReasonStolenContent         ReportReason = "stolen_content"
	ReasonAdultContent          ReportReason = "adult_content"
	ReasonRacist                ReportReason = "racist"
	ReasonPromotingProducts     ReportReason = "promoting_products"
	ReasonOther                 ReportReason = "other"
)

// ValidReportReason проверяет значение, пришедшее от клиента.
func ValidReportReason(r ReportReason) bool {
	switch r {
	case ReasonInappropriateUsername, ReasonStolenContent, ReasonAdultContent,
		ReasonRacist, ReasonPromotingProducts, ReasonOther:
		return true
	}
	return false
}

// VideoReport — жалоба на видео. Пара (reporter_id, video_id) уникальна:
// один пользователь жалуется на одно видео не более одного раза.
type VideoReport struct {
	ID         int          `json:"id" db:"id"`
	VideoID    int          `json:"video_id" db:"video_id"`
	ReporterID int          `json:"reporter_id" db:"reporter_id"`
	Reason     ReportReason `json:"reason" db:"reason"`
	Details    string       `json:"details" db:"details"`
	Resolved   bool         `json:"resolved" db:"resolved"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

package models

import "time"

type NotificationType string

const (
	NotificationTournamentStart NotificationType = "tournament_start"
	NotificationMatchScheduled  NotificationType = "match_scheduled"
	NotificationMatchResult     NotificationType = "match_result"
)

// Notification — событие турнира, адресованное конкретному пользователю.
// Гости учётной записи не имеют и уведомлений не получают.
type Notification struct {
	ID        int              `json:"id" db:"id"`
	UserID    int              `json:"user_id" db:"user_id"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	Type      NotificationType `json:"type" db:"type"`
	Read      bool             `json:"read" db:"read"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

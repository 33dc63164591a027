package models

import "time"

// ParticipantStatus представляет статус заявки/участия.
type ParticipantStatus string

const (
	ParticipantPending    ParticipantStatus = "pending"
	ParticipantAccepted   ParticipantStatus = "accepted"
	ParticipantRejected   ParticipantStatus = "rejected"
	ParticipantActive     ParticipantStatus = "active"
	ParticipantEliminated ParticipantStatus = "eliminated"
	ParticipantWinner     ParticipantStatus = "winner"
)

// Participant — заявка или подтверждённый участник турнира.
// Ровно одно из полей UserID/GuestName заполнено
// (check constraint chk_participant_identity в БД).
type Participant struct {
	ID           int               `json:"id" db:"id"`
	TournamentID int               `json:"tournament_id" db:"tournament_id"`
	UserID       *int              `json:"user_id,omitempty" db:"user_id"`
	GuestName    *string           `json:"guest_name,omitempty" db:"guest_name"`
	Status       ParticipantStatus `json:"status" db:"status"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`

	User *User `json:"user,omitempty" db:"-"`
}

// IsGuest сообщает, является ли участник гостем без учётной записи.
func (p *Participant) IsGuest() bool {
	return p.UserID == nil && p.GuestName != nil
}

// DisplayName возвращает имя для отображения в сетке.
func (p *Participant) DisplayName() string {
	if p.User != nil {
		name := p.User.FirstName
		if p.User.LastName != "" {
			name += " " + p.User.LastName
		}
		if name != "" {
			return name
		}
	}
	if p.GuestName != nil {
		return *p.GuestName
	}
	return ""
}

package models

import (
	"encoding/json"
	"time"
)

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	StatusPending   TournamentStatus = "pending"
	StatusActive    TournamentStatus = "active"
	StatusCompleted TournamentStatus = "completed"
)

// TournamentFormat определяет способ построения сетки.
type TournamentFormat string

const (
	FormatSingleElimination TournamentFormat = "single_elimination"
	FormatDoubleElimination TournamentFormat = "double_elimination"
	FormatOther             TournamentFormat = "other"
)

// Tournament представляет турнир.
type Tournament struct {
	ID              int              `json:"id" db:"id"`
	Name            string           `json:"name" db:"name"`
	Description     string           `json:"description" db:"description"`
	GameType        string           `json:"game_type" db:"game_type"`
	Format          TournamentFormat `json:"format" db:"format"`
	Status          TournamentStatus `json:"status" db:"status"`
	CreatorID       int              `json:"creator_id" db:"creator_id"`
	MaxParticipants int              `json:"max_participants" db:"max_participants"`
	// Bracket хранится как JSONB и заменяется целиком при каждом сохранении.
	Bracket        json.RawMessage `json:"bracket,omitempty" db:"bracket"`
	BracketVersion int             `json:"bracket_version" db:"bracket_version"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	LogoKey        *string         `json:"-" db:"logo_key"`
	LogoURL        *string         `json:"logo_url,omitempty" db:"-"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Creator      *User         `json:"creator,omitempty" db:"-"`
	Participants []Participant `json:"participants,omitempty" db:"-"`
	Matches      []Match       `json:"matches,omitempty" db:"-"`
}

package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ошибки валидации и бизнес-правил
	ErrValidationFailed    = errors.New("validation failed")
	ErrPasswordTooShort    = errors.New("password is too short")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrRegistrationNotOpen = errors.New("tournament is not accepting participants")
	ErrTournamentFull      = errors.New("tournament registration is full")
	ErrTieNotAllowed       = errors.New("tie score is not allowed: a decisive winner is required")
	ErrMatchNotReady       = errors.New("match does not have both players assigned yet")
	ErrBracketInvalid      = errors.New("bracket document has an invalid shape")

	// Ошибки конфликтов
	ErrUserEmailConflict      = errors.New("email address is already in use")
	ErrRegistrationConflict   = errors.New("user or guest is already registered for this tournament")
	ErrMatchAlreadyCompleted  = errors.New("match result has already been recorded")
	ErrBracketVersionConflict = errors.New("bracket was modified concurrently: stale version")

	// Ошибки аутентификации и авторизации
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")
	ErrCreatorCannotLeave = errors.New("the tournament creator cannot leave their own tournament")
	ErrCannotKickSelf     = errors.New("the creator cannot kick themselves, use leave instead")
	ErrNotParticipant     = errors.New("caller has no participant record in this tournament")

	// Ошибки, специфичные для сущностей
	ErrUserNotFound         = errors.New("user not found")
	ErrTournamentNotFound   = errors.New("tournament not found")
	ErrParticipantNotFound  = errors.New("participant registration not found")
	ErrMatchNotFound        = errors.New("match not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrBracketNotGenerated  = errors.New("tournament has no bracket yet")

	// Ошибки турниров
	ErrTournamentNameRequired            = errors.New("tournament name is required")
	ErrTournamentDescriptionRequired     = errors.New("tournament description is required")
	ErrTournamentGameTypeRequired        = errors.New("tournament game type is required")
	ErrTournamentInvalidFormat           = errors.New("invalid tournament format provided")
	ErrTournamentInvalidCapacity         = errors.New("tournament max participants must be greater than 1")
	ErrTournamentInvalidStatus           = errors.New("invalid tournament status provided")
	ErrTournamentInvalidStatusTransition = errors.New("invalid tournament status transition")
	ErrTournamentNotEditable             = errors.New("tournament can no longer be modified")
)

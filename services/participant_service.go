package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MathiasNeri/Projet-Dev-FilRouge/models"
	"github.com/MathiasNeri/Projet-Dev-FilRouge/repositories"
)

type DirectAddInput struct {
	Email     *string `json:"email,omitempty"`
	GuestName *string `json:"guest_name,omitempty"`
}

type DecideAction string

const (
	DecideAccept DecideAction = "accept"
	DecideReject DecideAction = "reject"
)

type ParticipantService interface {
	RequestJoin(ctx context.Context, tournamentID, userID int) (*models.Participant, error)
	DirectAdd(ctx context.Context, tournamentID, actorID int, input DirectAddInput) (*models.Participant, error)
	Decide(ctx context.Context, tournamentID, actorID, participantID int, action DecideAction) (*models.Participant, error)
	Leave(ctx context.Context, tournamentID, userID int) error
	Kick(ctx context.Context, tournamentID, actorID, participantID int) error
	ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.ParticipantStatus) ([]*models.Participant, error)
}

type participantService struct {
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	userRepo        repositories.UserRepository
	logger          *slog.Logger
}

func NewParticipantService(
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	userRepo repositories.UserRepository,
	logger *slog.Logger,
) ParticipantService {
	return &participantService{
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		userRepo:        userRepo,
		logger:          logger,
	}
}

// RequestJoin создаёт заявку пользователя на участие. Отклонённая ранее
// заявка переоткрывается в pending той же строкой — дубликаты исключены
// уникальным индексом (tournament_id, user_id).
func (s *participantService) RequestJoin(ctx context.Context, tournamentID, userID int) (*models.Participant, error) {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.StatusPending {
		return nil, ErrRegistrationNotOpen
	}

	existing, err := s.participantRepo.FindByUserAndTournament(ctx, userID, tournamentID)
	if err != nil && !errors.Is(err, repositories.ErrParticipantNotFound) {
		return nil, fmt.Errorf("failed to check existing registration: %w", err)
	}
	if existing != nil {
		if existing.Status == models.ParticipantRejected {
			if err := s.participantRepo.UpdateStatus(ctx, nil, existing.ID, models.ParticipantPending); err != nil {
				return nil, fmt.Errorf("failed to reopen rejected registration: %w", err)
			}
			existing.Status = models.ParticipantPending
			return existing, nil
		}
		return nil, ErrRegistrationConflict
	}

	participant := &models.Participant{
		TournamentID: tournamentID,
		UserID:       &userID,
		Status:       models.ParticipantPending,
	}
	if err := s.participantRepo.Create(ctx, participant); err != nil {
		// Гонка двух одновременных заявок упирается в уникальный индекс.
		if errors.Is(err, repositories.ErrParticipantConflict) {
			return nil, ErrRegistrationConflict
		}
		if errors.Is(err, repositories.ErrParticipantTournamentInvalid) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to create join request: %w", err)
	}
	return participant, nil
}

// DirectAdd добавляет участника напрямую со статусом accepted, минуя фазу
// заявки. Identity — либо email существующего пользователя, либо имя гостя.
func (s *participantService) DirectAdd(ctx context.Context, tournamentID, actorID int, input DirectAddInput) (*models.Participant, error) {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.CreatorID != actorID {
		return nil, ErrForbiddenOperation
	}
	if tournament.Status != models.StatusPending {
		return nil, ErrRegistrationNotOpen
	}

	hasEmail := input.Email != nil && strings.TrimSpace(*input.Email) != ""
	hasGuest := input.GuestName != nil && strings.TrimSpace(*input.GuestName) != ""
	if hasEmail == hasGuest {
		return nil, fmt.Errorf("%w: exactly one of email or guest_name must be provided", ErrValidationFailed)
	}

	if err := s.ensureCapacity(ctx, tournament); err != nil {
		return nil, err
	}

	participant := &models.Participant{
		TournamentID: tournamentID,
		Status:       models.ParticipantAccepted,
	}
	if hasEmail {
		user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(*input.Email)))
		if err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("failed to resolve user by email: %w", err)
		}
		participant.UserID = &user.ID
		participant.User = user
	} else {
		guestName := strings.TrimSpace(*input.GuestName)
		participant.GuestName = &guestName
	}

	if err := s.participantRepo.Create(ctx, participant); err != nil {
		if errors.Is(err, repositories.ErrParticipantConflict) {
			return nil, ErrRegistrationConflict
		}
		if errors.Is(err, repositories.ErrParticipantTournamentInvalid) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to add participant: %w", err)
	}
	return participant, nil
}

// Decide принимает или отклоняет заявку. Повторное решение по той же
// заявке допускается (идемпотентность на уровне статуса).
func (s *participantService) Decide(ctx context.Context, tournamentID, actorID, participantID int, action DecideAction) (*models.Participant, error) {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.CreatorID != actorID {
		return nil, ErrForbiddenOperation
	}

	participant, err := s.getParticipant(ctx, tournamentID, participantID)
	if err != nil {
		return nil, err
	}

	var nextStatus models.ParticipantStatus
	switch action {
	case DecideAccept:
		nextStatus = models.ParticipantAccepted
	case DecideReject:
		nextStatus = models.ParticipantRejected
	default:
		return nil, fmt.Errorf("%w: action must be accept or reject", ErrValidationFailed)
	}

	if participant.Status == nextStatus {
		return participant, nil
	}

	if nextStatus == models.ParticipantAccepted {
		if err := s.ensureCapacity(ctx, tournament); err != nil {
			return nil, err
		}
	}

	if err := s.participantRepo.UpdateStatus(ctx, nil, participant.ID, nextStatus); err != nil {
		return nil, fmt.Errorf("failed to update participant status: %w", err)
	}
	participant.Status = nextStatus
	return participant, nil
}

// Leave — самостоятельный выход. Создатель не может покинуть свой турнир.
func (s *participantService) Leave(ctx context.Context, tournamentID, userID int) error {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	if tournament.CreatorID == userID {
		return ErrCreatorCannotLeave
	}

	participant, err := s.participantRepo.FindByUserAndTournament(ctx, userID, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return ErrNotParticipant
		}
		return fmt.Errorf("failed to find participant record: %w", err)
	}

	if err := s.participantRepo.Delete(ctx, participant.ID); err != nil {
		return fmt.Errorf("failed to delete participant record: %w", err)
	}
	return nil
}

// Kick — жёсткое удаление участника создателем. Себя кикнуть нельзя.
func (s *participantService) Kick(ctx context.Context, tournamentID, actorID, participantID int) error {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	if tournament.CreatorID != actorID {
		return ErrForbiddenOperation
	}

	participant, err := s.getParticipant(ctx, tournamentID, participantID)
	if err != nil {
		return err
	}
	if participant.UserID != nil && *participant.UserID == actorID {
		return ErrCannotKickSelf
	}

	if err := s.participantRepo.Delete(ctx, participant.ID); err != nil {
		return fmt.Errorf("failed to kick participant: %w", err)
	}
	return nil
}

func (s *participantService) ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.ParticipantStatus) ([]*models.Participant, error) {
	if _, err := s.getTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	participants, err := s.participantRepo.ListByTournament(ctx, tournamentID, statusFilter, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return participants, nil
}

func (s *participantService) getTournament(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament %d: %w", tournamentID, err)
	}
	return tournament, nil
}

func (s *participantService) getParticipant(ctx context.Context, tournamentID, participantID int) (*models.Participant, error) {
	participant, err := s.participantRepo.FindByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to load participant %d: %w", participantID, err)
	}
	if participant.TournamentID != tournamentID {
		return nil, ErrParticipantNotFound
	}
	return participant, nil
}

// ensureCapacity проверяет, что принятых участников меньше лимита.
func (s *participantService) ensureCapacity(ctx context.Context, tournament *models.Tournament) error {
	accepted, err := s.participantRepo.CountByStatus(ctx, tournament.ID, models.ParticipantAccepted)
	if err != nil {
		return fmt.Errorf("failed to count accepted participants: %w", err)
	}
	if accepted >= tournament.MaxParticipants {
		return ErrTournamentFull
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MathiasNeri/Projet-Dev-FilRouge/brackets"
	"github.com/MathiasNeri/Projet-Dev-FilRouge/models"
	"github.com/MathiasNeri/Projet-Dev-FilRouge/repositories"
	"github.com/MathiasNeri/Projet-Dev-FilRouge/storage"
	"golang.org/x/sync/errgroup"
)

type CreateTournamentInput struct {
	Name            string                  `json:"name"`
	Description     string                  `json:"description"`
	GameType        string                  `json:"game_type"`
	Format          models.TournamentFormat `json:"format"`
	MaxParticipants int                     `json:"max_participants"`
}

// UpdateTournamentInput — частичный patch: nil-поля не трогаются.
type UpdateTournamentInput struct {
	Name            *string                  `json:"name,omitempty"`
	Description     *string                  `json:"description,omitempty"`
	GameType        *string                  `json:"game_type,omitempty"`
	Format          *models.TournamentFormat `json:"format,omitempty"`
	MaxParticipants *int                     `json:"max_participants,omitempty"`
	Status          *models.TournamentStatus `json:"status,omitempty"`
}

type TournamentService interface {
	Create(ctx context.Context, actorID int, input CreateTournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)
	UpdateDetails(ctx context.Context, id, actorID int, input UpdateTournamentInput) (*models.Tournament, error)
	Delete(ctx context.Context, id, actorID int) error
	UploadLogo(ctx context.Context, id, actorID int, contentType string, reader io.Reader) (*models.Tournament, error)
}

type tournamentService struct {
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	userRepo        repositories.UserRepository
	notifier        NotificationService
	uploader        storage.FileUploader
	logger          *slog.Logger
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	userRepo repositories.UserRepository,
	notifier NotificationService,
	uploader storage.FileUploader,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		userRepo:        userRepo,
		notifier:        notifier,
		uploader:        uploader,
		logger:          logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, actorID int, input CreateTournamentInput) (*models.Tournament, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.GameType = strings.TrimSpace(input.GameType)

	if input.Name == "" {
		return nil, ErrTournamentNameRequired
	}
	if input.Description == "" {
		return nil, ErrTournamentDescriptionRequired
	}
	if input.GameType == "" {
		return nil, ErrTournamentGameTypeRequired
	}
	if !isValidTournamentFormat(input.Format) {
		return nil, fmt.Errorf("%w: %q", ErrTournamentInvalidFormat, input.Format)
	}
	if input.MaxParticipants <= 1 {
		return nil, ErrTournamentInvalidCapacity
	}

	tournament := &models.Tournament{
		Name:            input.Name,
		Description:     input.Description,
		GameType:        input.GameType,
		Format:          input.Format,
		Status:          models.StatusPending,
		CreatorID:       actorID,
		MaxParticipants: input.MaxParticipants,
	}

	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentCreatorInvalid) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	return tournament, nil
}

// GetByID возвращает турнир с участниками и матчами, загружаемыми параллельно.
func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.getTournament(ctx, id)
	if err != nil {
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		participants, err := s.participantRepo.ListByTournament(gCtx, id, nil, true)
		if err != nil {
			return fmt.Errorf("failed to load participants: %w", err)
		}
		tournament.Participants = dereferenceParticipants(participants)
		return nil
	})

	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gCtx, id, nil, nil)
		if err != nil {
			return fmt.Errorf("failed to load matches: %w", err)
		}
		tournament.Matches = dereferenceMatches(matches)
		return nil
	})

	g.Go(func() error {
		creator, err := s.userRepo.GetByID(gCtx, tournament.CreatorID)
		if err != nil {
			// Создатель мог быть удалён; карточка турнира от этого не ломается.
			s.logger.WarnContext(gCtx, "failed to load tournament creator",
				slog.Int("tournament_id", id), slog.Any("error", err))
			return nil
		}
		creator.PasswordHash = ""
		tournament.Creator = creator
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	populateTournamentLogoURL(tournament, s.uploader)
	return tournament, nil
}

func (s *tournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	for i := range tournaments {
		populateTournamentLogoURL(&tournaments[i], s.uploader)
	}
	return tournaments, nil
}

// UpdateDetails применяет частичный patch. Смена статуса проходит через
// машину состояний: pending→active требует сгенерированной сетки и числа
// принятых участников в границах [2, max], active→completed — разыгранного
// финала. Любой другой переход отклоняется.
func (s *tournamentService) UpdateDetails(ctx context.Context, id, actorID int, input UpdateTournamentInput) (*models.Tournament, error) {
	tournament, err := s.getTournament(ctx, id)
	if err != nil {
		return nil, err
	}
	if tournament.CreatorID != actorID {
		return nil, ErrForbiddenOperation
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrTournamentNameRequired
		}
		tournament.Name = name
	}
	if input.Description != nil {
		tournament.Description = strings.TrimSpace(*input.Description)
	}
	if input.GameType != nil {
		gameType := strings.TrimSpace(*input.GameType)
		if gameType == "" {
			return nil, ErrTournamentGameTypeRequired
		}
		tournament.GameType = gameType
	}
	if input.Format != nil {
		if !isValidTournamentFormat(*input.Format) {
			return nil, fmt.Errorf("%w: %q", ErrTournamentInvalidFormat, *input.Format)
		}
		if tournament.Status != models.StatusPending {
			return nil, fmt.Errorf("%w: format is frozen once the tournament leaves pending", ErrTournamentNotEditable)
		}
		tournament.Format = *input.Format
	}
	if input.MaxParticipants != nil {
		if *input.MaxParticipants <= 1 {
			return nil, ErrTournamentInvalidCapacity
		}
		tournament.MaxParticipants = *input.MaxParticipants
	}

	statusChanged := false
	if input.Status != nil && *input.Status != tournament.Status {
		if err := s.guardStatusTransition(ctx, tournament, *input.Status); err != nil {
			return nil, err
		}
		tournament.Status = *input.Status
		statusChanged = true
	}

	if err := s.tournamentRepo.Update(ctx, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to update tournament: %w", err)
	}

	if statusChanged && tournament.Status == models.StatusActive {
		s.onTournamentStarted(ctx, tournament)
	}

	populateTournamentLogoURL(tournament, s.uploader)
	return tournament, nil
}

// guardStatusTransition валидирует запрошенный переход против текущего
// состояния турнира и его сетки.
func (s *tournamentService) guardStatusTransition(ctx context.Context, tournament *models.Tournament, next models.TournamentStatus) error {
	switch next {
	case models.StatusPending, models.StatusActive, models.StatusCompleted:
	default:
		return fmt.Errorf("%w: %q", ErrTournamentInvalidStatus, next)
	}
	if !isValidStatusTransition(tournament.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, tournament.Status, next)
	}

	switch {
	case tournament.Status == models.StatusPending && next == models.StatusActive:
		if len(tournament.Bracket) == 0 {
			return fmt.Errorf("%w: bracket must be generated before activation", ErrTournamentInvalidStatusTransition)
		}
		accepted, err := s.participantRepo.CountByStatus(ctx, tournament.ID, models.ParticipantAccepted)
		if err != nil {
			return fmt.Errorf("failed to count accepted participants: %w", err)
		}
		if accepted < 2 || accepted > tournament.MaxParticipants {
			return fmt.Errorf("%w: accepted participant count %d outside [2, %d]",
				ErrTournamentInvalidStatusTransition, accepted, tournament.MaxParticipants)
		}
	case tournament.Status == models.StatusActive && next == models.StatusCompleted:
		doc, err := brackets.Parse(tournament.Bracket)
		if err != nil {
			return fmt.Errorf("%w: stored bracket is unreadable", ErrTournamentInvalidStatusTransition)
		}
		if !doc.Complete() {
			return fmt.Errorf("%w: final round is not resolved yet", ErrTournamentInvalidStatusTransition)
		}
	}
	return nil
}

// onTournamentStarted переводит принятых участников в active и уведомляет
// пользователей о старте.
func (s *tournamentService) onTournamentStarted(ctx context.Context, tournament *models.Tournament) {
	accepted := models.ParticipantAccepted
	participants, err := s.participantRepo.ListByTournament(ctx, tournament.ID, &accepted, false)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list participants on tournament start",
			slog.Int("tournament_id", tournament.ID), slog.Any("error", err))
		return
	}
	for _, p := range participants {
		if err := s.participantRepo.UpdateStatus(ctx, nil, p.ID, models.ParticipantActive); err != nil {
			s.logger.ErrorContext(ctx, "failed to activate participant",
				slog.Int("participant_id", p.ID), slog.Any("error", err))
			continue
		}
		if p.UserID != nil {
			s.notifier.Notify(ctx, *p.UserID,
				"Tournament started",
				fmt.Sprintf("Tournament %q has started.", tournament.Name),
				models.NotificationTournamentStart)
		}
	}
}

// Delete удаляет турнир вместе с участниками и матчами (каскад в БД).
func (s *tournamentService) Delete(ctx context.Context, id, actorID int) error {
	tournament, err := s.getTournament(ctx, id)
	if err != nil {
		return err
	}
	if tournament.CreatorID != actorID {
		return ErrForbiddenOperation
	}

	if err := s.tournamentRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to delete tournament: %w", err)
	}

	if tournament.LogoKey != nil && s.uploader != nil {
		if err := s.uploader.Delete(ctx, *tournament.LogoKey); err != nil {
			s.logger.WarnContext(ctx, "failed to delete tournament logo from storage",
				slog.Int("tournament_id", id), slog.Any("error", err))
		}
	}
	return nil
}

func (s *tournamentService) UploadLogo(ctx context.Context, id, actorID int, contentType string, reader io.Reader) (*models.Tournament, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("file storage is not configured")
	}
	tournament, err := s.getTournament(ctx, id)
	if err != nil {
		return nil, err
	}
	if tournament.CreatorID != actorID {
		return nil, ErrForbiddenOperation
	}

	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	oldLogoKey := tournament.LogoKey
	newKey := fmt.Sprintf("tournaments/%d/logo%s", id, ext)

	if _, err := s.uploader.Upload(ctx, newKey, contentType, reader); err != nil {
		return nil, fmt.Errorf("failed to upload tournament logo: %w", err)
	}
	if err := s.tournamentRepo.UpdateLogoKey(ctx, id, &newKey); err != nil {
		return nil, fmt.Errorf("failed to persist tournament logo key: %w", err)
	}
	tournament.LogoKey = &newKey

	if oldLogoKey != nil && *oldLogoKey != newKey {
		if err := s.uploader.Delete(ctx, *oldLogoKey); err != nil {
			s.logger.WarnContext(ctx, "failed to delete previous tournament logo",
				slog.Int("tournament_id", id), slog.Any("error", err))
		}
	}

	populateTournamentLogoURL(tournament, s.uploader)
	return tournament, nil
}

func (s *tournamentService) getTournament(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament %d: %w", id, err)
	}
	return tournament, nil
}

func dereferenceParticipants(slice []*models.Participant) []models.Participant {
	result := make([]models.Participant, 0, len(slice))
	for _, ptr := range slice {
		if ptr != nil {
			if ptr.User != nil {
				ptr.User.PasswordHash = ""
			}
			result = append(result, *ptr)
		}
	}
	return result
}

func dereferenceMatches(slice []*models.Match) []models.Match {
	result := make([]models.Match, 0, len(slice))
	for _, ptr := range slice {
		if ptr != nil {
			result = append(result, *ptr)
		}
	}
	return result
}

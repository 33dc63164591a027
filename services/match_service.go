package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MathiasNeri/Projet-Dev-FilRouge/brackets"
	"github.com/MathiasNeri/Projet-Dev-FilRouge/models"
	"github.com/MathiasNeri/Projet-Dev-FilRouge/repositories"
)

type RecordResultInput struct {
	Score1 int `json:"score1"`
	Score2 int `json:"score2"`
}

type MatchService interface {
	// RecordResult записывает счёт, выводит победителя и продвигает его
	// в следующий раунд сетки. Вся цепочка — одна транзакция.
	RecordResult(ctx context.Context, matchID, actorID int, input RecordResultInput) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.Match, error)
}

type matchService struct {
	db              *sql.DB
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	notifier        NotificationService
	hub             *brackets.Hub
	logger          *slog.Logger
}

func NewMatchService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	notifier NotificationService,
	hub *brackets.Hub,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		db:              db,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		notifier:        notifier,
		hub:             hub,
		logger:          logger,
	}
}

func (s *matchService) RecordResult(ctx context.Context, matchID, actorID int, input RecordResultInput) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to load match %d: %w", matchID, err)
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, match.TournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament %d: %w", match.TournamentID, err)
	}
	if tournament.CreatorID != actorID {
		return nil, ErrForbiddenOperation
	}
	if tournament.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: results can only be recorded while the tournament is active", ErrTournamentNotEditable)
	}
	if match.Status == models.MatchCompleted {
		return nil, ErrMatchAlreadyCompleted
	}
	if match.Player1ID == nil || match.Player2ID == nil {
		return nil, ErrMatchNotReady
	}
	if input.Score1 < 0 || input.Score2 < 0 {
		return nil, fmt.Errorf("%w: scores must be non-negative", ErrValidationFailed)
	}

	// Матчи существуют только у элиминационных сеток, а они требуют
	// однозначного победителя.
	if input.Score1 == input.Score2 {
		return nil, ErrTieNotAllowed
	}

	var winnerID, loserID int
	if input.Score1 > input.Score2 {
		winnerID, loserID = *match.Player1ID, *match.Player2ID
	} else {
		winnerID, loserID = *match.Player2ID, *match.Player1ID
	}

	doc, err := brackets.Parse(tournament.Bracket)
	if err != nil {
		return nil, fmt.Errorf("stored bracket for tournament %d is unreadable: %w", tournament.ID, err)
	}

	placements, err := doc.ApplyResult(match.Round, match.Slot, winnerID, loserID)
	if err != nil {
		return nil, fmt.Errorf("failed to propagate match result in bracket: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal updated bracket: %w", err)
	}

	tournamentComplete := doc.Complete()
	inLoserBracket := match.Round > len(doc.Main)
	// В single elimination проигравший выбывает сразу; в double — только
	// после поражения в нижней сетке.
	loserEliminated := doc.Loser == nil || inLoserBracket

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	var txErr error
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.ErrorContext(ctx, "rollback failed after match result error",
					slog.Int("match_id", matchID), slog.Any("error", rbErr))
			}
		}
	}()

	score1, score2 := input.Score1, input.Score2
	match.Score1, match.Score2 = &score1, &score2
	match.Status = models.MatchCompleted
	match.WinnerID = &winnerID

	txErr = s.matchRepo.UpdateScoreStatusWinner(ctx, tx, match.ID, match.Score1, match.Score2, match.Status, match.WinnerID)
	if txErr != nil {
		return nil, fmt.Errorf("failed to update match %d: %w", matchID, txErr)
	}

	var scheduled []*models.Match
	for _, placement := range placements {
		advanced, plErr := s.matchRepo.UpdatePlayerSlot(ctx, tx,
			tournament.ID, placement.Round, placement.Slot, placement.Position, placement.ParticipantID)
		if plErr != nil {
			txErr = fmt.Errorf("failed to mirror bracket placement into matches: %w", plErr)
			return nil, txErr
		}
		if advanced.Player1ID != nil && advanced.Player2ID != nil {
			scheduled = append(scheduled, advanced)
		}
	}

	if _, txErr = s.tournamentRepo.UpdateBracket(ctx, tx, tournament.ID, raw, tournament.BracketVersion); txErr != nil {
		if errors.Is(txErr, repositories.ErrBracketVersionStale) {
			return nil, ErrBracketVersionConflict
		}
		return nil, fmt.Errorf("failed to persist updated bracket: %w", txErr)
	}

	if loserEliminated {
		if txErr = s.participantRepo.UpdateStatus(ctx, tx, loserID, models.ParticipantEliminated); txErr != nil {
			return nil, fmt.Errorf("failed to eliminate participant %d: %w", loserID, txErr)
		}
	}

	if tournamentComplete {
		if txErr = s.participantRepo.UpdateStatus(ctx, tx, winnerID, models.ParticipantWinner); txErr != nil {
			return nil, fmt.Errorf("failed to mark tournament winner: %w", txErr)
		}
		if txErr = s.tournamentRepo.UpdateStatus(ctx, tx, tournament.ID, models.StatusCompleted); txErr != nil {
			return nil, fmt.Errorf("failed to complete tournament: %w", txErr)
		}
	}

	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("failed to commit match result: %w", txErr)
	}

	s.afterResultRecorded(ctx, tournament, match, winnerID, loserID, scheduled, tournamentComplete)
	return match, nil
}

// afterResultRecorded рассылает события после успешного коммита:
// результат матча обоим игрокам, расписание следующего матча — когда оба
// слота заполнились, и отдельное уведомление победителю турнира.
func (s *matchService) afterResultRecorded(
	ctx context.Context,
	tournament *models.Tournament,
	match *models.Match,
	winnerID, loserID int,
	scheduled []*models.Match,
	tournamentComplete bool,
) {
	room := fmt.Sprintf("tournament_%d", tournament.ID)
	if s.hub != nil {
		s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
			Type:    "MATCH_UPDATED",
			Payload: match,
		})
	}

	resultMsg := fmt.Sprintf("A result was recorded in tournament %q.", tournament.Name)
	for _, participantID := range []int{winnerID, loserID} {
		s.notifyParticipant(ctx, participantID, "Match result", resultMsg, models.NotificationMatchResult)
	}

	for _, next := range scheduled {
		msg := fmt.Sprintf("Your next match in tournament %q is ready (round %d).", tournament.Name, next.Round)
		if next.Player1ID != nil {
			s.notifyParticipant(ctx, *next.Player1ID, "Match scheduled", msg, models.NotificationMatchScheduled)
		}
		if next.Player2ID != nil {
			s.notifyParticipant(ctx, *next.Player2ID, "Match scheduled", msg, models.NotificationMatchScheduled)
		}
	}

	if tournamentComplete {
		s.notifyParticipant(ctx, winnerID,
			"Tournament won",
			fmt.Sprintf("You won tournament %q!", tournament.Name),
			models.NotificationMatchResult)
		if s.hub != nil {
			s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
				Type: "TOURNAMENT_COMPLETED",
				Payload: map[string]int{
					"tournament_id": tournament.ID,
					"winner_id":     winnerID,
				},
			})
		}
	}
}

// notifyParticipant переводит ID участника в ID пользователя; гости
// уведомлений не получают.
func (s *matchService) notifyParticipant(ctx context.Context, participantID int, title, message string, notifType models.NotificationType) {
	participant, err := s.participantRepo.FindByID(ctx, participantID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to resolve participant for notification",
			slog.Int("participant_id", participantID), slog.Any("error", err))
		return
	}
	if participant.UserID == nil {
		return
	}
	s.notifier.Notify(ctx, *participant.UserID, title, message, notifType)
}

func (s *matchService) ListByTournament(ctx context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.Match, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament %d: %w", tournamentID, err)
	}
	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, round, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return matches, nil
}

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

// BracketView — ответ API по сетке: документ плюс номер версии для
// optimistic concurrency при клиентских сохранениях.
type BracketView struct {
	TournamentID int             `json:"tournament_id"`
	Version      int             `json:"version"`
	Document     json.RawMessage `json:"document"`
}

type BracketService interface {
	// GenerateAndSave строит сетку из принятых участников и создаёт
	// строки матчей в одной транзакции.
	GenerateAndSave(ctx context.Context, tournamentID, actorID int) (*BracketView, error)
	// Save заменяет документ сетки целиком; version защищает от
	// конкурентной перезаписи.
	Save(ctx context.Context, tournamentID, actorID int, document json.RawMessage, version int) (*BracketView, error)
	Get(ctx context.Context, tournamentID int) (*BracketView, error)
}

type bracketService struct {
	db              *sql.DB
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	hub             *brackets.Hub
	logger          *slog.Logger
}

func NewBracketService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	hub *brackets.Hub,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		db:              db,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		hub:             hub,
		logger:          logger,
	}
}

func (s *bracketService) GenerateAndSave(ctx context.Context, tournamentID, actorID int) (*BracketView, error) {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.CreatorID != actorID {
		return nil, ErrForbiddenOperation
	}
	if tournament.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: bracket can only be generated while the tournament is pending", ErrTournamentNotEditable)
	}

	accepted := models.ParticipantAccepted
	participants, err := s.participantRepo.ListByTournament(ctx, tournamentID, &accepted, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list accepted participants: %w", err)
	}

	participantIDs := make([]int, len(participants))
	for i, p := range participants {
		participantIDs[i] = p.ID
	}

	doc, err := brackets.Generate(participantIDs, tournament.Format)
	if err != nil {
		if errors.Is(err, brackets.ErrNotEnoughParticipants) || errors.Is(err, brackets.ErrUnsupportedFormat) {
			return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		return nil, fmt.Errorf("failed to generate bracket: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bracket document: %w", err)
	}

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
				s.logger.ErrorContext(ctx, "rollback failed after bracket generation error",
					slog.Int("tournament_id", tournamentID), slog.Any("error", rbErr))
			}
		}
	}()

	// Перегенерация в pending заменяет и документ, и матчи целиком.
	if txErr = s.matchRepo.DeleteByTournament(ctx, tx, tournamentID); txErr != nil {
		return nil, fmt.Errorf("failed to clear previous matches: %w", txErr)
	}

	if txErr = s.createMatchRows(ctx, tx, tournamentID, doc); txErr != nil {
		return nil, txErr
	}

	newVersion, txErr := s.tournamentRepo.UpdateBracket(ctx, tx, tournamentID, raw, tournament.BracketVersion)
	if txErr != nil {
		if errors.Is(txErr, repositories.ErrBracketVersionStale) {
			return nil, ErrBracketVersionConflict
		}
		if errors.Is(txErr, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to store generated bracket: %w", txErr)
	}

	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("failed to commit bracket generation: %w", txErr)
	}

	view := &BracketView{TournamentID: tournamentID, Version: newVersion, Document: raw}
	s.broadcastBracket(tournamentID, view)
	return view, nil
}

// createMatchRows создаёт строку матча на каждый играбельный слот документа.
// Bye-слоты матчей не порождают: их победитель известен заранее.
func (s *bracketService) createMatchRows(ctx context.Context, tx *sql.Tx, tournamentID int, doc *brackets.Doc) error {
	storageRound := 0
	for _, roundSet := range [][]brackets.Round{doc.Main, doc.Loser} {
		for _, round := range roundSet {
			storageRound++
			for slotIdx, slot := range round {
				if slot.Bye {
					continue
				}
				match := &models.Match{
					TournamentID: tournamentID,
					Round:        storageRound,
					Slot:         slotIdx,
					Player1ID:    slot.Player1,
					Player2ID:    slot.Player2,
					Status:       models.MatchPending,
				}
				if err := s.matchRepo.Create(ctx, tx, match); err != nil {
					return fmt.Errorf("failed to create match for round %d slot %d: %w", storageRound, slotIdx, err)
				}
			}
		}
	}
	return nil
}

func (s *bracketService) Save(ctx context.Context, tournamentID, actorID int, document json.RawMessage, version int) (*BracketView, error) {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.CreatorID != actorID {
		return nil, ErrForbiddenOperation
	}

	doc, err := brackets.Parse(document)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBracketInvalid, err)
	}

	// Нормализованная сериализация: храним то, что распарсили,
	// а не клиентские байты как есть.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bracket document: %w", err)
	}

	newVersion, err := s.tournamentRepo.UpdateBracket(ctx, nil, tournamentID, raw, version)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketVersionStale) {
			return nil, ErrBracketVersionConflict
		}
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to save bracket: %w", err)
	}

	view := &BracketView{TournamentID: tournamentID, Version: newVersion, Document: raw}
	s.broadcastBracket(tournamentID, view)
	return view, nil
}

func (s *bracketService) Get(ctx context.Context, tournamentID int) (*BracketView, error) {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	view := &BracketView{
		TournamentID: tournamentID,
		Version:      tournament.BracketVersion,
	}
	if len(tournament.Bracket) > 0 {
		view.Document = tournament.Bracket
	}
	return view, nil
}

func (s *bracketService) getTournament(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament %d: %w", tournamentID, err)
	}
	return tournament, nil
}

func (s *bracketService) broadcastBracket(tournamentID int, view *BracketView) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToRoom(fmt.Sprintf("tournament_%d", tournamentID), brackets.WebSocketMessage{
		Type:    "BRACKET_UPDATED",
		Payload: view,
	})
}

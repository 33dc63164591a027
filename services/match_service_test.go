package services

import (
	"context"
	"testing"

	"github.com/MathiasNeri/Projet-Dev-FilRouge/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type matchFixture struct {
	tournamentRepo  *fakeTournamentRepo
	participantRepo *fakeParticipantRepo
	matchRepo       *fakeMatchRepo
	notifier        *fakeNotifier
	service         MatchService
}

func newMatchFixture() *matchFixture {
	f := &matchFixture{
		tournamentRepo:  newFakeTournamentRepo(),
		participantRepo: newFakeParticipantRepo(),
		matchRepo:       newFakeMatchRepo(),
		notifier:        &fakeNotifier{},
	}
	f.service = NewMatchService(nil, f.tournamentRepo, f.participantRepo, f.matchRepo, f.notifier, nil, testLogger())
	return f
}

// seedMatch создаёт активный турнир и матч первого раунда с двумя игроками.
func (f *matchFixture) seedMatch(t *testing.T) (*models.Tournament, *models.Match) {
	t.Helper()
	ctx := context.Background()

	tournament := &models.Tournament{
		Name:            "Cup",
		Description:     "desc",
		GameType:        "chess",
		Format:          models.FormatSingleElimination,
		Status:          models.StatusActive,
		CreatorID:       1,
		MaxParticipants: 4,
	}
	require.NoError(t, f.tournamentRepo.Create(ctx, tournament))

	p1, p2 := 11, 12
	match := &models.Match{
		TournamentID: tournament.ID,
		Round:        1,
		Slot:         0,
		Player1ID:    &p1,
		Player2ID:    &p2,
		Status:       models.MatchPending,
	}
	require.NoError(t, f.matchRepo.Create(ctx, nil, match))
	return tournament, match
}

func TestRecordResultValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("match not found", func(t *testing.T) {
		f := newMatchFixture()
		_, err := f.service.RecordResult(ctx, 99, 1, RecordResultInput{Score1: 1})
		assert.ErrorIs(t, err, ErrMatchNotFound)
	})

	t.Run("only creator may record", func(t *testing.T) {
		f := newMatchFixture()
		_, match := f.seedMatch(t)
		_, err := f.service.RecordResult(ctx, match.ID, 2, RecordResultInput{Score1: 1})
		assert.ErrorIs(t, err, ErrForbiddenOperation)
	})

	t.Run("tournament must be active", func(t *testing.T) {
		f := newMatchFixture()
		tournament, match := f.seedMatch(t)
		require.NoError(t, f.tournamentRepo.UpdateStatus(ctx, nil, tournament.ID, models.StatusPending))

		_, err := f.service.RecordResult(ctx, match.ID, 1, RecordResultInput{Score1: 1})
		assert.ErrorIs(t, err, ErrTournamentNotEditable)
	})

	t.Run("completed match is immutable", func(t *testing.T) {
		f := newMatchFixture()
		_, match := f.seedMatch(t)
		winner := *match.Player1ID
		require.NoError(t, f.matchRepo.UpdateScoreStatusWinner(ctx, nil, match.ID, nil, nil, models.MatchCompleted, &winner))

		_, err := f.service.RecordResult(ctx, match.ID, 1, RecordResultInput{Score1: 2, Score2: 1})
		assert.ErrorIs(t, err, ErrMatchAlreadyCompleted)
	})

	t.Run("both players must be assigned", func(t *testing.T) {
		f := newMatchFixture()
		tournament, _ := f.seedMatch(t)

		p1 := 13
		waiting := &models.Match{
			TournamentID: tournament.ID,
			Round:        2,
			Slot:         0,
			Player1ID:    &p1,
			Status:       models.MatchPending,
		}
		require.NoError(t, f.matchRepo.Create(ctx, nil, waiting))

		_, err := f.service.RecordResult(ctx, waiting.ID, 1, RecordResultInput{Score1: 1})
		assert.ErrorIs(t, err, ErrMatchNotReady)
	})

	t.Run("negative scores", func(t *testing.T) {
		f := newMatchFixture()
		_, match := f.seedMatch(t)
		_, err := f.service.RecordResult(ctx, match.ID, 1, RecordResultInput{Score1: -1, Score2: 2})
		assert.ErrorIs(t, err, ErrValidationFailed)
	})

	t.Run("ties are rejected", func(t *testing.T) {
		f := newMatchFixture()
		_, match := f.seedMatch(t)
		_, err := f.service.RecordResult(ctx, match.ID, 1, RecordResultInput{Score1: 2, Score2: 2})
		assert.ErrorIs(t, err, ErrTieNotAllowed)
	})
}

func TestListMatches(t *testing.T) {
	ctx := context.Background()
	f := newMatchFixture()
	tournament, _ := f.seedMatch(t)

	p3, p4 := 13, 14
	second := &models.Match{
		TournamentID: tournament.ID,
		Round:        1,
		Slot:         1,
		Player1ID:    &p3,
		Player2ID:    &p4,
		Status:       models.MatchPending,
	}
	require.NoError(t, f.matchRepo.Create(ctx, nil, second))

	t.Run("ordered by round and slot", func(t *testing.T) {
		matches, err := f.service.ListByTournament(ctx, tournament.ID, nil, nil)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, 0, matches[0].Slot)
		assert.Equal(t, 1, matches[1].Slot)
	})

	t.Run("round filter", func(t *testing.T) {
		round := 2
		matches, err := f.service.ListByTournament(ctx, tournament.ID, &round, nil)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("unknown tournament", func(t *testing.T) {
		_, err := f.service.ListByTournament(ctx, 99, nil, nil)
		assert.ErrorIs(t, err, ErrTournamentNotFound)
	})
}

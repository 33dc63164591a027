package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/MathiasNeri/Projet-Dev-FilRouge/brackets"
	"github.com/MathiasNeri/Projet-Dev-FilRouge/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bracketFixture struct {
	tournamentRepo  *fakeTournamentRepo
	participantRepo *fakeParticipantRepo
	matchRepo       *fakeMatchRepo
	service         BracketService
}

func newBracketFixture() *bracketFixture {
	f := &bracketFixture{
		tournamentRepo:  newFakeTournamentRepo(),
		participantRepo: newFakeParticipantRepo(),
		matchRepo:       newFakeMatchRepo(),
	}
	f.service = NewBracketService(nil, f.tournamentRepo, f.participantRepo, f.matchRepo, nil, testLogger())
	return f
}

func (f *bracketFixture) addTournament(t *testing.T, status models.TournamentStatus) *models.Tournament {
	t.Helper()
	tournament := &models.Tournament{
		Name:            "Cup",
		Description:     "desc",
		GameType:        "chess",
		Format:          models.FormatSingleElimination,
		Status:          status,
		CreatorID:       1,
		MaxParticipants: 8,
	}
	require.NoError(t, f.tournamentRepo.Create(context.Background(), tournament))
	return tournament
}

func (f *bracketFixture) addAccepted(t *testing.T, tournamentID int, name string) *models.Participant {
	t.Helper()
	p := &models.Participant{TournamentID: tournamentID, GuestName: &name, Status: models.ParticipantAccepted}
	require.NoError(t, f.participantRepo.Create(context.Background(), p))
	return p
}

func validBracketJSON(t *testing.T, participantIDs []int) json.RawMessage {
	t.Helper()
	doc, err := brackets.Generate(participantIDs, models.FormatSingleElimination)
	require.NoError(t, err)
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

func TestGenerateAndSaveValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("tournament not found", func(t *testing.T) {
		f := newBracketFixture()
		_, err := f.service.GenerateAndSave(ctx, 99, 1)
		assert.ErrorIs(t, err, ErrTournamentNotFound)
	})

	t.Run("only creator may generate", func(t *testing.T) {
		f := newBracketFixture()
		tournament := f.addTournament(t, models.StatusPending)
		_, err := f.service.GenerateAndSave(ctx, tournament.ID, 2)
		assert.ErrorIs(t, err, ErrForbiddenOperation)
	})

	t.Run("generation is pending-only", func(t *testing.T) {
		f := newBracketFixture()
		tournament := f.addTournament(t, models.StatusActive)
		_, err := f.service.GenerateAndSave(ctx, tournament.ID, 1)
		assert.ErrorIs(t, err, ErrTournamentNotEditable)
	})

	t.Run("needs at least two accepted participants", func(t *testing.T) {
		f := newBracketFixture()
		tournament := f.addTournament(t, models.StatusPending)
		f.addAccepted(t, tournament.ID, "Alone")
		_, err := f.service.GenerateAndSave(ctx, tournament.ID, 1)
		assert.ErrorIs(t, err, ErrValidationFailed)
	})
}

func TestSaveBracket(t *testing.T) {
	ctx := context.Background()

	t.Run("only creator may save", func(t *testing.T) {
		f := newBracketFixture()
		tournament := f.addTournament(t, models.StatusPending)
		_, err := f.service.Save(ctx, tournament.ID, 2, validBracketJSON(t, []int{1, 2}), 0)
		assert.ErrorIs(t, err, ErrForbiddenOperation)
	})

	t.Run("malformed document", func(t *testing.T) {
		f := newBracketFixture()
		tournament := f.addTournament(t, models.StatusPending)
		_, err := f.service.Save(ctx, tournament.ID, 1, json.RawMessage(`{"rounds":[]}`), 0)
		assert.ErrorIs(t, err, ErrBracketInvalid)
	})

	t.Run("save bumps the version", func(t *testing.T) {
		f := newBracketFixture()
		tournament := f.addTournament(t, models.StatusPending)

		view, err := f.service.Save(ctx, tournament.ID, 1, validBracketJSON(t, []int{1, 2}), 0)
		require.NoError(t, err)
		assert.Equal(t, 1, view.Version)
		assert.NotEmpty(t, view.Document)

		view, err = f.service.Save(ctx, tournament.ID, 1, validBracketJSON(t, []int{1, 2, 3}), 1)
		require.NoError(t, err)
		assert.Equal(t, 2, view.Version)
	})

	t.Run("stale version is a conflict", func(t *testing.T) {
		f := newBracketFixture()
		tournament := f.addTournament(t, models.StatusPending)

		_, err := f.service.Save(ctx, tournament.ID, 1, validBracketJSON(t, []int{1, 2}), 0)
		require.NoError(t, err)

		_, err = f.service.Save(ctx, tournament.ID, 1, validBracketJSON(t, []int{1, 2}), 0)
		assert.ErrorIs(t, err, ErrBracketVersionConflict)
	})
}

func TestGetBracket(t *testing.T) {
	ctx := context.Background()
	f := newBracketFixture()
	tournament := f.addTournament(t, models.StatusPending)

	t.Run("no document before generation", func(t *testing.T) {
		view, err := f.service.Get(ctx, tournament.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, view.Version)
		assert.Nil(t, view.Document)
	})

	t.Run("returns stored document and version", func(t *testing.T) {
		_, err := f.service.Save(ctx, tournament.ID, 1, validBracketJSON(t, []int{1, 2}), 0)
		require.NoError(t, err)

		view, err := f.service.Get(ctx, tournament.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, view.Version)
		assert.NotEmpty(t, view.Document)
	})

	t.Run("unknown tournament", func(t *testing.T) {
		_, err := f.service.Get(ctx, 99)
		assert.ErrorIs(t, err, ErrTournamentNotFound)
	})
}

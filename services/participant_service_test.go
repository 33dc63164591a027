package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/MathiasNeri/Projet-Dev-FilRouge/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type participantFixture struct {
	tournamentRepo  *fakeTournamentRepo
	participantRepo *fakeParticipantRepo
	userRepo        *fakeUserRepo
	service         ParticipantService
}

func newParticipantFixture() *participantFixture {
	f := &participantFixture{
		tournamentRepo:  newFakeTournamentRepo(),
		participantRepo: newFakeParticipantRepo(),
		userRepo:        newFakeUserRepo(),
	}
	f.service = NewParticipantService(f.tournamentRepo, f.participantRepo, f.userRepo, testLogger())
	return f
}

func (f *participantFixture) addUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{FirstName: "Test", Email: email, PasswordHash: "x"}
	require.NoError(t, f.userRepo.Create(context.Background(), user))
	return user
}

func (f *participantFixture) addTournament(t *testing.T, creatorID, maxParticipants int, status models.TournamentStatus) *models.Tournament {
	t.Helper()
	tournament := &models.Tournament{
		Name:            "Cup",
		Description:     "desc",
		GameType:        "chess",
		Format:          models.FormatSingleElimination,
		Status:          status,
		CreatorID:       creatorID,
		MaxParticipants: maxParticipants,
	}
	require.NoError(t, f.tournamentRepo.Create(context.Background(), tournament))
	return tournament
}

func TestRequestJoin(t *testing.T) {
	ctx := context.Background()

	t.Run("creates pending registration", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		user := f.addUser(t, "player@test.dev")
		tournament := f.addTournament(t, creator.ID, 4, models.StatusPending)

		p, err := f.service.RequestJoin(ctx, tournament.ID, user.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ParticipantPending, p.Status)
		require.NotNil(t, p.UserID)
		assert.Equal(t, user.ID, *p.UserID)
	})

	t.Run("conflict on repeated request", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		user := f.addUser(t, "player@test.dev")
		tournament := f.addTournament(t, creator.ID, 4, models.StatusPending)

		_, err := f.service.RequestJoin(ctx, tournament.ID, user.ID)
		require.NoError(t, err)
		_, err = f.service.RequestJoin(ctx, tournament.ID, user.ID)
		assert.ErrorIs(t, err, ErrRegistrationConflict)
	})

	t.Run("rejected registration is reopened, not duplicated", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		user := f.addUser(t, "player@test.dev")
		tournament := f.addTournament(t, creator.ID, 4, models.StatusPending)

		first, err := f.service.RequestJoin(ctx, tournament.ID, user.ID)
		require.NoError(t, err)
		_, err = f.service.Decide(ctx, tournament.ID, creator.ID, first.ID, DecideReject)
		require.NoError(t, err)

		reopened, err := f.service.RequestJoin(ctx, tournament.ID, user.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, reopened.ID)
		assert.Equal(t, models.ParticipantPending, reopened.Status)
		assert.Len(t, f.participantRepo.participants, 1)
	})

	t.Run("tournament not found", func(t *testing.T) {
		f := newParticipantFixture()
		user := f.addUser(t, "player@test.dev")

		_, err := f.service.RequestJoin(ctx, 99, user.ID)
		assert.ErrorIs(t, err, ErrTournamentNotFound)
	})

	t.Run("registration closed once tournament is active", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		user := f.addUser(t, "player@test.dev")
		tournament := f.addTournament(t, creator.ID, 4, models.StatusActive)

		_, err := f.service.RequestJoin(ctx, tournament.ID, user.ID)
		assert.ErrorIs(t, err, ErrRegistrationNotOpen)
	})
}

func TestDirectAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("only creator may add", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		other := f.addUser(t, "other@test.dev")
		tournament := f.addTournament(t, creator.ID, 4, models.StatusPending)

		guest := "Guest"
		_, err := f.service.DirectAdd(ctx, tournament.ID, other.ID, DirectAddInput{GuestName: &guest})
		assert.ErrorIs(t, err, ErrForbiddenOperation)
	})

	t.Run("guest is added as accepted", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		tournament := f.addTournament(t, creator.ID, 4, models.StatusPending)

		guest := "Alice"
		p, err := f.service.DirectAdd(ctx, tournament.ID, creator.ID, DirectAddInput{GuestName: &guest})
		require.NoError(t, err)
		assert.Equal(t, models.ParticipantAccepted, p.Status)
		assert.True(t, p.IsGuest())

		_, err = f.service.DirectAdd(ctx, tournament.ID, creator.ID, DirectAddInput{GuestName: &guest})
		assert.ErrorIs(t, err, ErrRegistrationConflict)
	})

	t.Run("resolves user by email", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		player := f.addUser(t, "player@test.dev")
		tournament := f.addTournament(t, creator.ID, 4, models.StatusPending)

		email := "player@test.dev"
		p, err := f.service.DirectAdd(ctx, tournament.ID, creator.ID, DirectAddInput{Email: &email})
		require.NoError(t, err)
		require.NotNil(t, p.UserID)
		assert.Equal(t, player.ID, *p.UserID)

		unknown := "ghost@test.dev"
		_, err = f.service.DirectAdd(ctx, tournament.ID, creator.ID, DirectAddInput{Email: &unknown})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("exactly one identity required", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		tournament := f.addTournament(t, creator.ID, 4, models.StatusPending)

		_, err := f.service.DirectAdd(ctx, tournament.ID, creator.ID, DirectAddInput{})
		assert.ErrorIs(t, err, ErrValidationFailed)

		email, guest := "a@test.dev", "Guest"
		_, err = f.service.DirectAdd(ctx, tournament.ID, creator.ID, DirectAddInput{Email: &email, GuestName: &guest})
		assert.ErrorIs(t, err, ErrValidationFailed)
	})

	t.Run("capacity enforced", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		tournament := f.addTournament(t, creator.ID, 2, models.StatusPending)

		for _, name := range []string{"A", "B"} {
			guest := name
			_, err := f.service.DirectAdd(ctx, tournament.ID, creator.ID, DirectAddInput{GuestName: &guest})
			require.NoError(t, err)
		}
		guest := "C"
		_, err := f.service.DirectAdd(ctx, tournament.ID, creator.ID, DirectAddInput{GuestName: &guest})
		assert.ErrorIs(t, err, ErrTournamentFull)
	})
}

func TestDecide(t *testing.T) {
	ctx := context.Background()

	t.Run("accept and reject", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		user := f.addUser(t, "player@test.dev")
		tournament := f.addTournament(t, creator.ID, 4, models.StatusPending)

		p, err := f.service.RequestJoin(ctx, tournament.ID, user.ID)
		require.NoError(t, err)

		accepted, err := f.service.Decide(ctx, tournament.ID, creator.ID, p.ID, DecideAccept)
		require.NoError(t, err)
		assert.Equal(t, models.ParticipantAccepted, accepted.Status)

		// Повторное решение допускается.
		rejected, err := f.service.Decide(ctx, tournament.ID, creator.ID, p.ID, DecideReject)
		require.NoError(t, err)
		assert.Equal(t, models.ParticipantRejected, rejected.Status)
	})

	t.Run("accept respects capacity", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		tournament := f.addTournament(t, creator.ID, 2, models.StatusPending)

		var lastID int
		for _, email := range []string{"a@test.dev", "b@test.dev", "c@test.dev"} {
			user := f.addUser(t, email)
			p, err := f.service.RequestJoin(ctx, tournament.ID, user.ID)
			require.NoError(t, err)
			lastID = p.ID
		}

		participants, err := f.participantRepo.ListByTournament(ctx, tournament.ID, nil, false)
		require.NoError(t, err)
		for _, p := range participants[:2] {
			_, err := f.service.Decide(ctx, tournament.ID, creator.ID, p.ID, DecideAccept)
			require.NoError(t, err)
		}

		_, err = f.service.Decide(ctx, tournament.ID, creator.ID, lastID, DecideAccept)
		assert.ErrorIs(t, err, ErrTournamentFull)
	})

	t.Run("errors", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		user := f.addUser(t, "player@test.dev")
		tournament := f.addTournament(t, creator.ID, 4, models.StatusPending)

		p, err := f.service.RequestJoin(ctx, tournament.ID, user.ID)
		require.NoError(t, err)

		_, err = f.service.Decide(ctx, tournament.ID, user.ID, p.ID, DecideAccept)
		assert.ErrorIs(t, err, ErrForbiddenOperation)

		_, err = f.service.Decide(ctx, tournament.ID, creator.ID, 999, DecideAccept)
		assert.ErrorIs(t, err, ErrParticipantNotFound)

		_, err = f.service.Decide(ctx, tournament.ID, creator.ID, p.ID, DecideAction("ban"))
		assert.ErrorIs(t, err, ErrValidationFailed)
	})
}

func TestLeave(t *testing.T) {
	ctx := context.Background()

	t.Run("creator cannot leave", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		tournament := f.addTournament(t, creator.ID, 4, models.StatusPending)

		err := f.service.Leave(ctx, tournament.ID, creator.ID)
		assert.ErrorIs(t, err, ErrCreatorCannotLeave)
	})

	t.Run("non-member gets bad request", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		user := f.addUser(t, "player@test.dev")
		tournament := f.addTournament(t, creator.ID, 4, models.StatusPending)

		err := f.service.Leave(ctx, tournament.ID, user.ID)
		assert.ErrorIs(t, err, ErrNotParticipant)
	})

	t.Run("member leaves, record is hard-deleted", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		user := f.addUser(t, "player@test.dev")
		tournament := f.addTournament(t, creator.ID, 4, models.StatusPending)

		_, err := f.service.RequestJoin(ctx, tournament.ID, user.ID)
		require.NoError(t, err)
		require.NoError(t, f.service.Leave(ctx, tournament.ID, user.ID))
		assert.Empty(t, f.participantRepo.participants)
	})
}

func TestKick(t *testing.T) {
	ctx := context.Background()

	t.Run("creator cannot kick self", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		tournament := f.addTournament(t, creator.ID, 4, models.StatusPending)

		self := &models.Participant{TournamentID: tournament.ID, UserID: &creator.ID, Status: models.ParticipantAccepted}
		require.NoError(t, f.participantRepo.Create(ctx, self))

		err := f.service.Kick(ctx, tournament.ID, creator.ID, self.ID)
		assert.ErrorIs(t, err, ErrCannotKickSelf)
	})

	t.Run("only creator may kick", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		user := f.addUser(t, "player@test.dev")
		tournament := f.addTournament(t, creator.ID, 4, models.StatusPending)

		p, err := f.service.RequestJoin(ctx, tournament.ID, user.ID)
		require.NoError(t, err)

		err = f.service.Kick(ctx, tournament.ID, user.ID, p.ID)
		assert.ErrorIs(t, err, ErrForbiddenOperation)
	})

	t.Run("kick removes the record", func(t *testing.T) {
		f := newParticipantFixture()
		creator := f.addUser(t, "creator@test.dev")
		user := f.addUser(t, "player@test.dev")
		tournament := f.addTournament(t, creator.ID, 4, models.StatusPending)

		p, err := f.service.RequestJoin(ctx, tournament.ID, user.ID)
		require.NoError(t, err)
		require.NoError(t, f.service.Kick(ctx, tournament.ID, creator.ID, p.ID))
		assert.Empty(t, f.participantRepo.participants)
	})
}

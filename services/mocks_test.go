package services

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/MathiasNeri/Projet-Dev-FilRouge/models"
	"github.com/MathiasNeri/Projet-Dev-FilRouge/repositories"
)

// In-memory фейки репозиториев для юнит-тестов сервисного слоя.

type fakeTournamentRepo struct {
	nextID      int
	tournaments map[int]*models.Tournament
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{nextID: 1, tournaments: make(map[int]*models.Tournament)}
}

func (r *fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	t.ID = r.nextID
	r.nextID++
	copied := *t
	r.tournaments[t.ID] = &copied
	return nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTournamentRepo) List(_ context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	result := make([]models.Tournament, 0)
	ids := make([]int, 0, len(r.tournaments))
	for id := range r.tournaments {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		t := r.tournaments[id]
		if filter.CreatorID != nil && t.CreatorID != *filter.CreatorID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		result = append(result, *t)
	}
	return result, nil
}

func (r *fakeTournamentRepo) Update(_ context.Context, t *models.Tournament) error {
	stored, ok := r.tournaments[t.ID]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	bracket, version := stored.Bracket, stored.BracketVersion
	copied := *t
	copied.Bracket, copied.BracketVersion = bracket, version
	r.tournaments[t.ID] = &copied
	return nil
}

func (r *fakeTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	return nil
}

func (r *fakeTournamentRepo) UpdateBracket(_ context.Context, _ repositories.SQLExecutor, id int, bracket json.RawMessage, expectedVersion int) (int, error) {
	t, ok := r.tournaments[id]
	if !ok {
		return 0, repositories.ErrTournamentNotFound
	}
	if t.BracketVersion != expectedVersion {
		return 0, repositories.ErrBracketVersionStale
	}
	t.Bracket = append(json.RawMessage(nil), bracket...)
	t.BracketVersion++
	return t.BracketVersion, nil
}

func (r *fakeTournamentRepo) UpdateLogoKey(_ context.Context, id int, logoKey *string) error {
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.LogoKey = logoKey
	return nil
}

func (r *fakeTournamentRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.tournaments, id)
	return nil
}

type fakeParticipantRepo struct {
	nextID       int
	participants map[int]*models.Participant
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{nextID: 1, participants: make(map[int]*models.Participant)}
}

func (r *fakeParticipantRepo) Create(_ context.Context, p *models.Participant) error {
	for _, existing := range r.participants {
		if existing.TournamentID != p.TournamentID {
			continue
		}
		if p.UserID != nil && existing.UserID != nil && *existing.UserID == *p.UserID {
			return repositories.ErrParticipantConflict
		}
		if p.GuestName != nil && existing.GuestName != nil && *existing.GuestName == *p.GuestName {
			return repositories.ErrParticipantConflict
		}
	}
	p.ID = r.nextID
	r.nextID++
	copied := *p
	r.participants[p.ID] = &copied
	return nil
}

func (r *fakeParticipantRepo) FindByID(_ context.Context, id int) (*models.Participant, error) {
	p, ok := r.participants[id]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeParticipantRepo) FindByUserAndTournament(_ context.Context, userID, tournamentID int) (*models.Participant, error) {
	for _, p := range r.participants {
		if p.TournamentID == tournamentID && p.UserID != nil && *p.UserID == userID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r *fakeParticipantRepo) FindByGuestAndTournament(_ context.Context, guestName string, tournamentID int) (*models.Participant, error) {
	for _, p := range r.participants {
		if p.TournamentID == tournamentID && p.GuestName != nil && *p.GuestName == guestName {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r *fakeParticipantRepo) ListByTournament(_ context.Context, tournamentID int, statusFilter *models.ParticipantStatus, _ bool) ([]*models.Participant, error) {
	ids := make([]int, 0, len(r.participants))
	for id := range r.participants {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	result := make([]*models.Participant, 0)
	for _, id := range ids {
		p := r.participants[id]
		if p.TournamentID != tournamentID {
			continue
		}
		if statusFilter != nil && p.Status != *statusFilter {
			continue
		}
		copied := *p
		result = append(result, &copied)
	}
	return result, nil
}

func (r *fakeParticipantRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.ParticipantStatus) error {
	p, ok := r.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.Status = status
	return nil
}

func (r *fakeParticipantRepo) CountByStatus(_ context.Context, tournamentID int, status models.ParticipantStatus) (int, error) {
	count := 0
	for _, p := range r.participants {
		if p.TournamentID == tournamentID && p.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *fakeParticipantRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.participants[id]; !ok {
		return repositories.ErrParticipantNotFound
	}
	delete(r.participants, id)
	return nil
}

func (r *fakeParticipantRepo) DeleteByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) error {
	for id, p := range r.participants {
		if p.TournamentID == tournamentID {
			delete(r.participants, id)
		}
	}
	return nil
}

type fakeUserRepo struct {
	nextID int
	users  map[int]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: make(map[int]*models.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	u.ID = r.nextID
	r.nextID++
	copied := *u
	r.users[u.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

type fakeMatchRepo struct {
	nextID  int
	matches map[int]*models.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{nextID: 1, matches: make(map[int]*models.Match)}
}

func (r *fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, m *models.Match) error {
	m.ID = r.nextID
	r.nextID++
	copied := *m
	r.matches[m.ID] = &copied
	return nil
}

func (r *fakeMatchRepo) GetByID(_ context.Context, id int) (*models.Match, error) {
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *fakeMatchRepo) ListByTournament(_ context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.Match, error) {
	ids := make([]int, 0, len(r.matches))
	for id := range r.matches {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	result := make([]*models.Match, 0)
	for _, id := range ids {
		m := r.matches[id]
		if m.TournamentID != tournamentID {
			continue
		}
		if round != nil && m.Round != *round {
			continue
		}
		if status != nil && m.Status != *status {
			continue
		}
		copied := *m
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Round != result[j].Round {
			return result[i].Round < result[j].Round
		}
		if result[i].Slot != result[j].Slot {
			return result[i].Slot < result[j].Slot
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *fakeMatchRepo) UpdateScoreStatusWinner(_ context.Context, _ repositories.SQLExecutor, id int, score1, score2 *int, status models.MatchStatus, winnerID *int) error {
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Score1, m.Score2, m.Status, m.WinnerID = score1, score2, status, winnerID
	return nil
}

func (r *fakeMatchRepo) UpdatePlayerSlot(_ context.Context, _ repositories.SQLExecutor, tournamentID, round, slot, position, participantID int) (*models.Match, error) {
	for _, m := range r.matches {
		if m.TournamentID == tournamentID && m.Round == round && m.Slot == slot {
			if position == 1 {
				m.Player1ID = &participantID
			} else {
				m.Player2ID = &participantID
			}
			copied := *m
			return &copied, nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (r *fakeMatchRepo) DeleteByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) error {
	for id, m := range r.matches {
		if m.TournamentID == tournamentID {
			delete(r.matches, id)
		}
	}
	return nil
}

type notifiedEvent struct {
	userID    int
	title     string
	notifType models.NotificationType
}

// fakeNotifier реализует NotificationService и записывает события.
type fakeNotifier struct {
	events []notifiedEvent
}

func (n *fakeNotifier) Notify(_ context.Context, userID int, title, _ string, notifType models.NotificationType) {
	n.events = append(n.events, notifiedEvent{userID: userID, title: title, notifType: notifType})
}

func (n *fakeNotifier) ListByUser(_ context.Context, _ int, _ bool) ([]*models.Notification, error) {
	return nil, nil
}

func (n *fakeNotifier) MarkRead(_ context.Context, _, _ int) error {
	return nil
}

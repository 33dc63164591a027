package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/MathiasNeri/Projet-Dev-FilRouge/models"
	"github.com/lib/pq"
)

var (
	ErrParticipantNotFound          = errors.New("participant not found")
	ErrParticipantConflict          = errors.New("participant conflict: user or guest already registered for this tournament")
	ErrParticipantUserInvalid       = errors.New("participant user conflict or invalid")
	ErrParticipantTournamentInvalid = errors.New("participant tournament conflict or invalid")
	ErrParticipantIdentityViolation = errors.New("participant identity violation: either user_id or guest_name must be set, but not both")
)

type ParticipantRepository interface {
	Create(ctx context.Context, p *models.Participant) error
	FindByID(ctx context.Context, id int) (*models.Participant, error)
	FindByUserAndTournament(ctx context.Context, userID, tournamentID int) (*models.Participant, error)
	FindByGuestAndTournament(ctx context.Context, guestName string, tournamentID int) (*models.Participant, error)
	ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.ParticipantStatus, includeUsers bool) ([]*models.Participant, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.ParticipantStatus) error
	CountByStatus(ctx context.Context, tournamentID int, status models.ParticipantStatus) (int, error)
	Delete(ctx context.Context, id int) error
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) Create(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (tournament_id, user_id, guest_name, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		p.TournamentID,
		p.UserID,
		p.GuestName,
		p.Status,
	).Scan(&p.ID, &p.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				if pqErr.Constraint == "participants_tournament_id_user_id_key" ||
					pqErr.Constraint == "participants_tournament_id_guest_name_key" {
					return ErrParticipantConflict
				}
			case "23503": // foreign_key_violation
				switch pqErr.Constraint {
				case "participants_user_id_fkey":
					return ErrParticipantUserInvalid
				case "participants_tournament_id_fkey":
					return ErrParticipantTournamentInvalid
				}
			case "23514": // check_violation
				if pqErr.Constraint == "chk_participant_identity" {
					return ErrParticipantIdentityViolation
				}
			}
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

func (r *postgresParticipantRepository) scanParticipant(rowScanner interface {
	Scan(dest ...interface{}) error
}, p *models.Participant) error {
	return rowScanner.Scan(
		&p.ID,
		&p.TournamentID,
		&p.UserID,
		&p.GuestName,
		&p.Status,
		&p.CreatedAt,
	)
}

func (r *postgresParticipantRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.Participant, error) {
	p := &models.Participant{}
	row := r.db.QueryRowContext(ctx, query, args...)
	err := r.scanParticipant(row, p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) FindByID(ctx context.Context, id int) (*models.Participant, error) {
	query := `SELECT id, tournament_id, user_id, guest_name, status, created_at FROM participants WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *postgresParticipantRepository) FindByUserAndTournament(ctx context.Context, userID, tournamentID int) (*models.Participant, error) {
	query := `SELECT id, tournament_id, user_id, guest_name, status, created_at FROM participants WHERE user_id = $1 AND tournament_id = $2`
	return r.findOne(ctx, query, userID, tournamentID)
}

func (r *postgresParticipantRepository) FindByGuestAndTournament(ctx context.Context, guestName string, tournamentID int) (*models.Participant, error) {
	query := `SELECT id, tournament_id, user_id, guest_name, status, created_at FROM participants WHERE guest_name = $1 AND tournament_id = $2`
	return r.findOne(ctx, query, guestName, tournamentID)
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.ParticipantStatus, includeUsers bool) ([]*models.Participant, error) {
	var queryBuilder strings.Builder
	args := []interface{}{tournamentID}
	argCounter := 2

	queryBuilder.WriteString(`
		SELECT
			p.id, p.tournament_id, p.user_id, p.guest_name, p.status, p.created_at`)
	if includeUsers {
		queryBuilder.WriteString(`,
			COALESCE(u.id, 0), COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), COALESCE(u.email, '')`)
	}
	queryBuilder.WriteString(`
		FROM participants p`)
	if includeUsers {
		queryBuilder.WriteString(`
		LEFT JOIN users u ON p.user_id = u.id`)
	}
	queryBuilder.WriteString(" WHERE p.tournament_id = $1")

	if statusFilter != nil {
		queryBuilder.WriteString(fmt.Sprintf(" AND p.status = $%d", argCounter))
		args = append(args, *statusFilter)
	}
	queryBuilder.WriteString(" ORDER BY p.created_at ASC, p.id ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants by tournament: %w", err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		var p models.Participant
		var u models.User
		scanDest := []interface{}{&p.ID, &p.TournamentID, &p.UserID, &p.GuestName, &p.Status, &p.CreatedAt}
		if includeUsers {
			scanDest = append(scanDest, &u.ID, &u.FirstName, &u.LastName, &u.Email)
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		if includeUsers && p.UserID != nil && u.ID > 0 {
			p.User = &u
		}
		participants = append(participants, &p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.ParticipantStatus) error {
	executor := SQLExecutor(r.db)
	if exec != nil {
		executor = exec
	}
	query := `UPDATE participants SET status = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update participant status: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) CountByStatus(ctx context.Context, tournamentID int, status models.ParticipantStatus) (int, error) {
	query := `SELECT COUNT(*) FROM participants WHERE tournament_id = $1 AND status = $2`
	var count int
	if err := r.db.QueryRowContext(ctx, query, tournamentID, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

func (r *postgresParticipantRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM participants WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := SQLExecutor(r.db)
	if exec != nil {
		executor = exec
	}
	query := `DELETE FROM participants WHERE tournament_id = $1`
	if _, err := executor.ExecContext(ctx, query, tournamentID); err != nil {
		return fmt.Errorf("failed to delete participants of tournament %d: %w", tournamentID, err)
	}
	return nil
}

package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MathiasNeri/Projet-Dev-FilRouge/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound       = errors.New("tournament not found")
	ErrTournamentCreatorInvalid = errors.New("invalid tournament creator reference")
	// ErrBracketVersionStale — сохранение сетки с устаревшим номером версии.
	ErrBracketVersionStale = errors.New("bracket version is stale")
)

type ListTournamentsFilter struct {
	CreatorID *int
	Status    *models.TournamentStatus
	GameType  *string
	Limit     int
	Offset    int
}

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	Update(ctx context.Context, tournament *models.Tournament) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	// UpdateBracket заменяет документ сетки целиком при совпадении версии
	// (optimistic lock) и возвращает новую версию.
	UpdateBracket(ctx context.Context, exec SQLExecutor, id int, bracket json.RawMessage, expectedVersion int) (int, error)
	UpdateLogoKey(ctx context.Context, id int, logoKey *string) error
	Delete(ctx context.Context, id int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (name, description, game_type, format, status, creator_id, max_participants)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, bracket_version, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.Description, t.GameType, t.Format, t.Status, t.CreatorID, t.MaxParticipants,
	).Scan(&t.ID, &t.BracketVersion, &t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `
		SELECT id, name, description, game_type, format, status, creator_id,
		       max_participants, bracket, bracket_version, created_at, logo_key
		FROM tournaments
		WHERE id = $1`

	t := &models.Tournament{}
	var bracket []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Description, &t.GameType, &t.Format, &t.Status, &t.CreatorID,
		&t.MaxParticipants, &bracket, &t.BracketVersion, &t.CreatedAt, &t.LogoKey,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament %d: %w", id, err)
	}
	if bracket != nil {
		t.Bracket = json.RawMessage(bracket)
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	query := `
		SELECT id, name, description, game_type, format, status, creator_id,
		       max_participants, bracket, bracket_version, created_at, logo_key
		FROM tournaments
		WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.CreatorID != nil {
		query += fmt.Sprintf(" AND creator_id = $%d", argID)
		args = append(args, *filter.CreatorID)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.GameType != nil {
		query += fmt.Sprintf(" AND game_type = $%d", argID)
		args = append(args, *filter.GameType)
		argID++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		var bracket []byte
		if scanErr := rows.Scan(
			&t.ID, &t.Name, &t.Description, &t.GameType, &t.Format, &t.Status, &t.CreatorID,
			&t.MaxParticipants, &bracket, &t.BracketVersion, &t.CreatedAt, &t.LogoKey,
		); scanErr != nil {
			return nil, scanErr
		}
		if bracket != nil {
			t.Bracket = json.RawMessage(bracket)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	query := `
		UPDATE tournaments SET
			name = $1,
			description = $2,
			game_type = $3,
			format = $4,
			status = $5,
			max_participants = $6
		WHERE id = $7`

	result, err := r.db.ExecContext(ctx, query,
		t.Name, t.Description, t.GameType, t.Format, t.Status, t.MaxParticipants, t.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateBracket(ctx context.Context, exec SQLExecutor, id int, bracket json.RawMessage, expectedVersion int) (int, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournaments
		SET bracket = $1, bracket_version = bracket_version + 1
		WHERE id = $2 AND bracket_version = $3
		RETURNING bracket_version`

	var newVersion int
	err := executor.QueryRowContext(ctx, query, []byte(bracket), id, expectedVersion).Scan(&newVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Либо турнира нет, либо версия устарела — различаем отдельным запросом.
			var exists bool
			if probeErr := executor.QueryRowContext(ctx,
				`SELECT EXISTS(SELECT 1 FROM tournaments WHERE id = $1)`, id).Scan(&exists); probeErr != nil {
				return 0, fmt.Errorf("failed to probe tournament %d: %w", id, probeErr)
			}
			if !exists {
				return 0, ErrTournamentNotFound
			}
			return 0, ErrBracketVersionStale
		}
		return 0, fmt.Errorf("failed to update bracket for tournament %d: %w", id, err)
	}
	return newVersion, nil
}

func (r *postgresTournamentRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	query := `UPDATE tournaments SET logo_key = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, logoKey, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament logo key: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// Delete удаляет турнир; участники и матчи каскадируются на уровне БД
// (ON DELETE CASCADE на participants.tournament_id и matches.tournament_id).
func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM tournaments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23503" && pqErr.Constraint == "tournaments_creator_id_fkey" {
			return ErrTournamentCreatorInvalid
		}
	}
	return err
}

package installation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Upsert inserts or replaces the mapping for m.TeamID. A zero InstalledAt
// is filled in by the database.
func (r *PostgresRepository) Upsert(ctx context.Context, m *TeamMapping) error {
	query := `
		INSERT INTO slack_installations (team_id, team_name, domain, instance_id, bot_token, installed_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, NOW()))
		ON CONFLICT (team_id) DO UPDATE SET
			team_name    = EXCLUDED.team_name,
			domain       = EXCLUDED.domain,
			instance_id  = EXCLUDED.instance_id,
			bot_token    = EXCLUDED.bot_token,
			installed_at = EXCLUDED.installed_at
		RETURNING installed_at`

	var installedAt any
	if !m.InstalledAt.IsZero() {
		installedAt = m.InstalledAt
	}

	err := r.pool.QueryRow(ctx, query,
		m.TeamID,
		m.TeamName,
		m.Domain,
		m.InstanceID,
		m.BotToken,
		installedAt,
	).Scan(&m.InstalledAt)
	if err != nil {
		return fmt.Errorf("upserting team mapping: %w", err)
	}

	return nil
}

// GetByTeamID retrieves the mapping for a team.
func (r *PostgresRepository) GetByTeamID(ctx context.Context, teamID string) (*TeamMapping, error) {
	query := `
		SELECT team_id, team_name, domain, instance_id, bot_token, installed_at
		FROM slack_installations
		WHERE team_id = $1`

	var m TeamMapping
	err := r.pool.QueryRow(ctx, query, teamID).Scan(&m.TeamID, &m.TeamName, &m.Domain, &m.InstanceID, &m.BotToken, &m.InstalledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying team mapping: %w", err)
	}

	return &m, nil
}

// List retrieves all mappings ordered by team id.
func (r *PostgresRepository) List(ctx context.Context) ([]TeamMapping, error) {
	query := `
		SELECT team_id, team_name, domain, instance_id, bot_token, installed_at
		FROM slack_installations
		ORDER BY team_id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing team mappings: %w", err)
	}
	defer rows.Close()

	var mappings []TeamMapping
	for rows.Next() {
		var m TeamMapping
		if err := rows.Scan(&m.TeamID, &m.TeamName, &m.Domain, &m.InstanceID, &m.BotToken, &m.InstalledAt); err != nil {
			return nil, fmt.Errorf("scanning team mapping row: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating team mapping rows: %w", err)
	}

	if mappings == nil {
		mappings = []TeamMapping{}
	}

	return mappings, nil
}

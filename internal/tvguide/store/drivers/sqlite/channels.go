package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/domain"
)

type channelsRepo struct {
	q querier
}

func (r *channelsRepo) CreateChannel(ctx context.Context, c domain.Channel) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO channels (id, name, country, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Country, c.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *channelsRepo) GetChannelByID(ctx context.Context, id string) (domain.Channel, error) {
	var c domain.Channel
	err := r.q.QueryRowContext(ctx,
		`SELECT id, name, country, created_at FROM channels WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Country, &c.CreatedAt)
	if err != nil {
		return domain.Channel{}, mapNotFound(err)
	}
	return c, nil
}

func (r *channelsRepo) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, name, country, created_at FROM channels ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Channel{}
	for rows.Next() {
		var c domain.Channel
		if err := rows.Scan(&c.ID, &c.Name, &c.Country, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *channelsRepo) DeleteChannel(ctx context.Context, id string) error {
	return expectOne(r.q.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id))
}

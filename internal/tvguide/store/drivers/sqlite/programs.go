package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/domain"
	"github.com/aussiebroadwan/tvguide/internal/tvguide/store"
)

type programsRepo struct {
	q querier
}

const programColumns = `id, channel_id, title, description, tags, start_time, end_time, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgram(row rowScanner) (domain.Program, error) {
	var (
		p    domain.Program
		tags string
	)
	if err := row.Scan(&p.ID, &p.ChannelID, &p.Title, &p.Description, &tags,
		&p.StartTime, &p.EndTime, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Program{}, err
	}
	decoded, err := decodeTags(tags)
	if err != nil {
		return domain.Program{}, err
	}
	p.Tags = decoded
	return p, nil
}

func (r *programsRepo) CreateProgram(ctx context.Context, p domain.Program) error {
	tags, err := encodeTags(p.Tags)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO programs (`+programColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ChannelID, p.Title, p.Description, tags,
		p.StartTime.UTC(), p.EndTime.UTC(), p.CreatedAt, now,
	)
	return mapConstraint(err)
}

func (r *programsRepo) GetProgramByID(ctx context.Context, id string) (domain.Program, error) {
	p, err := scanProgram(r.q.QueryRowContext(ctx,
		`SELECT `+programColumns+` FROM programs WHERE id = ?`, id))
	if err != nil {
		return domain.Program{}, mapNotFound(err)
	}
	return p, nil
}

func (r *programsRepo) ListPrograms(ctx context.Context, f store.ProgramFilter) ([]domain.Program, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if f.ChannelID != "" {
		rows, err = r.q.QueryContext(ctx,
			`SELECT `+programColumns+` FROM programs WHERE channel_id = ? ORDER BY start_time, id`, f.ChannelID)
	} else {
		rows, err = r.q.QueryContext(ctx,
			`SELECT `+programColumns+` FROM programs ORDER BY start_time, id`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Program{}
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *programsRepo) UpdateProgram(ctx context.Context, p domain.Program) error {
	tags, err := encodeTags(p.Tags)
	if err != nil {
		return err
	}
	return mapConstraint(expectOne(r.q.ExecContext(ctx,
		`UPDATE programs
		    SET channel_id = ?, title = ?, description = ?, tags = ?,
		        start_time = ?, end_time = ?, updated_at = ?
		  WHERE id = ?`,
		p.ChannelID, p.Title, p.Description, tags,
		p.StartTime.UTC(), p.EndTime.UTC(), time.Now().UTC(), p.ID,
	)))
}

func (r *programsRepo) DeleteProgram(ctx context.Context, id string) error {
	return expectOne(r.q.ExecContext(ctx, `DELETE FROM programs WHERE id = ?`, id))
}

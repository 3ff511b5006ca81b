package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/domain"
	"github.com/aussiebroadwan/tvguide/internal/tvguide/store"
	"github.com/aussiebroadwan/tvguide/pkg/idx"
	"github.com/aussiebroadwan/tvguide/pkg/slogx"
)

type ChannelInput struct {
	Name    string
	Country string
}

type ProgramInput struct {
	ChannelID   string
	Title       string
	Description string
	Tags        []string
	StartTime   time.Time
	EndTime     time.Time
}

// CatalogService manages channels and their scheduled programs.
type CatalogService struct {
	Store store.Store
}

func (s *CatalogService) CreateChannel(ctx context.Context, in ChannelInput) (domain.Channel, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Channel{}, malformed("name", "is required")
	}

	now := time.Now().UTC()
	c := domain.Channel{
		ID:        idx.NewAt(now).String(),
		Name:      name,
		Country:   strings.ToUpper(strings.TrimSpace(in.Country)),
		CreatedAt: now,
	}
	if err := s.Store.Channels().CreateChannel(ctx, c); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Channel{}, ErrChannelExists
		}
		return domain.Channel{}, unavailable(err)
	}

	slogx.FromContext(ctx).Info("channel created", slog.String("channel_id", c.ID), slog.String("name", c.Name))
	return c, nil
}

func (s *CatalogService) GetChannel(ctx context.Context, id string) (domain.Channel, error) {
	c, err := s.Store.Channels().GetChannelByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Channel{}, ErrChannelNotFound
		}
		return domain.Channel{}, unavailable(err)
	}
	return c, nil
}

func (s *CatalogService) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	cs, err := s.Store.Channels().ListChannels(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	return cs, nil
}

// DeleteChannel removes the channel and, through the schema, its programs.
func (s *CatalogService) DeleteChannel(ctx context.Context, id string) error {
	if err := s.Store.Channels().DeleteChannel(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrChannelNotFound
		}
		return unavailable(err)
	}
	slogx.FromContext(ctx).Info("channel deleted", slog.String("channel_id", id))
	return nil
}

func (s *CatalogService) CreateProgram(ctx context.Context, in ProgramInput) (domain.Program, error) {
	in, err := normalizeProgram(in)
	if err != nil {
		return domain.Program{}, err
	}

	now := time.Now().UTC()
	p := domain.Program{
		ID:          idx.NewAt(now).String(),
		ChannelID:   in.ChannelID,
		Title:       in.Title,
		Description: in.Description,
		Tags:        in.Tags,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = inTx(ctx, s.Store, func(tx store.Tx) error {
		if _, err := tx.Channels().GetChannelByID(ctx, p.ChannelID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrChannelNotFound
			}
			return unavailable(err)
		}
		return s.writeErr(tx.Programs().CreateProgram(ctx, p))
	})
	if err != nil {
		return domain.Program{}, err
	}

	slogx.FromContext(ctx).Info("program created",
		slog.String("program_id", p.ID),
		slog.String("channel_id", p.ChannelID),
	)
	return p, nil
}

func (s *CatalogService) GetProgram(ctx context.Context, id string) (domain.Program, error) {
	p, err := s.Store.Programs().GetProgramByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Program{}, ErrProgramNotFound
		}
		return domain.Program{}, unavailable(err)
	}
	return p, nil
}

// ListPrograms lists programs ordered by start time. A non-empty channelID
// restricts the listing and must name an existing channel.
func (s *CatalogService) ListPrograms(ctx context.Context, channelID string) ([]domain.Program, error) {
	if channelID != "" {
		if _, err := s.GetChannel(ctx, channelID); err != nil {
			return nil, err
		}
	}
	ps, err := s.Store.Programs().ListPrograms(ctx, store.ProgramFilter{ChannelID: channelID})
	if err != nil {
		return nil, unavailable(err)
	}
	return ps, nil
}

// UpdateProgram replaces every mutable field of program id.
func (s *CatalogService) UpdateProgram(ctx context.Context, id string, in ProgramInput) (domain.Program, error) {
	in, err := normalizeProgram(in)
	if err != nil {
		return domain.Program{}, err
	}

	var p domain.Program
	err = inTx(ctx, s.Store, func(tx store.Tx) error {
		cur, err := tx.Programs().GetProgramByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrProgramNotFound
			}
			return unavailable(err)
		}
		if _, err := tx.Channels().GetChannelByID(ctx, in.ChannelID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrChannelNotFound
			}
			return unavailable(err)
		}

		cur.ChannelID = in.ChannelID
		cur.Title = in.Title
		cur.Description = in.Description
		cur.Tags = in.Tags
		cur.StartTime = in.StartTime
		cur.EndTime = in.EndTime
		cur.UpdatedAt = time.Now().UTC()
		p = cur
		return s.writeErr(tx.Programs().UpdateProgram(ctx, cur))
	})
	if err != nil {
		return domain.Program{}, err
	}

	slogx.FromContext(ctx).Info("program updated", slog.String("program_id", p.ID))
	return p, nil
}

func (s *CatalogService) DeleteProgram(ctx context.Context, id string) error {
	if err := s.Store.Programs().DeleteProgram(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrProgramNotFound
		}
		return unavailable(err)
	}
	slogx.FromContext(ctx).Info("program deleted", slog.String("program_id", id))
	return nil
}

func (s *CatalogService) writeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrInvalidReference):
		return ErrChannelNotFound
	case errors.Is(err, store.ErrNotFound):
		return ErrProgramNotFound
	default:
		return unavailable(err)
	}
}

func normalizeProgram(in ProgramInput) (ProgramInput, error) {
	in.ChannelID = strings.TrimSpace(in.ChannelID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.ChannelID == "" {
		return in, malformed("channel_id", "is required")
	}
	if in.Title == "" {
		return in, malformed("title", "is required")
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return in, malformed("start_time", "start_time and end_time are required")
	}
	if !in.EndTime.After(in.StartTime) {
		return in, malformed("end_time", "must be after start_time")
	}

	tags := make([]string, 0, len(in.Tags))
	seen := make(map[string]struct{}, len(in.Tags))
	for _, t := range in.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	in.Tags = tags
	in.StartTime = in.StartTime.UTC()
	in.EndTime = in.EndTime.UTC()
	return in, nil
}

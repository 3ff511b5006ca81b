package http

import (
	"github.com/aussiebroadwan/tvguide/internal/tvguide/domain"
	"github.com/aussiebroadwan/tvguide/pkg/authsdk"
)

func userResponse(u domain.User) authsdk.UserResponse {
	return authsdk.UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.RoleName(),
	}
}

func channelResponse(c domain.Channel) authsdk.ChannelResponse {
	return authsdk.ChannelResponse{
		ID:        c.ID,
		Name:      c.Name,
		Country:   c.Country,
		CreatedAt: c.CreatedAt,
	}
}

func programResponse(p domain.Program) authsdk.ProgramResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return authsdk.ProgramResponse{
		ID:          p.ID,
		ChannelID:   p.ChannelID,
		Title:       p.Title,
		Description: p.Description,
		Tags:        tags,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

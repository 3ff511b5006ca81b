package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

func (c *SDKClient) ListChannels(ctx context.Context) ([]ChannelResponse, error) {
	var out ChannelListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/channels", "", nil, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Channels, nil
}

func (c *SDKClient) GetChannel(ctx context.Context, id string) (*ChannelResponse, error) {
	var out ChannelResponse
	if err := c.doJSON(ctx, http.MethodGet, "/channels/"+url.PathEscape(id), "", nil, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPrograms lists programs in start order, optionally for one channel.
func (c *SDKClient) ListPrograms(ctx context.Context, channelID string) ([]ProgramResponse, error) {
	path := "/programs"
	if channelID != "" {
		path += "?" + url.Values{"channel_id": {channelID}}.Encode()
	}
	var out ProgramListResponse
	if err := c.doJSON(ctx, http.MethodGet, path, "", nil, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Programs, nil
}

func (c *SDKClient) GetProgram(ctx context.Context, id string) (*ProgramResponse, error) {
	var out ProgramResponse
	if err := c.doJSON(ctx, http.MethodGet, "/programs/"+url.PathEscape(id), "", nil, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

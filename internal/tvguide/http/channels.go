package http

import (
	"net/http"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/service"
	"github.com/aussiebroadwan/tvguide/pkg/authsdk"
	"github.com/aussiebroadwan/tvguide/pkg/httpx"
)

type ChannelsHandler struct {
	CatalogService *service.CatalogService
}

// HandleList godoc
//
//	@Summary	List channels
//	@Tags		Channels
//	@Produce	json
//	@Success	200	{object}	authsdk.ChannelListResponse
//	@Failure	429	{object}	authsdk.ErrorResponse	"Too many requests"
//	@Router		/channels [get].
func (h *ChannelsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	cs, err := h.CatalogService.ListChannels(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := authsdk.ChannelListResponse{Channels: make([]authsdk.ChannelResponse, 0, len(cs))}
	for _, c := range cs {
		resp.Channels = append(resp.Channels, channelResponse(c))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet godoc
//
//	@Summary	Get a channel
//	@Tags		Channels
//	@Produce	json
//	@Param		id	path		string	true	"Channel ID"
//	@Success	200	{object}	authsdk.ChannelResponse
//	@Failure	404	{object}	authsdk.ErrorResponse	"Channel not found"
//	@Router		/channels/{id} [get].
func (h *ChannelsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.CatalogService.GetChannel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, channelResponse(c))
}

// HandleCreate godoc
//
//	@Summary	Create a channel
//	@Tags		Channels
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		request	body		authsdk.ChannelRequest	true	"Channel"
//	@Success	201		{object}	authsdk.ChannelResponse
//	@Failure	400		{object}	authsdk.ErrorResponse	"Validation failed"
//	@Failure	401		{object}	authsdk.ErrorResponse	"Missing, invalid or expired access token"
//	@Failure	403		{object}	authsdk.ErrorResponse	"Caller is not an admin"
//	@Failure	409		{object}	authsdk.ErrorResponse	"Channel name already in use"
//	@Router		/channels [post].
func (h *ChannelsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ChannelRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}

	c, err := h.CatalogService.CreateChannel(r.Context(), service.ChannelInput{
		Name:    req.Name,
		Country: req.Country,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/channels/"+c.ID)
	httpx.WriteJSON(w, http.StatusCreated, channelResponse(c))
}

// HandleDelete godoc
//
//	@Summary		Delete a channel
//	@Description	Deletes the channel and every program scheduled on it.
//	@Tags			Channels
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Channel ID"
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse	"Missing, invalid or expired access token"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Caller is not an admin"
//	@Failure		404	{object}	authsdk.ErrorResponse	"Channel not found"
//	@Router			/channels/{id} [delete].
func (h *ChannelsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.CatalogService.DeleteChannel(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

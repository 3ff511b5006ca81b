package http

import (
	"net/http"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/service"
	"github.com/aussiebroadwan/tvguide/pkg/authsdk"
	"github.com/aussiebroadwan/tvguide/pkg/httpx"
)

type ProgramsHandler struct {
	CatalogService *service.CatalogService
}

func programInput(req authsdk.ProgramRequest) service.ProgramInput {
	return service.ProgramInput{
		ChannelID:   req.ChannelID,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}
}

// HandleList godoc
//
//	@Summary	List programs
//	@Tags		Programs
//	@Produce	json
//	@Param		channel_id	query		string	false	"Only programs on this channel"
//	@Success	200			{object}	authsdk.ProgramListResponse
//	@Failure	404			{object}	authsdk.ErrorResponse	"Channel not found"
//	@Router		/programs [get].
func (h *ProgramsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ps, err := h.CatalogService.ListPrograms(r.Context(), r.URL.Query().Get("channel_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := authsdk.ProgramListResponse{Programs: make([]authsdk.ProgramResponse, 0, len(ps))}
	for _, p := range ps {
		resp.Programs = append(resp.Programs, programResponse(p))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet godoc
//
//	@Summary	Get a program
//	@Tags		Programs
//	@Produce	json
//	@Param		id	path		string	true	"Program ID"
//	@Success	200	{object}	authsdk.ProgramResponse
//	@Failure	404	{object}	authsdk.ErrorResponse	"Program not found"
//	@Router		/programs/{id} [get].
func (h *ProgramsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.CatalogService.GetProgram(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, programResponse(p))
}

// HandleCreate godoc
//
//	@Summary	Schedule a program
//	@Tags		Programs
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		request	body		authsdk.ProgramRequest	true	"Program"
//	@Success	201		{object}	authsdk.ProgramResponse
//	@Failure	400		{object}	authsdk.ErrorResponse	"Validation failed"
//	@Failure	401		{object}	authsdk.ErrorResponse	"Missing, invalid or expired access token"
//	@Failure	403		{object}	authsdk.ErrorResponse	"Caller is not an admin"
//	@Failure	404		{object}	authsdk.ErrorResponse	"Channel not found"
//	@Router		/programs [post].
func (h *ProgramsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ProgramRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}

	p, err := h.CatalogService.CreateProgram(r.Context(), programInput(req))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/programs/"+p.ID)
	httpx.WriteJSON(w, http.StatusCreated, programResponse(p))
}

// HandleUpdate godoc
//
//	@Summary	Replace a program
//	@Tags		Programs
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string					true	"Program ID"
//	@Param		request	body		authsdk.ProgramRequest	true	"Program"
//	@Success	200		{object}	authsdk.ProgramResponse
//	@Failure	400		{object}	authsdk.ErrorResponse	"Validation failed"
//	@Failure	401		{object}	authsdk.ErrorResponse	"Missing, invalid or expired access token"
//	@Failure	403		{object}	authsdk.ErrorResponse	"Caller is not an admin"
//	@Failure	404		{object}	authsdk.ErrorResponse	"Program or channel not found"
//	@Router		/programs/{id} [put].
func (h *ProgramsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ProgramRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}

	p, err := h.CatalogService.UpdateProgram(r.Context(), r.PathValue("id"), programInput(req))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, programResponse(p))
}

// HandleDelete godoc
//
//	@Summary	Delete a program
//	@Tags		Programs
//	@Security	BearerAuth
//	@Param		id	path	string	true	"Program ID"
//	@Success	204
//	@Failure	401	{object}	authsdk.ErrorResponse	"Missing, invalid or expired access token"
//	@Failure	403	{object}	authsdk.ErrorResponse	"Caller is not an admin"
//	@Failure	404	{object}	authsdk.ErrorResponse	"Program not found"
//	@Router		/programs/{id} [delete].
func (h *ProgramsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.CatalogService.DeleteProgram(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

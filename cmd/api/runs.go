package main

import (
	"net/http"

	"github.com/farxc/ans-expenses/internal/response"
	"github.com/farxc/ans-expenses/internal/store"
)

type GetRunsResponse = response.APIResponse[[]store.PipelineRun]

// @Summary		Get pipeline runs
// @Description	Get a list of the latest ETL runs.
// @Tags			Runs
// @Produce		json
// @Param			limit	query		int						false	"Limit the number of results"	default(10)
// @Success		200		{object}	GetRunsResponse			"Successfully retrieved latest runs"
// @Failure		500		{object}	response.ErrorResponse	"Failed to get run history"
// @Router			/runs [get]
func (app *application) handleGetRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntParam(r.URL.Query().Get("limit"), 10, maxPageLimit)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid limit parameter: "+err.Error())
		return
	}

	data, err := app.store.PipelineRuns.GetLatest(r.Context(), limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to get run history: "+err.Error())
		return
	}
	if data == nil {
		data = []store.PipelineRun{}
	}

	response := &GetRunsResponse{
		Success: true,
		Data:    data,
		Message: "Successfully retrieved latest runs",
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

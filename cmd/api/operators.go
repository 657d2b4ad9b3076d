package main

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/farxc/ans-expenses/internal/ans/cnpj"
	"github.com/farxc/ans-expenses/internal/ans/types"
	"github.com/farxc/ans-expenses/internal/ans/utils"
	"github.com/farxc/ans-expenses/internal/response"
	"github.com/farxc/ans-expenses/internal/store"
	"github.com/go-chi/chi/v5"
)

const maxPageLimit = 100

type OperatorsPage struct {
	Operators []types.Operator `json:"operadoras"`
	Page      int              `json:"page"`
	Limit     int              `json:"limit"`
	Total     int              `json:"total"`
}

type OperatorExpenses struct {
	Operator types.Operator              `json:"operadora"`
	Expenses []store.ConsolidatedExpense `json:"despesas"`
}

type ListOperatorsResponse = response.APIResponse[OperatorsPage]
type ListRegionsResponse = response.APIResponse[[]string]
type GetOperatorResponse = response.APIResponse[types.Operator]
type GetOperatorExpensesResponse = response.APIResponse[OperatorExpenses]

// @Summary		List operators
// @Description	Pages through registered operators, optionally filtered by name, CNPJ or UF.
// @Tags			Operators
// @Produce		json
// @Param			page	query		int						false	"Page number"	default(1)
// @Param			limit	query		int						false	"Page size"		default(10)
// @Param			search	query		string					false	"Legal name, trade name or CNPJ digits"
// @Param			uf		query		string					false	"Two-letter UF"
// @Success		200		{object}	ListOperatorsResponse
// @Failure		400		{object}	response.ErrorResponse
// @Failure		500		{object}	response.ErrorResponse
// @Router			/operators [get]
func (app *application) handleListOperators(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := parseIntParam(q.Get("page"), 1, 1<<20)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid page parameter: "+err.Error())
		return
	}
	limit, err := parseIntParam(q.Get("limit"), 10, maxPageLimit)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid limit parameter: "+err.Error())
		return
	}

	filter := store.OperatorFilter{Page: page, Limit: limit, Search: q.Get("search"), Region: q.Get("uf")}
	operators, total, err := app.store.Operators.List(r.Context(), filter)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to list operators: "+err.Error())
		return
	}
	if operators == nil {
		operators = []types.Operator{}
	}

	response := &ListOperatorsResponse{
		Success: true,
		Data:    OperatorsPage{Operators: operators, Page: page, Limit: limit, Total: total},
	}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		List UFs
// @Description	Distinct UFs present in the operator registry.
// @Tags			Operators
// @Produce		json
// @Success		200	{object}	ListRegionsResponse
// @Failure		500	{object}	response.ErrorResponse
// @Router			/operators/ufs [get]
func (app *application) handleListRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := app.store.Operators.Regions(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to list UFs: "+err.Error())
		return
	}
	if regions == nil {
		regions = []string{}
	}

	response := &ListRegionsResponse{Success: true, Data: regions}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// operatorFromPath resolves the {cnpj} parameter, writing the error response
// itself when it cannot.
func (app *application) operatorFromPath(w http.ResponseWriter, r *http.Request) (types.Operator, bool) {
	raw := chi.URLParam(r, "cnpj")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	digits := utils.OnlyDigits(raw)
	if !cnpj.IsValid(digits) {
		writeJSONError(w, http.StatusBadRequest, "invalid CNPJ")
		return types.Operator{}, false
	}

	op, err := app.store.Operators.GetByTaxID(r.Context(), digits)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "operator not found")
		return types.Operator{}, false
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, "failed to get operator: "+err.Error())
		return types.Operator{}, false
	}
	return op, true
}

// @Summary		Get operator
// @Tags			Operators
// @Produce		json
// @Param			cnpj	path		string	true	"CNPJ, formatted or digits only"
// @Success		200		{object}	GetOperatorResponse
// @Failure		400		{object}	response.ErrorResponse
// @Failure		404		{object}	response.ErrorResponse
// @Router			/operators/{cnpj} [get]
func (app *application) handleGetOperator(w http.ResponseWriter, r *http.Request) {
	op, ok := app.operatorFromPath(w, r)
	if !ok {
		return
	}

	response := &GetOperatorResponse{Success: true, Data: op}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Get operator expenses
// @Description	Quarterly consolidated expenses of one operator, oldest first.
// @Tags			Operators
// @Produce		json
// @Param			cnpj	path		string	true	"CNPJ, formatted or digits only"
// @Success		200		{object}	GetOperatorExpensesResponse
// @Failure		400		{object}	response.ErrorResponse
// @Failure		404		{object}	response.ErrorResponse
// @Router			/operators/{cnpj}/expenses [get]
func (app *application) handleGetOperatorExpenses(w http.ResponseWriter, r *http.Request) {
	op, ok := app.operatorFromPath(w, r)
	if !ok {
		return
	}

	expenses, err := app.store.Expenses.ByRegistryID(r.Context(), op.RegistryID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to get expenses: "+err.Error())
		return
	}
	if expenses == nil {
		expenses = []store.ConsolidatedExpense{}
	}

	response := &GetOperatorExpensesResponse{
		Success: true,
		Data:    OperatorExpenses{Operator: op, Expenses: expenses},
	}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

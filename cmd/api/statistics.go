package main

import (
	"net/http"

	"github.com/farxc/ans-expenses/internal/response"
	"github.com/farxc/ans-expenses/internal/store"
	"github.com/shopspring/decimal"
)

const (
	defaultTop = 5
	maxTop     = 50
)

type TopOperator struct {
	LegalName string          `json:"razao_social"`
	Region    string          `json:"uf"`
	Total     decimal.Decimal `json:"total_despesas"`
	Mean      float64         `json:"media_trimestral"`
	StdDev    *float64        `json:"desvio_padrao"`
	Count     int             `json:"qtd_trimestres"`
}

type StatisticsView struct {
	Total    decimal.Decimal     `json:"total_despesas"`
	Mean     decimal.Decimal     `json:"media_despesas"`
	Top      []TopOperator       `json:"top_operadoras"`
	ByRegion []store.RegionTotal `json:"despesas_por_uf"`
}

type GetStatisticsResponse = response.APIResponse[StatisticsView]

func statisticsView(s store.Statistics) StatisticsView {
	view := StatisticsView{
		Total:    s.Total,
		Mean:     s.Mean,
		Top:      make([]TopOperator, 0, len(s.Top)),
		ByRegion: s.ByRegion,
	}
	if view.ByRegion == nil {
		view.ByRegion = []store.RegionTotal{}
	}
	for _, a := range s.Top {
		t := TopOperator{LegalName: a.LegalName, Region: a.Region, Total: a.Total, Mean: a.Mean, Count: a.Count}
		if a.StdDev.Valid {
			sd := a.StdDev.Float64
			t.StdDev = &sd
		}
		view.Top = append(view.Top, t)
	}
	return view
}

// @Summary		Expense statistics
// @Description	Overall total and mean, the top operators by total and the distribution per UF.
// @Tags			Statistics
// @Produce		json
// @Param			top	query		int	false	"Number of top operators"	default(5)
// @Success		200	{object}	GetStatisticsResponse
// @Failure		400	{object}	response.ErrorResponse
// @Failure		500	{object}	response.ErrorResponse
// @Router			/statistics [get]
func (app *application) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	const component = "Statistics"

	top, err := parseIntParam(r.URL.Query().Get("top"), defaultTop, maxTop)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid top parameter: "+err.Error())
		return
	}

	stats, ok := app.statsCache.Get(top)
	if !ok {
		stats, err = app.store.Expenses.Statistics(r.Context(), top)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to compute statistics: "+err.Error())
			return
		}
		app.statsCache.Add(top, stats)
		app.appLogger.Debug(component, "Statistics cached: top=%d", top)
	}

	response := &GetStatisticsResponse{Success: true, Data: statisticsView(stats)}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

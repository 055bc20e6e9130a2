package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
)

type AvailabilityHandler struct {
	availabilityService AvailabilityServiceInterface
}

func NewAvailabilityHandler(availabilityService AvailabilityServiceInterface) *AvailabilityHandler {
	return &AvailabilityHandler{availabilityService: availabilityService}
}

type CalendarDayResponse struct {
	Date          string `json:"date" example:"2025-07-01"`
	TotalCapacity int    `json:"total_capacity" example:"20"`
	ReservedCount int    `json:"reserved_count" example:"5"`
	Remaining     int    `json:"remaining" example:"15"`
}

type CalendarResponse struct {
	ProductID string                `json:"product_id"`
	Start     string                `json:"start" example:"2025-07-01"`
	End       string                `json:"end" example:"2025-07-31"`
	Days      []CalendarDayResponse `json:"days"`
}

type StatsResponse struct {
	ProductID          string  `json:"product_id"`
	Start              string  `json:"start" example:"2025-07-01"`
	End                string  `json:"end" example:"2025-07-31"`
	Days               int     `json:"days" example:"31"`
	TotalCapacity      int     `json:"total_capacity" example:"620"`
	TotalReserved      int     `json:"total_reserved" example:"143"`
	AverageUtilization float64 `json:"average_utilization" example:"0.23"`
	PeakDemandDate     *string `json:"peak_demand_date" example:"2025-07-19"`
}

// Calendar godoc
// @Summary 空き状況カレンダーを取得
// @Description start〜end（両端含む）の各日の定員・予約済み数・残数を返します
// @Tags availability
// @Produce json
// @Param id path string true "商品ID"
// @Param start query string true "開始日 (YYYY-MM-DD)"
// @Param end query string true "終了日 (YYYY-MM-DD)"
// @Success 200 {object} CalendarResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /products/{id}/calendar [get]
func (h *AvailabilityHandler) Calendar(c echo.Context) error {
	start, end, err := parseRange(c)
	if err != nil {
		return err
	}
	entries, err := h.availabilityService.GetCalendar(c.Request().Context(), c.Param("id"), start, end)
	if err != nil {
		return toHTTPError(err)
	}

	days := make([]CalendarDayResponse, len(entries))
	for i, e := range entries {
		days[i] = CalendarDayResponse{
			Date:          slot.FormatDate(e.Date),
			TotalCapacity: e.TotalCapacity,
			ReservedCount: e.ReservedCount,
			Remaining:     e.Remaining,
		}
	}
	return c.JSON(http.StatusOK, CalendarResponse{
		ProductID: c.Param("id"),
		Start:     slot.FormatDate(start),
		End:       slot.FormatDate(end),
		Days:      days,
	})
}

// Stats godoc
// @Summary 予約状況の集計を取得
// @Description 範囲内のピーク日（予約数最大の日）と平均稼働率を返します
// @Tags availability
// @Produce json
// @Param id path string true "商品ID"
// @Param start query string true "開始日 (YYYY-MM-DD)"
// @Param end query string true "終了日 (YYYY-MM-DD)"
// @Success 200 {object} StatsResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /products/{id}/stats [get]
func (h *AvailabilityHandler) Stats(c echo.Context) error {
	start, end, err := parseRange(c)
	if err != nil {
		return err
	}
	stats, err := h.availabilityService.GetStats(c.Request().Context(), c.Param("id"), start, end)
	if err != nil {
		return toHTTPError(err)
	}

	resp := StatsResponse{
		ProductID:          c.Param("id"),
		Start:              slot.FormatDate(start),
		End:                slot.FormatDate(end),
		Days:               stats.Days,
		TotalCapacity:      stats.TotalCapacity,
		TotalReserved:      stats.TotalReserved,
		AverageUtilization: stats.AverageUtilization,
	}
	if stats.PeakDemandDate != nil {
		d := slot.FormatDate(*stats.PeakDemandDate)
		resp.PeakDemandDate = &d
	}
	return c.JSON(http.StatusOK, resp)
}

func parseRange(c echo.Context) (time.Time, time.Time, error) {
	rawStart, rawEnd := c.QueryParam("start"), c.QueryParam("end")
	if rawStart == "" || rawEnd == "" {
		return time.Time{}, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "start と end は必須です")
	}
	start, err := slot.ParseDate(rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, toHTTPError(err)
	}
	end, err := slot.ParseDate(rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, toHTTPError(err)
	}
	return start, end, nil
}

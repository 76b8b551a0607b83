package handler

import (
	"inventra-api/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ReportHandler struct {
	service service.ReportService
}

func NewReportHandler(s service.ReportService) *ReportHandler {
	return &ReportHandler{service: s}
}

// GetLowStock lists products under the low stock threshold
// GET /api/v1/stockmonitor/low
func (h *ReportHandler) GetLowStock(c *fiber.Ctx) error {
	report, err := h.service.LowStock(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// GET /api/v1/stats/total
func (h *ReportHandler) GetTodayStats(c *fiber.Ctx) error {
	stats, err := h.service.TodayStats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// GET /api/v1/stats/top-products
func (h *ReportHandler) GetTopProducts(c *fiber.Ctx) error {
	top, err := h.service.TopProducts(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(top)
}

// GET /api/v1/stats/revenue/week
func (h *ReportHandler) GetWeeklyRevenue(c *fiber.Ctx) error {
	series, err := h.service.WeeklyRevenue(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(series)
}

// GET /api/v1/stats/product/week
func (h *ReportHandler) GetWeeklyProductsSold(c *fiber.Ctx) error {
	series, err := h.service.WeeklyProductsSold(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(series)
}

// GetSalesReport aggregates orders between two calendar dates, inclusive
// GET /api/v1/report/sales?fromDate=YYYY-MM-DD&toDate=YYYY-MM-DD
func (h *ReportHandler) GetSalesReport(c *fiber.Ctx) error {
	report, err := h.service.SalesReport(c.UserContext(), c.Query("fromDate"), c.Query("toDate"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

package handler

import "github.com/labstack/echo/v4"

// Handlers はルーティング対象のハンドラー一式
type Handlers struct {
	Health       *HealthHandler
	Product      *ProductHandler
	Slot         *SlotHandler
	Availability *AvailabilityHandler
	Hold         *HoldHandler
	Booking      *BookingHandler
}

// Register はハンドラーをルーティングに登録する
func (h *Handlers) Register(e *echo.Echo) {
	e.GET("/health", h.Health.Check)

	v1 := e.Group("/api/v1")
	v1.POST("/products", h.Product.Create)
	v1.GET("/products", h.Product.List)
	v1.GET("/products/:id", h.Product.GetByID)

	v1.GET("/products/:id/slots/:date", h.Slot.Get)
	v1.PUT("/products/:id/slots/:date/capacity", h.Slot.SetCapacity)
	v1.GET("/products/:id/calendar", h.Availability.Calendar)
	v1.GET("/products/:id/stats", h.Availability.Stats)

	v1.POST("/holds", h.Hold.Create)
	v1.GET("/holds/:id", h.Hold.GetByID)
	v1.POST("/holds/:id/release", h.Hold.Release)
	v1.POST("/holds/:id/confirm", h.Hold.Confirm)

	v1.POST("/bookings", h.Booking.Create)
	v1.GET("/bookings", h.Booking.GetUserBookings)
	v1.GET("/bookings/code/:code", h.Booking.GetByConfirmationCode)
	v1.GET("/bookings/:id", h.Booking.GetByID)
	v1.POST("/bookings/:id/payment", h.Booking.RecordPayment)
	v1.POST("/bookings/:id/confirm", h.Booking.Confirm)
	v1.POST("/bookings/:id/cancel", h.Booking.Cancel)
	v1.POST("/bookings/:id/complete", h.Booking.Complete)
	v1.GET("/bookings/:id/voucher", h.Booking.Voucher)
}

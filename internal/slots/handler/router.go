package handler

import "github.com/julienschmidt/httprouter"

// API groups every slot and booking route behind one registration
// point so the application only wires a single handler.
type API struct {
	slots    *SlotHandler
	bookings *BookingHandler
	sweep    *SweepHandler
}

func NewAPI(slots *SlotHandler, bookings *BookingHandler, sweep *SweepHandler) *API {
	return &API{
		slots:    slots,
		bookings: bookings,
		sweep:    sweep,
	}
}

func (a *API) RegisterRoutes(router *httprouter.Router) {
	a.slots.RegisterRoutes(router)
	a.bookings.RegisterRoutes(router)
	a.sweep.RegisterRoutes(router)
}

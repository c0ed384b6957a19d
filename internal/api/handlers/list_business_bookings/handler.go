package list_business_bookings

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/m04kA/SMC-SettlementService/internal/api/handlers"
)

const (
	msgInvalidBusinessID = "некорректный ID бизнеса"
	msgInvalidParams     = "некорректные параметры запроса"
)

type Handler struct {
	service BookingService
	logger  Logger
}

func NewHandler(service BookingService, logger Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Handle GET /api/v1/businesses/{businessId}/bookings
// Query params: status, limit, offset (опционально)
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	businessID, err := strconv.ParseInt(mux.Vars(r)["businessId"], 10, 64)
	if err != nil || businessID <= 0 {
		h.logger.Warn("GET /businesses/{id}/bookings - Invalid business ID: %q", mux.Vars(r)["businessId"])
		handlers.RespondBadRequest(w, msgInvalidBusinessID)
		return
	}

	filter, err := handlers.ParseListQuery(r.URL.Query())
	if err != nil {
		h.logger.Warn("GET /businesses/{id}/bookings - Invalid parameters: %v", err)
		handlers.RespondBadRequest(w, msgInvalidParams)
		return
	}
	filter.BusinessID = businessID

	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		if handlers.StatusOf(err) == http.StatusInternalServerError {
			h.logger.Error("GET /businesses/{id}/bookings - Failed to get bookings: business_id=%d, error=%v", businessID, err)
		} else {
			h.logger.Warn("GET /businesses/{id}/bookings - Bookings not returned: business_id=%d, error=%v", businessID, err)
		}
		handlers.RespondDomainError(w, err)
		return
	}

	h.logger.Info("GET /businesses/{id}/bookings - Bookings retrieved successfully: business_id=%d, count=%d",
		businessID, len(list))
	handlers.RespondJSON(w, http.StatusOK, handlers.FromBookings(list))
}

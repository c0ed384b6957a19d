package create_booking

import (
	"net/http"

	"github.com/m04kA/SMC-SettlementService/internal/api/handlers"
	"github.com/m04kA/SMC-SettlementService/internal/api/middleware"
)

const (
	msgInvalidRequestBody = "некорректное тело запроса"
	msgInvalidValues      = "некорректная дата или сумма бронирования"
	msgMissingCustomerID  = "не указан ID клиента"
)

type Handler struct {
	useCase CreateBookingUseCase
	logger  Logger
}

func NewHandler(useCase CreateBookingUseCase, logger Logger) *Handler {
	return &Handler{
		useCase: useCase,
		logger:  logger,
	}
}

// Handle POST /api/v1/bookings
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := handlers.DecodeAndValidate(r, &req); err != nil {
		h.logger.Warn("POST /bookings - Invalid request body: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRequestBody)
		return
	}

	userID, _ := middleware.GetUserID(r.Context())

	useCaseReq, err := req.ToUseCaseRequest(userID)
	if err != nil {
		h.logger.Warn("POST /bookings - Failed to parse request: %v", err)
		handlers.RespondBadRequest(w, msgInvalidValues)
		return
	}
	if useCaseReq.CustomerID <= 0 {
		h.logger.Warn("POST /bookings - Missing customer ID")
		handlers.RespondBadRequest(w, msgMissingCustomerID)
		return
	}

	result, err := h.useCase.CreateBooking(r.Context(), useCaseReq)
	if err != nil {
		if handlers.StatusOf(err) == http.StatusInternalServerError {
			h.logger.Error("POST /bookings - Failed to create booking: customer_id=%d, business_id=%d, error=%v",
				useCaseReq.CustomerID, req.BusinessID, err)
		} else {
			h.logger.Warn("POST /bookings - Booking rejected: customer_id=%d, business_id=%d, error=%v",
				useCaseReq.CustomerID, req.BusinessID, err)
		}
		handlers.RespondDomainError(w, err)
		return
	}

	h.logger.Info("POST /bookings - Booking created successfully: booking_id=%d, customer_id=%d, status=%s",
		result.Booking.ID, result.Booking.CustomerID, result.Booking.Status)
	handlers.RespondJSON(w, http.StatusCreated, FromUseCaseResponse(result))
}

package create_payment

import (
	"net/http"

	"github.com/m04kA/SMC-SettlementService/internal/api/handlers"
)

const (
	msgInvalidRequestBody = "некорректное тело запроса"
	msgInvalidAmount      = "некорректная сумма оплаты"
)

type Handler struct {
	useCase PaymentUseCase
	logger  Logger
}

func NewHandler(useCase PaymentUseCase, logger Logger) *Handler {
	return &Handler{
		useCase: useCase,
		logger:  logger,
	}
}

// Handle POST /api/v1/payments
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := handlers.DecodeAndValidate(r, &req); err != nil {
		h.logger.Warn("POST /payments - Invalid request body: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRequestBody)
		return
	}

	useCaseReq, err := req.ToUseCaseRequest()
	if err != nil {
		h.logger.Warn("POST /payments - Invalid amount: %v", err)
		handlers.RespondBadRequest(w, msgInvalidAmount)
		return
	}

	result, err := h.useCase.InitiatePayment(r.Context(), useCaseReq)
	if err != nil {
		if handlers.StatusOf(err) == http.StatusInternalServerError {
			h.logger.Error("POST /payments - Failed to initiate payment: booking_id=%d, method=%s, error=%v",
				req.BookingID, req.Method, err)
		} else {
			h.logger.Warn("POST /payments - Payment rejected: booking_id=%d, method=%s, error=%v",
				req.BookingID, req.Method, err)
		}
		handlers.RespondDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Degraded {
		// Процессор не ответил, платёж остаётся pending до уведомления или сверки
		status = http.StatusAccepted
	}

	h.logger.Info("POST /payments - Payment initiated: booking_id=%d, transaction_id=%s, status=%s",
		req.BookingID, result.Payment.TransactionID, result.Payment.Status)
	handlers.RespondJSON(w, status, FromUseCaseResponse(result))
}

package payment_callback

import (
	"net/http"
)

// maxCallbackBodyBytes ограничение размера уведомления шлюза
const maxCallbackBodyBytes = 64 << 10

type Handler struct {
	useCase CallbackUseCase
	logger  Logger
}

func NewHandler(useCase CallbackUseCase, logger Logger) *Handler {
	return &Handler{
		useCase: useCase,
		logger:  logger,
	}
}

// Handle POST /api/v1/payments/callback
//
// Шлюз получает 200 "OK" на любое уведомление, даже отклонённое:
// исход обработки виден только в логах и метриках.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBodyBytes)

	fields := map[string]string{}
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("POST /payments/callback - Failed to parse form: %v", err)
	} else {
		for key, values := range r.PostForm {
			if len(values) > 0 {
				fields[key] = values[0]
			}
		}
	}

	ack := h.useCase.HandleGatewayCallback(r.Context(), fields)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ack))
}

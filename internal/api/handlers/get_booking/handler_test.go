package get_booking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-SettlementService/internal/api/handlers"
	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/internal/usecase/settlement"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type stubUseCase struct {
	bookings map[int64]*settlement.BookingDetails
}

func (s *stubUseCase) GetBooking(_ context.Context, id int64) (*settlement.BookingDetails, error) {
	d, ok := s.bookings[id]
	if !ok {
		return nil, domain.NewError(domain.ErrNotFound, "booking %d not found", id)
	}
	return d, nil
}

func TestHandle(t *testing.T) {
	uc := &stubUseCase{bookings: map[int64]*settlement.BookingDetails{
		5: {
			Booking: &domain.Booking{ID: 5, Status: domain.BookingStatusConfirmed, TotalAmount: decimal.RequireFromString("80")},
			Payments: []*domain.Payment{
				{ID: 1, BookingID: 5, Method: domain.PaymentMethodDirect, Status: domain.PaymentStatusFailed, TransactionID: "tx-a"},
				{ID: 2, BookingID: 5, Method: domain.PaymentMethodCash, Status: domain.PaymentStatusPendingCash, TransactionID: "tx-b"},
			},
		},
	}}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/bookings/{bookingId}", NewHandler(uc, nopLogger{}).Handle).Methods(http.MethodGet)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/bookings/5", http.StatusOK},
		{"/api/v1/bookings/6", http.StatusNotFound},
		{"/api/v1/bookings/abc", http.StatusBadRequest},
		{"/api/v1/bookings/0", http.StatusBadRequest},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.status, rec.Code, tt.path)

		if tt.status == http.StatusOK {
			var resp handlers.BookingDetailsResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "confirmed", resp.Booking.Status)
			assert.Equal(t, "80.00", resp.Booking.TotalAmount)
			require.Len(t, resp.Payments, 2)
			assert.Equal(t, "pending_cash", resp.Payments[1].Status)
		}
	}
}

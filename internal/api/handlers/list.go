package handlers

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
)

// ParseListQuery читает status (через запятую), limit и offset из query
func ParseListQuery(q url.Values) (domain.BookingFilter, error) {
	var f domain.BookingFilter

	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st := domain.BookingStatus(strings.TrimSpace(s))
			if !st.IsValid() {
				return f, fmt.Errorf("unknown status %q", s)
			}
			f.Statuses = append(f.Statuses, st)
		}
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return f, fmt.Errorf("limit: %w", err)
		}
		f.Limit = limit
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return f, fmt.Errorf("offset: %w", err)
		}
		f.Offset = offset
	}

	return f, nil
}

// FromBookings список бронирований для ответа
func FromBookings(list []*domain.Booking) []*BookingResponse {
	resp := make([]*BookingResponse, 0, len(list))
	for _, b := range list {
		resp = append(resp, FromBooking(b))
	}
	return resp
}

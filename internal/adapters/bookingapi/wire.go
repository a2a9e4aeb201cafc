package bookingapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"tg-booking-app/internal/domain"
)

// decimal принимает цену как число или как строку ("20.00"), как её отдают Decimal-поля сервера.
type decimal float64

func (d *decimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("price %q: %w", raw, err)
		}
		*d = decimal(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*d = decimal(v)
	return nil
}

type userDTO struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
}

type serviceDTO struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price decimal `json:"price"`
}

func (s serviceDTO) toDomain() domain.Service {
	return domain.Service{ID: s.ID, Name: s.Name, Price: float64(s.Price)}
}

type slotDTO struct {
	ID        int64  `json:"id"`
	DateTime  string `json:"date_time"`
	ServiceID int64  `json:"service_id"`
}

func (s slotDTO) toDomain() domain.Slot {
	return domain.Slot{ID: s.ID, DateTime: s.DateTime, ServiceID: s.ServiceID}
}

type bookingDTO struct {
	ID        int64 `json:"id"`
	UserID    int64 `json:"user_id"`
	SlotID    int64 `json:"slot_id"`
	ServiceID int64 `json:"service_id"`
}

func (b bookingDTO) toDomain() domain.Booking {
	return domain.Booking{ID: b.ID, UserID: b.UserID, SlotID: b.SlotID, ServiceID: b.ServiceID}
}

type createServiceRequest struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type createSlotRequest struct {
	DateTime  string `json:"date_time"`
	ServiceID int64  `json:"service_id"`
}

type createBookingRequest struct {
	UserID    int64 `json:"user_id"`
	SlotID    int64 `json:"slot_id"`
	ServiceID int64 `json:"service_id"`
}

type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (e apiError) message() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Detail
}

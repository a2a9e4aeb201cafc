package domain

import "time"

// EventType описывает тип события.
type EventType string

const (
	EventServiceCreated EventType = "service.created"
	EventSlotCreated    EventType = "slot.created"
	EventBookingCreated EventType = "booking.created"
)

// Event публикуется после того, как запись подтверждена сервером и коллекция перезагружена.
type Event struct {
	ID              string    `json:"event_id"`
	Type            EventType `json:"type"`
	ActorID         int64     `json:"actor_id"`
	ActorTelegramID int64     `json:"actor_tg_id"`
	OccurredAt      time.Time `json:"occurred_at"`
	Service         *Service  `json:"service,omitempty"`
	Slot            *Slot     `json:"slot,omitempty"`
	Booking         *Booking  `json:"booking,omitempty"`
}

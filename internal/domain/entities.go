package domain

import (
	"strings"
	"time"
)

// Identity приходит извне (Telegram WebApp initData).
type Identity struct {
	TelegramID  int64
	DisplayName string
}

// Actor описывает текущего пользователя сессии.
type Actor struct {
	ID          int64  `json:"id"`
	TelegramID  int64  `json:"telegram_id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// IsAdmin сообщает, может ли актор создавать услуги и слоты.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Service описывает услугу, которую можно забронировать.
type Service struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Slot описывает доступное время для услуги.
type Slot struct {
	ID        int64  `json:"id"`
	DateTime  string `json:"date_time"`
	ServiceID int64  `json:"service_id"`
}

var slotLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseSlotTime разбирает время слота в одном из форматов, которые присылает сервер или datetime-local.
func ParseSlotTime(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range slotLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Time возвращает время слота, если его удалось разобрать.
func (s Slot) Time() (time.Time, bool) {
	return ParseSlotTime(s.DateTime)
}

// Booking описывает запись пользователя на слот. ServiceID дублирует Slot.ServiceID и должен с ним совпадать.
type Booking struct {
	ID        int64 `json:"id"`
	UserID    int64 `json:"user_id"`
	SlotID    int64 `json:"slot_id"`
	ServiceID int64 `json:"service_id"`
}

// Collection перечисляет коллекции, которые кэшируются на клиенте.
type Collection string

const (
	CollectionServices Collection = "services"
	CollectionSlots    Collection = "slots"
	CollectionBookings Collection = "bookings"
)

// AllCollections перечисляет коллекции в порядке начальной загрузки.
var AllCollections = []Collection{CollectionServices, CollectionSlots, CollectionBookings}

package projector

import (
	"time"

	"tg-booking-app/internal/domain"
	"tg-booking-app/internal/usecase/store"
)

// SlotView описывает слот вместе с услугой. Service равен nil, если услуги нет в кэше.
type SlotView struct {
	Slot    domain.Slot     `json:"slot"`
	Service *domain.Service `json:"service,omitempty"`
	When    *time.Time      `json:"when,omitempty"`
	Booked  bool            `json:"booked"`
}

// BookingView описывает запись со слотом и услугой. Отсутствующие связи остаются nil.
type BookingView struct {
	Booking domain.Booking  `json:"booking"`
	Slot    *domain.Slot    `json:"slot,omitempty"`
	Service *domain.Service `json:"service,omitempty"`
	When    *time.Time      `json:"when,omitempty"`
}

// AdminPanel показывает администратору всё содержимое кэша.
type AdminPanel struct {
	Services []domain.Service `json:"services"`
	Slots    []SlotView       `json:"slots"`
	Bookings []BookingView    `json:"bookings"`
}

// UserPanel показывает пользователю слоты для записи и его записи.
type UserPanel struct {
	Slots      []SlotView    `json:"slots"`
	MyBookings []BookingView `json:"my_bookings"`
}

// View описывает представление для роли актора. Заполнено ровно одно из Admin/User.
type View struct {
	Version uint64       `json:"version"`
	Actor   domain.Actor `json:"actor"`
	Role    domain.Role  `json:"role"`
	Admin   *AdminPanel  `json:"admin,omitempty"`
	User    *UserPanel   `json:"user,omitempty"`
}

// LookupService ищет услугу в снимке.
func LookupService(snap store.Snapshot, id int64) (domain.Service, bool) {
	for _, s := range snap.Services {
		if s.ID == id {
			return s, true
		}
	}
	return domain.Service{}, false
}

// LookupSlot ищет слот в снимке.
func LookupSlot(snap store.Snapshot, id int64) (domain.Slot, bool) {
	for _, s := range snap.Slots {
		if s.ID == id {
			return s, true
		}
	}
	return domain.Slot{}, false
}

// SlotBooked сообщает, есть ли в снимке запись на слот.
func SlotBooked(snap store.Snapshot, slotID int64) bool {
	for _, b := range snap.Bookings {
		if b.SlotID == slotID {
			return true
		}
	}
	return false
}

// MyBookings возвращает записи актора в порядке ответа сервера.
func MyBookings(snap store.Snapshot, actor domain.Actor) []domain.Booking {
	out := make([]domain.Booking, 0)
	for _, b := range snap.Bookings {
		if b.UserID == actor.ID {
			out = append(out, b)
		}
	}
	return out
}

// SlotWithService соединяет слот с услугой.
func SlotWithService(snap store.Snapshot, slot domain.Slot) SlotView {
	view := SlotView{Slot: slot, Booked: SlotBooked(snap, slot.ID)}
	if service, ok := LookupService(snap, slot.ServiceID); ok {
		view.Service = &service
	}
	if t, ok := slot.Time(); ok {
		view.When = &t
	}
	return view
}

// BookingWithDetails соединяет запись со слотом и услугой. Время берётся из слота и опускается, если слота нет.
func BookingWithDetails(snap store.Snapshot, booking domain.Booking) BookingView {
	view := BookingView{Booking: booking}
	if slot, ok := LookupSlot(snap, booking.SlotID); ok {
		view.Slot = &slot
		if t, ok := slot.Time(); ok {
			view.When = &t
		}
	}
	if service, ok := LookupService(snap, booking.ServiceID); ok {
		view.Service = &service
	}
	return view
}

// Admin строит панель администратора.
func Admin(snap store.Snapshot) AdminPanel {
	panel := AdminPanel{
		Services: append(make([]domain.Service, 0, len(snap.Services)), snap.Services...),
		Slots:    make([]SlotView, 0, len(snap.Slots)),
		Bookings: make([]BookingView, 0, len(snap.Bookings)),
	}
	for _, slot := range snap.Slots {
		panel.Slots = append(panel.Slots, SlotWithService(snap, slot))
	}
	for _, b := range snap.Bookings {
		panel.Bookings = append(panel.Bookings, BookingWithDetails(snap, b))
	}
	return panel
}

// User строит панель пользователя.
func User(snap store.Snapshot, actor domain.Actor) UserPanel {
	mine := MyBookings(snap, actor)
	panel := UserPanel{
		Slots:      make([]SlotView, 0, len(snap.Slots)),
		MyBookings: make([]BookingView, 0, len(mine)),
	}
	for _, slot := range snap.Slots {
		panel.Slots = append(panel.Slots, SlotWithService(snap, slot))
	}
	for _, b := range mine {
		panel.MyBookings = append(panel.MyBookings, BookingWithDetails(snap, b))
	}
	return panel
}

// ForActor выбирает представление по роли актора снимка.
func ForActor(snap store.Snapshot) (View, error) {
	if !snap.HasActor {
		return View{}, domain.ErrNoActor
	}
	view := View{Version: snap.Version, Actor: snap.Actor, Role: snap.Actor.Role}
	if snap.Actor.IsAdmin() {
		panel := Admin(snap)
		view.Admin = &panel
	} else {
		panel := User(snap, snap.Actor)
		view.User = &panel
	}
	return view, nil
}

// Source отдаёт снимки, обычно это *store.Store.
type Source interface {
	Snapshot() store.Snapshot
}

// Projector строит представления по текущему состоянию кэша. Каждый вызов читает один снимок.
type Projector struct {
	src Source
}

// New создаёт проектор поверх кэша.
func New(src Source) *Projector {
	return &Projector{src: src}
}

// View возвращает представление для текущего актора.
func (p *Projector) View() (View, error) {
	return ForActor(p.src.Snapshot())
}

// MyBookings возвращает записи текущего актора с деталями.
func (p *Projector) MyBookings() ([]BookingView, error) {
	snap := p.src.Snapshot()
	if !snap.HasActor {
		return nil, domain.ErrNoActor
	}
	return User(snap, snap.Actor).MyBookings, nil
}

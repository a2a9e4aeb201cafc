package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"tg-booking-app/internal/domain"
	"tg-booking-app/internal/infra/metrics"
)

// Fetcher читает коллекции удалённого сервиса.
type Fetcher interface {
	ListServices(ctx context.Context) ([]domain.Service, error)
	ListSlots(ctx context.Context) ([]domain.Slot, error)
	ListBookings(ctx context.Context) ([]domain.Booking, error)
}

// Snapshot описывает неизменяемый срез состояния кэша. Слайсы нельзя модифицировать.
type Snapshot struct {
	Version  uint64
	Actor    domain.Actor
	HasActor bool
	Services []domain.Service
	Slots    []domain.Slot
	Bookings []domain.Booking
}

// Listener вызывается после каждого применённого обновления.
type Listener func(kind domain.Collection, version uint64)

// Store хранит клиентские копии коллекций и текущего актора.
// Все записи идут через один мьютекс, читатели получают целые снимки.
type Store struct {
	api Fetcher
	log zerolog.Logger

	mu        sync.RWMutex
	snap      Snapshot
	issued    map[domain.Collection]uint64
	applied   map[domain.Collection]uint64
	listeners []Listener
}

// New создаёт пустой кэш.
func New(api Fetcher, log zerolog.Logger) *Store {
	return &Store{
		api:     api,
		log:     log,
		issued:  make(map[domain.Collection]uint64),
		applied: make(map[domain.Collection]uint64),
	}
}

// Subscribe регистрирует слушателя изменений. Слушатель вызывается вне блокировки.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// SetActor задаёт пользователя сессии. Повторный вызов перезаписывает актора.
func (s *Store) SetActor(actor domain.Actor) {
	s.mu.Lock()
	next := s.snap
	next.Actor = actor
	next.HasActor = true
	next.Version++
	s.snap = next
	s.mu.Unlock()
}

// Actor возвращает текущего пользователя, если он определён.
func (s *Store) Actor() (domain.Actor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Actor, s.snap.HasActor
}

// Snapshot возвращает согласованный снимок всего состояния.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Load перезагружает коллекцию целиком. При ошибке прежний снимок остаётся без изменений.
func (s *Store) Load(ctx context.Context, kind domain.Collection) error {
	ticket := s.issue(kind)

	var (
		set  func(*Snapshot)
		size int
		err  error
	)
	switch kind {
	case domain.CollectionServices:
		var list []domain.Service
		list, err = s.api.ListServices(ctx)
		set, size = func(snap *Snapshot) { snap.Services = slices.Clone(list) }, len(list)
	case domain.CollectionSlots:
		var list []domain.Slot
		list, err = s.api.ListSlots(ctx)
		set, size = func(snap *Snapshot) { snap.Slots = slices.Clone(list) }, len(list)
	case domain.CollectionBookings:
		var list []domain.Booking
		list, err = s.api.ListBookings(ctx)
		set, size = func(snap *Snapshot) { snap.Bookings = slices.Clone(list) }, len(list)
	default:
		return fmt.Errorf("неизвестная коллекция %q", kind)
	}
	metrics.ObserveReload(string(kind), size, err)
	if err != nil {
		s.log.Warn().Err(err).Str("collection", string(kind)).Msg("store: перезагрузка не удалась, оставляем прежний снимок")
		return fmt.Errorf("загрузка %s: %w", kind, err)
	}

	if !s.apply(kind, ticket, set) {
		s.log.Debug().Str("collection", string(kind)).Uint64("ticket", ticket).Msg("store: устаревший ответ отброшен")
		return nil
	}
	s.log.Debug().Str("collection", string(kind)).Int("size", size).Msg("store: коллекция обновлена")
	return nil
}

// LoadAll перезагружает все коллекции параллельно и возвращает объединённую ошибку.
func (s *Store) LoadAll(ctx context.Context) error {
	errs := make([]error, len(domain.AllCollections))
	var wg sync.WaitGroup
	for i, kind := range domain.AllCollections {
		i, kind := i, kind
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.Load(ctx, kind)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// ReplaceServices заменяет коллекцию услуг готовым снимком.
func (s *Store) ReplaceServices(items []domain.Service) {
	s.apply(domain.CollectionServices, s.issue(domain.CollectionServices), func(snap *Snapshot) { snap.Services = slices.Clone(items) })
}

// ReplaceSlots заменяет коллекцию слотов готовым снимком.
func (s *Store) ReplaceSlots(items []domain.Slot) {
	s.apply(domain.CollectionSlots, s.issue(domain.CollectionSlots), func(snap *Snapshot) { snap.Slots = slices.Clone(items) })
}

// ReplaceBookings заменяет коллекцию записей готовым снимком.
func (s *Store) ReplaceBookings(items []domain.Booking) {
	s.apply(domain.CollectionBookings, s.issue(domain.CollectionBookings), func(snap *Snapshot) { snap.Bookings = slices.Clone(items) })
}

func (s *Store) issue(kind domain.Collection) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[kind]++
	return s.issued[kind]
}

// apply применяет ответ, только если более поздний запрос той же коллекции ещё не применён.
func (s *Store) apply(kind domain.Collection, ticket uint64, set func(*Snapshot)) bool {
	s.mu.Lock()
	if ticket <= s.applied[kind] {
		s.mu.Unlock()
		return false
	}
	next := s.snap
	set(&next)
	next.Version++
	s.snap = next
	s.applied[kind] = ticket
	version := next.Version
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(kind, version)
	}
	return true
}

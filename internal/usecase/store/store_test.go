package store

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-booking-app/internal/domain"
)

type stubFetcher struct {
	mu       sync.Mutex
	services []domain.Service
	slots    []domain.Slot
	bookings []domain.Booking
	err      error
	// gates, если заданы, блокируют n-й вызов ListServices до получения значения.
	gates []chan []domain.Service
	calls int
}

func (s *stubFetcher) ListServices(ctx context.Context) ([]domain.Service, error) {
	s.mu.Lock()
	if s.gates != nil {
		gate := s.gates[s.calls]
		s.calls++
		s.mu.Unlock()
		select {
		case list := <-gate:
			return list, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	defer s.mu.Unlock()
	return s.services, s.err
}

func (s *stubFetcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubFetcher) ListSlots(context.Context) ([]domain.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots, s.err
}

func (s *stubFetcher) ListBookings(context.Context) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings, s.err
}

func (s *stubFetcher) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func TestLoadReplacesWholeCollection(t *testing.T) {
	api := &stubFetcher{services: []domain.Service{{ID: 1, Name: "Стрижка", Price: 20}}}
	st := New(api, zerolog.Nop())
	st.ReplaceServices([]domain.Service{{ID: 7, Name: "локальная", Price: 1}})

	if err := st.Load(context.Background(), domain.CollectionServices); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	got := st.Snapshot().Services
	if !reflect.DeepEqual(got, api.services) {
		t.Fatalf("ожидали снимок сервера %v, получили %v", api.services, got)
	}
}

func TestLoadFailureKeepsSnapshot(t *testing.T) {
	api := &stubFetcher{
		services: []domain.Service{{ID: 1, Name: "Стрижка", Price: 20}},
		slots:    []domain.Slot{{ID: 1, DateTime: "2024-01-01T10:00", ServiceID: 1}},
		bookings: []domain.Booking{{ID: 1, UserID: 42, SlotID: 1, ServiceID: 1}},
	}
	st := New(api, zerolog.Nop())
	st.SetActor(domain.Actor{ID: 42, Role: domain.RoleUser})
	if err := st.LoadAll(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	before := st.Snapshot()

	cause := &domain.TransportError{Op: "list", Err: context.DeadlineExceeded}
	api.fail(cause)
	for _, kind := range domain.AllCollections {
		err := st.Load(context.Background(), kind)
		if !errors.Is(err, domain.ErrTransport) {
			t.Fatalf("%s: ожидали ошибку транспорта, получили %v", kind, err)
		}
	}
	if after := st.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Fatalf("снимок изменился после ошибки:\nдо    %+v\nпосле %+v", before, after)
	}
}

func TestLoadAllJoinsErrors(t *testing.T) {
	api := &stubFetcher{err: errors.New("connection refused")}
	st := New(api, zerolog.Nop())
	err := st.LoadAll(context.Background())
	if err == nil {
		t.Fatal("ожидали ошибку")
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) || len(joined.Unwrap()) != 3 {
		t.Fatalf("ожидали три ошибки, получили %v", err)
	}
}

func TestStaleResponseDoesNotOverwriteNewer(t *testing.T) {
	api := &stubFetcher{gates: []chan []domain.Service{make(chan []domain.Service), make(chan []domain.Service)}}
	st := New(api, zerolog.Nop())

	older := make(chan error, 1)
	go func() { older <- st.Load(context.Background(), domain.CollectionServices) }()
	waitCalls(t, api, 1)
	newer := make(chan error, 1)
	go func() { newer <- st.Load(context.Background(), domain.CollectionServices) }()
	waitCalls(t, api, 2)

	fresh := []domain.Service{{ID: 2, Name: "новая"}}
	api.gates[1] <- fresh
	if err := <-newer; err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	api.gates[0] <- []domain.Service{{ID: 1, Name: "старая"}}
	if err := <-older; err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if got := st.Snapshot().Services; !reflect.DeepEqual(got, fresh) {
		t.Fatalf("устаревший ответ перезаписал свежий: %v", got)
	}
}

func TestReplaceIsIsolatedFromCaller(t *testing.T) {
	st := New(&stubFetcher{}, zerolog.Nop())
	items := []domain.Booking{{ID: 1, UserID: 42}}
	st.ReplaceBookings(items)
	items[0].UserID = 43
	if got := st.Snapshot().Bookings[0].UserID; got != 42 {
		t.Fatalf("снимок изменился через слайс вызывающего: %d", got)
	}
}

func TestSetActorOverwrites(t *testing.T) {
	st := New(&stubFetcher{}, zerolog.Nop())
	if _, ok := st.Actor(); ok {
		t.Fatal("актор не должен быть задан")
	}
	st.SetActor(domain.Actor{ID: 1, Role: domain.RoleUser})
	st.SetActor(domain.Actor{ID: 2, Role: domain.RoleAdmin})
	actor, ok := st.Actor()
	if !ok || actor.ID != 2 || !actor.IsAdmin() {
		t.Fatalf("ожидали перезаписанного актора, получили %+v", actor)
	}
}

func TestSubscribeNotifiesAfterApply(t *testing.T) {
	api := &stubFetcher{slots: []domain.Slot{{ID: 1}}}
	st := New(api, zerolog.Nop())
	var got []domain.Collection
	st.Subscribe(func(kind domain.Collection, version uint64) {
		if st.Snapshot().Version < version {
			t.Errorf("слушатель увидел снимок старее версии %d", version)
		}
		got = append(got, kind)
	})
	if err := st.Load(context.Background(), domain.CollectionSlots); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	api.fail(errors.New("eof"))
	_ = st.Load(context.Background(), domain.CollectionSlots)
	if len(got) != 1 || got[0] != domain.CollectionSlots {
		t.Fatalf("ожидали одно уведомление о slots, получили %v", got)
	}
}

func waitCalls(t *testing.T, api *stubFetcher, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for api.callCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("вызов №%d так и не произошёл", n)
		}
		time.Sleep(time.Millisecond)
	}
}

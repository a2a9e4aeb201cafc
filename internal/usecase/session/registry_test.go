package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tg-booking-app/internal/domain"
)

type stubAPI struct {
	mu       sync.Mutex
	users    map[int64]domain.RemoteUser
	slots    []domain.Slot
	bookings []domain.Booking
	lookups  int
	failList error
}

func (s *stubAPI) GetUser(_ context.Context, telegramID int64) (domain.RemoteUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	user, ok := s.users[telegramID]
	if !ok {
		return domain.RemoteUser{}, &domain.RemoteRejectionError{Op: "get user", Status: 404}
	}
	return user, nil
}

func (s *stubAPI) ListServices(context.Context) ([]domain.Service, error) {
	return []domain.Service{{ID: 1, Name: "Стрижка", Price: 20}}, s.failList
}

func (s *stubAPI) ListSlots(context.Context) ([]domain.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Slot(nil), s.slots...), nil
}

func (s *stubAPI) ListBookings(context.Context) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Booking(nil), s.bookings...), nil
}

func (s *stubAPI) CreateService(context.Context, domain.NewService) (*domain.Service, error) {
	return nil, errors.New("not implemented")
}

func (s *stubAPI) CreateSlot(context.Context, domain.NewSlot) (*domain.Slot, error) {
	return nil, errors.New("not implemented")
}

func (s *stubAPI) CreateBooking(_ context.Context, in domain.NewBooking) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := domain.Booking{ID: int64(len(s.bookings) + 1), UserID: in.UserID, SlotID: in.SlotID, ServiceID: in.ServiceID}
	s.bookings = append(s.bookings, b)
	return &b, nil
}

func newStubAPI() *stubAPI {
	return &stubAPI{
		users: map[int64]domain.RemoteUser{
			100: {ID: 1, Role: domain.RoleUser},
			200: {ID: 2, Role: domain.RoleAdmin},
		},
		slots: []domain.Slot{{ID: 5, DateTime: "2024-01-01T10:00", ServiceID: 1}},
	}
}

func TestGetOpensAndReusesSession(t *testing.T) {
	api := newStubAPI()
	reg := NewRegistry(api)

	sess, err := reg.Get(context.Background(), domain.Identity{TelegramID: 200, DisplayName: "Админ"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !sess.Actor.IsAdmin() || sess.Actor.ID != 2 {
		t.Fatalf("неожиданный актор: %+v", sess.Actor)
	}
	snap := sess.Store.Snapshot()
	if len(snap.Services) != 1 || len(snap.Slots) != 1 {
		t.Fatalf("ожидали загруженные коллекции, получили %+v", snap)
	}

	again, err := reg.Get(context.Background(), domain.Identity{TelegramID: 200})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if again != sess {
		t.Fatal("ожидали ту же сессию")
	}
	if api.lookups != 1 {
		t.Fatalf("ожидали один запрос пользователя, получили %d", api.lookups)
	}
}

func TestGetUnknownUser(t *testing.T) {
	reg := NewRegistry(newStubAPI())
	if _, err := reg.Get(context.Background(), domain.Identity{TelegramID: 999}); !errors.Is(err, domain.ErrRemoteRejection) {
		t.Fatalf("ожидали отказ сервиса, получили %v", err)
	}
	if reg.Len() != 0 {
		t.Fatal("сессия не должна создаваться для неизвестного пользователя")
	}
}

func TestGetSurvivesInitialLoadFailure(t *testing.T) {
	api := newStubAPI()
	api.failList = &domain.TransportError{Op: "list services", Err: context.DeadlineExceeded}
	reg := NewRegistry(api)
	sess, err := reg.Get(context.Background(), domain.Identity{TelegramID: 100})
	if err != nil {
		t.Fatalf("ошибка загрузки не должна ломать сессию: %v", err)
	}
	if len(sess.Store.Snapshot().Services) != 0 {
		t.Fatal("услуги не должны попасть в кэш при ошибке")
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	reg := NewRegistry(newStubAPI(), WithTTL(time.Minute))
	reg.now = func() time.Time { return now }

	if _, err := reg.Get(context.Background(), domain.Identity{TelegramID: 100}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	now = now.Add(30 * time.Second)
	if _, err := reg.Get(context.Background(), domain.Identity{TelegramID: 200}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	now = now.Add(40 * time.Second)
	if n := reg.Sweep(); n != 1 {
		t.Fatalf("ожидали удаление одной сессии, получили %d", n)
	}
	if reg.Len() != 1 {
		t.Fatalf("ожидали одну сессию, получили %d", reg.Len())
	}
}

func TestSessionsShareSubmissionGuard(t *testing.T) {
	api := newStubAPI()
	reg := NewRegistry(api)
	first, err := reg.Get(context.Background(), domain.Identity{TelegramID: 100})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	second, err := reg.Get(context.Background(), domain.Identity{TelegramID: 200})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	release, ok, err := reg.guard.Acquire(context.Background(), "booking:slot:5", time.Minute)
	if err != nil || !ok {
		t.Fatalf("не удалось занять блокировку: ok=%v err=%v", ok, err)
	}
	for _, sess := range []*Session{first, second} {
		if _, err := sess.Orchestrator.CreateBooking(context.Background(), 5, 1); !errors.Is(err, domain.ErrSubmissionInFlight) {
			t.Fatalf("ожидали ErrSubmissionInFlight, получили %v", err)
		}
	}
	release()

	if _, err := first.Orchestrator.CreateBooking(context.Background(), 5, 1); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := second.Orchestrator.Refresh(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := second.Orchestrator.CreateBooking(context.Background(), 5, 1); !errors.Is(err, domain.ErrSlotTaken) {
		t.Fatalf("ожидали ErrSlotTaken, получили %v", err)
	}
}

func TestStaleSessionCannotRebookSlot(t *testing.T) {
	api := newStubAPI()
	reg := NewRegistry(api)
	first, err := reg.Get(context.Background(), domain.Identity{TelegramID: 100})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	second, err := reg.Get(context.Background(), domain.Identity{TelegramID: 200})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if _, err := first.Orchestrator.CreateBooking(context.Background(), 5, 1); err != nil {
		t.Fatalf("первая запись: %v", err)
	}
	// Вторая сессия не обновлялась и видит слот свободным.
	if _, err := second.Orchestrator.CreateBooking(context.Background(), 5, 1); !errors.Is(err, domain.ErrSlotTaken) {
		t.Fatalf("ожидали ErrSlotTaken, получили %v", err)
	}
	api.mu.Lock()
	n := len(api.bookings)
	api.mu.Unlock()
	if n != 1 {
		t.Fatalf("ожидали одну запись на сервере, получили %d", n)
	}
}

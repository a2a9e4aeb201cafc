package booking

import (
	"context"
	"sync"

	"tg-booking-app/internal/domain"
)

// fakeAPI держит удалённый сервис в памяти и считает вызовы.
type fakeAPI struct {
	mu       sync.Mutex
	users    map[int64]domain.RemoteUser
	services []domain.Service
	slots    []domain.Slot
	bookings []domain.Booking
	nextID   int64

	writes    int
	reads     int
	failWrite error
	failRead  error
	// blockBooking, если задан, задерживает CreateBooking до закрытия канала.
	blockBooking chan struct{}
	enteredBook  chan struct{}
	emptyCreate  bool
	keys         []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{users: make(map[int64]domain.RemoteUser), nextID: 100}
}

func (f *fakeAPI) GetUser(_ context.Context, telegramID int64) (domain.RemoteUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[telegramID]
	if !ok {
		return domain.RemoteUser{}, &domain.RemoteRejectionError{Op: "get user", Status: 404}
	}
	return user, nil
}

func (f *fakeAPI) ListServices(context.Context) ([]domain.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.failRead != nil {
		return nil, f.failRead
	}
	return append([]domain.Service(nil), f.services...), nil
}

func (f *fakeAPI) ListSlots(context.Context) ([]domain.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.failRead != nil {
		return nil, f.failRead
	}
	return append([]domain.Slot(nil), f.slots...), nil
}

func (f *fakeAPI) ListBookings(context.Context) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.failRead != nil {
		return nil, f.failRead
	}
	return append([]domain.Booking(nil), f.bookings...), nil
}

func (f *fakeAPI) CreateService(_ context.Context, in domain.NewService) (*domain.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.failWrite != nil {
		return nil, f.failWrite
	}
	f.nextID++
	s := domain.Service{ID: f.nextID, Name: in.Name, Price: in.Price}
	f.services = append(f.services, s)
	if f.emptyCreate {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeAPI) CreateSlot(_ context.Context, in domain.NewSlot) (*domain.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.failWrite != nil {
		return nil, f.failWrite
	}
	f.nextID++
	s := domain.Slot{ID: f.nextID, DateTime: in.DateTime, ServiceID: in.ServiceID}
	f.slots = append(f.slots, s)
	if f.emptyCreate {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeAPI) CreateBooking(ctx context.Context, in domain.NewBooking) (*domain.Booking, error) {
	f.mu.Lock()
	block, entered := f.blockBooking, f.enteredBook
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, &domain.TransportError{Op: "create booking", Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	f.keys = append(f.keys, in.IdempotencyKey)
	if f.failWrite != nil {
		return nil, f.failWrite
	}
	f.nextID++
	b := domain.Booking{ID: f.nextID, UserID: in.UserID, SlotID: in.SlotID, ServiceID: in.ServiceID}
	f.bookings = append(f.bookings, b)
	if f.emptyCreate {
		return nil, nil
	}
	return &b, nil
}

func (f *fakeAPI) counts() (reads, writes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads, f.writes
}

func (f *fakeAPI) bookingsForSlot(slotID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.bookings {
		if b.SlotID == slotID {
			n++
		}
	}
	return n
}

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (c *capturePublisher) Publish(_ context.Context, event domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

package domain

import (
	"context"
	"time"
)

// RemoteUser описывает ответ сервиса на запрос пользователя по Telegram ID.
type RemoteUser struct {
	ID   int64
	Role Role
}

// NewService содержит данные для создания услуги.
type NewService struct {
	Name  string
	Price float64
}

// NewSlot содержит данные для создания слота.
type NewSlot struct {
	DateTime  string
	ServiceID int64
}

// NewBooking содержит данные для создания записи.
type NewBooking struct {
	UserID         int64
	SlotID         int64
	ServiceID      int64
	IdempotencyKey string
}

// BookingAPI описывает удалённый сервис. Create-методы возвращают nil, если сервер ответил пустым телом.
type BookingAPI interface {
	GetUser(ctx context.Context, telegramID int64) (RemoteUser, error)
	ListServices(ctx context.Context) ([]Service, error)
	CreateService(ctx context.Context, in NewService) (*Service, error)
	ListSlots(ctx context.Context) ([]Slot, error)
	CreateSlot(ctx context.Context, in NewSlot) (*Slot, error)
	ListBookings(ctx context.Context) ([]Booking, error)
	CreateBooking(ctx context.Context, in NewBooking) (*Booking, error)
}

// SubmissionGuard не даёт запустить одинаковую отправку, пока предыдущая не завершилась.
type SubmissionGuard interface {
	// Acquire возвращает release и true, если ключ свободен; false без ошибки, если занят.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// EventPublisher доставляет события об успешной сверке.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

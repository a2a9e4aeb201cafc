package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-booking-app/internal/domain"
	"tg-booking-app/internal/infra/cache"
	"tg-booking-app/internal/infra/metrics"
	"tg-booking-app/internal/usecase/projector"
	"tg-booking-app/internal/usecase/store"
)

const defaultLockTTL = 30 * time.Second

// Orchestrator выполняет команды по схеме проверка → отправка → сверка.
// Локальное состояние меняется только перезагрузкой коллекции после подтверждения сервером.
type Orchestrator struct {
	api      domain.BookingAPI
	store    *store.Store
	guard    domain.SubmissionGuard
	events   domain.EventPublisher
	observer PhaseObserver
	lockTTL  time.Duration
	log      zerolog.Logger
	now      func() time.Time

	mu     sync.Mutex
	drafts Drafts
}

type Option func(*Orchestrator)

// WithGuard задаёт защиту от повторной отправки. По умолчанию используется память процесса.
func WithGuard(guard domain.SubmissionGuard) Option {
	return func(o *Orchestrator) {
		if guard != nil {
			o.guard = guard
		}
	}
}

func WithPublisher(events domain.EventPublisher) Option {
	return func(o *Orchestrator) {
		o.events = events
	}
}

func WithObserver(observer PhaseObserver) Option {
	return func(o *Orchestrator) {
		o.observer = observer
	}
}

func WithLockTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) {
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// New создаёт оркестратор поверх кэша и клиента сервиса.
func New(api domain.BookingAPI, st *store.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:     api,
		store:   st,
		guard:   cache.NewMemoryGuard(),
		lockTTL: defaultLockTTL,
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Identify получает пользователя по Telegram ID и делает его актором сессии.
func (o *Orchestrator) Identify(ctx context.Context, identity domain.Identity) (domain.Actor, error) {
	remote, err := o.api.GetUser(ctx, identity.TelegramID)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("получение пользователя %d: %w", identity.TelegramID, err)
	}
	actor := domain.Actor{
		ID:          remote.ID,
		TelegramID:  identity.TelegramID,
		DisplayName: identity.DisplayName,
		Role:        remote.Role,
	}
	o.store.SetActor(actor)
	o.log.Info().Int64("tg_id", actor.TelegramID).Int64("user_id", actor.ID).Str("role", string(actor.Role)).Msg("booking: пользователь определён")
	return actor, nil
}

// Refresh перезагружает все коллекции.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	return o.store.LoadAll(ctx)
}

// CreateService создаёт услугу. Доступно только администратору.
func (o *Orchestrator) CreateService(ctx context.Context, name, price string) (*domain.Service, error) {
	var (
		in      domain.NewService
		created *domain.Service
	)
	err := o.execute(ctx, execution{
		cmd:    CommandCreateService,
		reload: domain.CollectionServices,
		validate: func(actor domain.Actor, _ store.Snapshot) (string, error) {
			if !actor.IsAdmin() {
				return "", domain.ErrForbidden
			}
			var err error
			in, err = ValidateService(name, price)
			return "service:" + strings.ToLower(in.Name), err
		},
		submit: func(ctx context.Context, _ domain.Actor) error {
			var err error
			created, err = o.api.CreateService(ctx, in)
			return err
		},
		event: func(actor domain.Actor, snap store.Snapshot) domain.Event {
			if created == nil {
				created = findService(snap, in)
			}
			return domain.Event{Type: domain.EventServiceCreated, Service: created}
		},
	})
	return created, err
}

// CreateSlot создаёт слот для существующей услуги. Доступно только администратору.
func (o *Orchestrator) CreateSlot(ctx context.Context, dateTime, serviceID string) (*domain.Slot, error) {
	var (
		in      domain.NewSlot
		created *domain.Slot
	)
	err := o.execute(ctx, execution{
		cmd:    CommandCreateSlot,
		reload: domain.CollectionSlots,
		validate: func(actor domain.Actor, snap store.Snapshot) (string, error) {
			if !actor.IsAdmin() {
				return "", domain.ErrForbidden
			}
			var err error
			in, err = ValidateSlot(snap, dateTime, serviceID)
			return "slot:" + strconv.FormatInt(in.ServiceID, 10) + ":" + in.DateTime, err
		},
		submit: func(ctx context.Context, _ domain.Actor) error {
			var err error
			created, err = o.api.CreateSlot(ctx, in)
			return err
		},
		event: func(actor domain.Actor, snap store.Snapshot) domain.Event {
			if created == nil {
				created = findSlot(snap, in)
			}
			return domain.Event{Type: domain.EventSlotCreated, Slot: created}
		},
	})
	return created, err
}

// CreateBooking записывает текущего актора на слот.
// Второй запрос на тот же слот, пока первый не сверен, отклоняется с ErrSubmissionInFlight,
// Перед отправкой список записей перечитывается; занятый слот даёт ErrSlotTaken.
func (o *Orchestrator) CreateBooking(ctx context.Context, slotID, serviceID int64) (*domain.Booking, error) {
	var created *domain.Booking
	err := o.execute(ctx, execution{
		cmd:    CommandCreateBooking,
		reload: domain.CollectionBookings,
		validate: func(_ domain.Actor, snap store.Snapshot) (string, error) {
			if _, err := ValidateBooking(snap, slotID, serviceID); err != nil {
				return "", err
			}
			return "booking:slot:" + strconv.FormatInt(slotID, 10), nil
		},
		precheck: func(ctx context.Context) error {
			// Свой кэш мог устареть: слот занимают и из других сессий.
			if err := o.store.Load(ctx, domain.CollectionBookings); err != nil {
				if !errors.Is(err, domain.ErrTransport) {
					err = &domain.TransportError{Op: "list bookings", Err: err}
				}
				return err
			}
			if projector.SlotBooked(o.store.Snapshot(), slotID) {
				return domain.ErrSlotTaken
			}
			return nil
		},
		submit: func(ctx context.Context, actor domain.Actor) error {
			var err error
			created, err = o.api.CreateBooking(ctx, domain.NewBooking{
				UserID:         actor.ID,
				SlotID:         slotID,
				ServiceID:      serviceID,
				IdempotencyKey: uuid.NewString(),
			})
			return err
		},
		event: func(actor domain.Actor, snap store.Snapshot) domain.Event {
			if created == nil {
				created = findBooking(snap, actor.ID, slotID)
			}
			return domain.Event{Type: domain.EventBookingCreated, Booking: created}
		},
	})
	return created, err
}

// Drafts возвращает текущие черновики форм.
func (o *Orchestrator) Drafts() Drafts {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.drafts
}

// SetServiceDraft сохраняет ввод формы услуги.
func (o *Orchestrator) SetServiceDraft(draft ServiceDraft) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.drafts.Service = draft
}

// SetSlotDraft сохраняет ввод формы слота.
func (o *Orchestrator) SetSlotDraft(draft SlotDraft) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.drafts.Slot = draft
}

// SubmitServiceDraft отправляет черновик услуги. При успехе черновик очищается, при ошибке остаётся.
func (o *Orchestrator) SubmitServiceDraft(ctx context.Context) (*domain.Service, error) {
	draft := o.Drafts().Service
	created, err := o.CreateService(ctx, draft.Name, draft.Price)
	if err != nil && !isReconcileOnly(err) {
		return nil, err
	}
	o.mu.Lock()
	if o.drafts.Service == draft {
		o.drafts.Service = ServiceDraft{}
	}
	o.mu.Unlock()
	return created, err
}

// SubmitSlotDraft отправляет черновик слота. При успехе черновик очищается, при ошибке остаётся.
func (o *Orchestrator) SubmitSlotDraft(ctx context.Context) (*domain.Slot, error) {
	draft := o.Drafts().Slot
	created, err := o.CreateSlot(ctx, draft.DateTime, draft.ServiceID)
	if err != nil && !isReconcileOnly(err) {
		return nil, err
	}
	o.mu.Lock()
	if o.drafts.Slot == draft {
		o.drafts.Slot = SlotDraft{}
	}
	o.mu.Unlock()
	return created, err
}

// isReconcileOnly: запись прошла, не удалась только перезагрузка.
func isReconcileOnly(err error) bool {
	var rec *domain.ReconcileError
	return errors.As(err, &rec)
}

type execution struct {
	cmd      Command
	reload   domain.Collection
	validate func(actor domain.Actor, snap store.Snapshot) (key string, err error)
	// precheck выполняется под блокировкой перед отправкой.
	precheck func(ctx context.Context) error
	submit   func(ctx context.Context, actor domain.Actor) error
	event    func(actor domain.Actor, snap store.Snapshot) domain.Event
}

func (o *Orchestrator) execute(ctx context.Context, ex execution) (err error) {
	log := o.log.With().Str("command", string(ex.cmd)).Logger()
	outcome := "ok"
	defer func() {
		o.transition(ex.cmd, PhaseIdle)
		metrics.ObserveCommand(string(ex.cmd), outcome)
		if err != nil {
			log.Warn().Err(err).Str("outcome", outcome).Msg("booking: команда не выполнена")
		}
	}()

	o.transition(ex.cmd, PhaseValidating)
	snap := o.store.Snapshot()
	if !snap.HasActor {
		outcome = "no_actor"
		return domain.ErrNoActor
	}
	key, err := ex.validate(snap.Actor, snap)
	if err != nil {
		outcome = "invalid"
		return err
	}

	release, ok, err := o.guard.Acquire(ctx, key, o.lockTTL)
	if err != nil {
		outcome = "guard_error"
		return fmt.Errorf("блокировка отправки: %w", err)
	}
	if !ok {
		outcome = "in_flight"
		return domain.ErrSubmissionInFlight
	}
	defer release()

	if ex.precheck != nil {
		if err := ex.precheck(ctx); err != nil {
			outcome = "invalid"
			if !errors.Is(err, domain.ErrSlotTaken) {
				outcome = "precheck_failed"
			}
			return err
		}
	}

	o.transition(ex.cmd, PhaseSubmitting)
	if err := ex.submit(ctx, snap.Actor); err != nil {
		o.transition(ex.cmd, PhaseReconcilingFailure)
		outcome = "failed"
		return err
	}

	o.transition(ex.cmd, PhaseReconcilingSuccess)
	if err := o.store.Load(ctx, ex.reload); err != nil {
		outcome = "reconcile_failed"
		return &domain.ReconcileError{Collection: ex.reload, Err: err}
	}

	if ex.event != nil && o.events != nil {
		event := ex.event(snap.Actor, o.store.Snapshot())
		event.ID = uuid.NewString()
		event.ActorID = snap.Actor.ID
		event.ActorTelegramID = snap.Actor.TelegramID
		event.OccurredAt = o.now().UTC()
		if err := o.events.Publish(ctx, event); err != nil {
			log.Error().Err(err).Str("event", string(event.Type)).Msg("booking: событие не опубликовано")
		}
	}
	log.Debug().Msg("booking: команда выполнена")
	return nil
}

func (o *Orchestrator) transition(cmd Command, phase Phase) {
	if o.observer != nil {
		o.observer(cmd, phase)
	}
}

func findService(snap store.Snapshot, in domain.NewService) *domain.Service {
	for i := len(snap.Services) - 1; i >= 0; i-- {
		if s := snap.Services[i]; s.Name == in.Name && s.Price == in.Price {
			return &s
		}
	}
	return nil
}

func findSlot(snap store.Snapshot, in domain.NewSlot) *domain.Slot {
	for i := len(snap.Slots) - 1; i >= 0; i-- {
		if s := snap.Slots[i]; s.ServiceID == in.ServiceID && s.DateTime == in.DateTime {
			return &s
		}
	}
	return nil
}

func findBooking(snap store.Snapshot, userID, slotID int64) *domain.Booking {
	for i := len(snap.Bookings) - 1; i >= 0; i-- {
		if b := snap.Bookings[i]; b.UserID == userID && b.SlotID == slotID {
			return &b
		}
	}
	return nil
}

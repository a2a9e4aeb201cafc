package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tg-booking-app/internal/domain"
	"tg-booking-app/internal/infra/cache"
	"tg-booking-app/internal/infra/metrics"
	"tg-booking-app/internal/usecase/booking"
	"tg-booking-app/internal/usecase/projector"
	"tg-booking-app/internal/usecase/store"
)

const defaultTTL = 30 * time.Minute

// Session хранит состояние мини-приложения одного пользователя Telegram.
type Session struct {
	Actor        domain.Actor
	Store        *store.Store
	Orchestrator *booking.Orchestrator
	Projector    *projector.Projector

	lastSeen time.Time
}

// Registry хранит сессии по Telegram ID. Защита от повторной отправки общая для всех сессий,
// иначе два пользователя могли бы одновременно записаться на один слот.
type Registry struct {
	api     domain.BookingAPI
	guard   domain.SubmissionGuard
	events  domain.EventPublisher
	lockTTL time.Duration
	ttl     time.Duration
	log     zerolog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[int64]*Session
}

type Option func(*Registry)

func WithGuard(guard domain.SubmissionGuard) Option {
	return func(r *Registry) {
		if guard != nil {
			r.guard = guard
		}
	}
}

func WithPublisher(events domain.EventPublisher) Option {
	return func(r *Registry) {
		r.events = events
	}
}

// WithTTL задаёт время жизни неактивной сессии.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithLockTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		r.lockTTL = ttl
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// NewRegistry создаёт реестр сессий.
func NewRegistry(api domain.BookingAPI, opts ...Option) *Registry {
	r := &Registry{
		api:      api,
		guard:    cache.NewMemoryGuard(),
		ttl:      defaultTTL,
		log:      zerolog.Nop(),
		now:      time.Now,
		sessions: make(map[int64]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get возвращает сессию пользователя, создавая её при первом обращении.
// Новая сессия определяет актора и загружает все коллекции. Ошибка загрузки не мешает работе:
// кэш остаётся пустым до следующего обновления.
func (r *Registry) Get(ctx context.Context, identity domain.Identity) (*Session, error) {
	now := r.now()
	r.mu.Lock()
	if sess, ok := r.sessions[identity.TelegramID]; ok && now.Sub(sess.lastSeen) < r.ttl {
		sess.lastSeen = now
		r.mu.Unlock()
		return sess, nil
	}
	r.mu.Unlock()

	sess, err := r.open(ctx, identity)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[identity.TelegramID]; ok && now.Sub(existing.lastSeen) < r.ttl {
		existing.lastSeen = now
		return existing, nil
	}
	sess.lastSeen = now
	r.sessions[identity.TelegramID] = sess
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return sess, nil
}

func (r *Registry) open(ctx context.Context, identity domain.Identity) (*Session, error) {
	log := r.log.With().Int64("tg_id", identity.TelegramID).Logger()
	st := store.New(r.api, log)
	opts := []booking.Option{
		booking.WithGuard(r.guard),
		booking.WithPublisher(r.events),
		booking.WithLogger(log),
	}
	if r.lockTTL > 0 {
		opts = append(opts, booking.WithLockTTL(r.lockTTL))
	}
	orch := booking.New(r.api, st, opts...)

	actor, err := orch.Identify(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("открытие сессии: %w", err)
	}
	if err := orch.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("session: начальная загрузка не удалась")
	}
	return &Session{
		Actor:        actor,
		Store:        st,
		Orchestrator: orch,
		Projector:    projector.New(st),
	}, nil
}

// Sweep удаляет сессии, неактивные дольше TTL. Возвращает число удалённых.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, sess := range r.sessions {
		if now.Sub(sess.lastSeen) >= r.ttl {
			delete(r.sessions, id)
			removed++
		}
	}
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return removed
}

// Len возвращает число сессий.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run периодически чистит устаревшие сессии до отмены контекста.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Debug().Int("removed", n).Msg("session: устаревшие сессии удалены")
			}
		}
	}
}

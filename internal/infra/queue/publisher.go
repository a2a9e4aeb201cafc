package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"tg-booking-app/internal/domain"
	"tg-booking-app/internal/infra/metrics"
)

// LogPublisher только пишет события в лог. Используется, когда брокеры не настроены.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, event domain.Event) error {
	p.log.Info().
		Str("event_id", event.ID).
		Str("type", string(event.Type)).
		Int64("actor_tg_id", event.ActorTelegramID).
		Msg("событие")
	return nil
}

type namedPublisher struct {
	name string
	pub  domain.EventPublisher
}

// MultiPublisher рассылает событие во все публикаторы и собирает ошибки.
type MultiPublisher struct {
	targets []namedPublisher
}

func NewMultiPublisher() *MultiPublisher {
	return &MultiPublisher{}
}

// Add регистрирует публикатор под именем для метрик. nil пропускается.
func (m *MultiPublisher) Add(name string, pub domain.EventPublisher) *MultiPublisher {
	if pub != nil {
		m.targets = append(m.targets, namedPublisher{name: name, pub: pub})
	}
	return m
}

// Len возвращает число публикаторов.
func (m *MultiPublisher) Len() int {
	return len(m.targets)
}

var _ domain.EventPublisher = (*MultiPublisher)(nil)

func (m *MultiPublisher) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, t := range m.targets {
		err := t.pub.Publish(ctx, event)
		metrics.ObservePublish(t.name, string(event.Type), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
		}
	}
	return errors.Join(errs...)
}

package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"tg-booking-app/internal/domain"
	"tg-booking-app/internal/usecase/projector"
	"tg-booking-app/internal/usecase/store"
)

// Notifier сообщает автору команды о подтверждённых сервером изменениях.
// Справочник услуг и слотов берётся из собственного кэша без актора.
type Notifier struct {
	out     Messenger
	catalog *store.Store
	log     zerolog.Logger
}

func NewNotifier(out Messenger, catalog *store.Store, log zerolog.Logger) *Notifier {
	return &Notifier{out: out, catalog: catalog, log: log}
}

// Notify отправляет уведомление о событии.
func (n *Notifier) Notify(ctx context.Context, event domain.Event) error {
	if event.ActorTelegramID == 0 {
		return fmt.Errorf("событие %s без получателя", event.ID)
	}
	if n.catalog != nil && event.Type == domain.EventBookingCreated {
		for _, kind := range []domain.Collection{domain.CollectionServices, domain.CollectionSlots} {
			if err := n.catalog.Load(ctx, kind); err != nil {
				n.log.Warn().Err(err).Str("collection", string(kind)).Msg("notifier: справочник не обновлён")
			}
		}
	}
	text := n.render(event)
	if text == "" {
		n.log.Debug().Str("type", string(event.Type)).Msg("notifier: событие без текста пропущено")
		return nil
	}
	return n.out.Send(ctx, event.ActorTelegramID, text, nil)
}

func (n *Notifier) render(event domain.Event) string {
	switch event.Type {
	case domain.EventBookingCreated:
		if event.Booking == nil {
			return "✅ Вы записаны."
		}
		var snap store.Snapshot
		if n.catalog != nil {
			snap = n.catalog.Snapshot()
		}
		return "✅ Вы записаны: " + FormatBooking(projector.BookingWithDetails(snap, *event.Booking))
	case domain.EventServiceCreated:
		if event.Service == nil {
			return "Услуга создана."
		}
		return fmt.Sprintf("Услуга «%s» создана, цена %s.", event.Service.Name, formatPrice(event.Service.Price))
	case domain.EventSlotCreated:
		if event.Slot == nil {
			return "Слот создан."
		}
		when := event.Slot.DateTime
		if t, ok := event.Slot.Time(); ok {
			when = t.Format("02.01.2006 15:04")
		}
		return fmt.Sprintf("Слот на %s создан.", when)
	default:
		return ""
	}
}

func formatPrice(price float64) string {
	s := fmt.Sprintf("%.2f", price)
	return strings.TrimSuffix(strings.TrimSuffix(s, "0"), ".0")
}

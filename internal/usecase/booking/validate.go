package booking

import (
	"math"
	"strconv"
	"strings"

	"tg-booking-app/internal/domain"
	"tg-booking-app/internal/usecase/projector"
	"tg-booking-app/internal/usecase/store"
)

// ValidateService проверяет ввод новой услуги.
func ValidateService(name, price string) (domain.NewService, error) {
	var verr domain.ValidationError
	in := domain.NewService{Name: strings.TrimSpace(name)}
	if in.Name == "" {
		verr.Add("name", "название обязательно")
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(price), 64)
	switch {
	case strings.TrimSpace(price) == "":
		verr.Add("price", "цена обязательна")
	case err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0):
		verr.Add("price", "цена должна быть числом")
	case parsed < 0:
		verr.Add("price", "цена не может быть отрицательной")
	default:
		in.Price = parsed
	}
	if verr.HasErrors() {
		return domain.NewService{}, &verr
	}
	return in, nil
}

// ValidateSlot проверяет ввод нового слота по текущему снимку. Снимок может быть устаревшим,
// окончательное решение остаётся за сервером.
func ValidateSlot(snap store.Snapshot, dateTime, serviceID string) (domain.NewSlot, error) {
	var verr domain.ValidationError
	in := domain.NewSlot{DateTime: strings.TrimSpace(dateTime)}
	if in.DateTime == "" {
		verr.Add("date_time", "время обязательно")
	} else if _, ok := domain.ParseSlotTime(in.DateTime); !ok {
		verr.Add("date_time", "время в неизвестном формате")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(serviceID), 10, 64)
	switch {
	case strings.TrimSpace(serviceID) == "":
		verr.Add("service_id", "услуга обязательна")
	case err != nil:
		verr.Add("service_id", "идентификатор услуги должен быть целым числом")
	default:
		if _, ok := projector.LookupService(snap, id); !ok {
			verr.Add("service_id", "услуга не найдена")
		}
		in.ServiceID = id
	}
	if verr.HasErrors() {
		return domain.NewSlot{}, &verr
	}
	return in, nil
}

// ValidateBooking проверяет, что слот существует, услуга совпадает с услугой слота и есть в снимке.
// Несовпадение услуги проверяется первым: это ошибка целостности, а не ввода.
func ValidateBooking(snap store.Snapshot, slotID, serviceID int64) (domain.Slot, error) {
	slot, ok := projector.LookupSlot(snap, slotID)
	if !ok {
		verr := &domain.ValidationError{}
		verr.Add("slot_id", "слот не найден")
		return domain.Slot{}, verr
	}
	if slot.ServiceID != serviceID {
		return domain.Slot{}, &domain.IntegrityMismatchError{SlotID: slot.ID, Want: slot.ServiceID, Got: serviceID}
	}
	if _, ok := projector.LookupService(snap, serviceID); !ok {
		verr := &domain.ValidationError{}
		verr.Add("service_id", "услуга не найдена")
		return domain.Slot{}, verr
	}
	return slot, nil
}

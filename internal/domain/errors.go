package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrValidation: некорректный ввод команды, до сети дело не доходит.
	ErrValidation = errors.New("некорректные данные")
	// ErrTransport: сервис недоступен или запрос не завершился вовремя.
	ErrTransport = errors.New("ошибка связи с сервисом")
	// ErrRemoteRejection: сервис ответил статусом ошибки.
	ErrRemoteRejection = errors.New("сервис отклонил запрос")
	// ErrIntegrityMismatch: пара слот/услуга не согласована.
	ErrIntegrityMismatch = errors.New("слот относится к другой услуге")
	// ErrSubmissionInFlight: такая же отправка ещё выполняется.
	ErrSubmissionInFlight = errors.New("запрос уже отправляется")
	// ErrSlotTaken: на слот уже есть запись.
	ErrSlotTaken = errors.New("слот уже занят")
	// ErrForbidden: команда доступна только администратору.
	ErrForbidden = errors.New("недостаточно прав")
	// ErrNoActor: пользователь сессии ещё не определён.
	ErrNoActor = errors.New("пользователь не определён")
)

// ValidationError содержит ошибки по полям, которые можно показать пользователю.
type ValidationError struct {
	Fields map[string]string
}

// Add фиксирует ошибку поля.
func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string]string)
	}
	v.Fields[field] = message
}

// HasErrors сообщает, есть ли ошибки.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.Fields) > 0
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (v *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransportError описывает сетевую ошибку, включая таймаут.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrTransport.Error(), e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// RemoteRejectionError описывает ответ сервиса со статусом ошибки.
type RemoteRejectionError struct {
	Op      string
	Status  int
	Message string
}

func (e *RemoteRejectionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s: status=%d", e.Op, ErrRemoteRejection.Error(), e.Status)
	}
	return fmt.Sprintf("%s: %s: status=%d message=%s", e.Op, ErrRemoteRejection.Error(), e.Status, e.Message)
}

func (e *RemoteRejectionError) Is(target error) bool {
	return target == ErrRemoteRejection
}

// IntegrityMismatchError: услуга в команде не совпадает с услугой слота.
type IntegrityMismatchError struct {
	SlotID int64
	Want   int64
	Got    int64
}

func (e *IntegrityMismatchError) Error() string {
	return fmt.Sprintf("%s: slot=%d service=%d, передано service=%d", ErrIntegrityMismatch.Error(), e.SlotID, e.Want, e.Got)
}

func (e *IntegrityMismatchError) Is(target error) bool {
	return target == ErrIntegrityMismatch
}

// ReconcileError означает, что запись прошла, а перезагрузка коллекции нет.
// Локальный кэш остаётся прежним до следующей успешной загрузки.
type ReconcileError struct {
	Collection Collection
	Err        error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("перезагрузка %s после записи: %v", e.Collection, e.Err)
}

func (e *ReconcileError) Unwrap() error { return e.Err }

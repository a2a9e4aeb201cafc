package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorTaxonomy(t *testing.T) {
	validation := &ValidationError{}
	validation.Add("name", "обязательно")

	tests := []struct {
		name   string
		err    error
		target error
	}{
		{name: "validation", err: validation, target: ErrValidation},
		{name: "transport", err: &TransportError{Op: "list services", Err: context.DeadlineExceeded}, target: ErrTransport},
		{name: "transport keeps cause", err: &TransportError{Op: "list services", Err: context.DeadlineExceeded}, target: context.DeadlineExceeded},
		{name: "rejection", err: &RemoteRejectionError{Op: "create booking", Status: 409}, target: ErrRemoteRejection},
		{name: "integrity", err: &IntegrityMismatchError{SlotID: 5, Want: 3, Got: 2}, target: ErrIntegrityMismatch},
		{name: "wrapped", err: fmt.Errorf("создание услуги: %w", validation), target: ErrValidation},
		{name: "reconcile keeps cause", err: &ReconcileError{Collection: CollectionSlots, Err: &TransportError{Op: "list slots", Err: errors.New("eof")}}, target: ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Fatalf("errors.Is(%v, %v) = false", tt.err, tt.target)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	var v ValidationError
	if v.HasErrors() {
		t.Fatal("пустая ошибка не должна содержать полей")
	}
	v.Add("price", "должна быть неотрицательным числом")
	v.Add("name", "обязательно")
	want := "некорректные данные: name: обязательно; price: должна быть неотрицательным числом"
	if got := v.Error(); got != want {
		t.Fatalf("ожидали %q, получили %q", want, got)
	}
}

package webapp

import (
	"errors"
	"net/http"

	"tg-booking-app/internal/domain"
	httpinfra "tg-booking-app/internal/infra/http"
)

// errorStatus сопоставляет ошибки домена с HTTP статусами.
func errorStatus(err error) (int, httpinfra.ErrorResponse) {
	resp := httpinfra.ErrorResponse{Error: err.Error()}

	var verr *domain.ValidationError
	var rejection *domain.RemoteRejectionError
	switch {
	case errors.As(err, &verr):
		resp.Fields = verr.Fields
		return http.StatusBadRequest, resp
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, resp
	case errors.Is(err, domain.ErrNoActor):
		return http.StatusUnauthorized, resp
	case errors.Is(err, domain.ErrIntegrityMismatch):
		return http.StatusUnprocessableEntity, resp
	case errors.Is(err, domain.ErrSubmissionInFlight), errors.Is(err, domain.ErrSlotTaken):
		return http.StatusConflict, resp
	case errors.As(err, &rejection):
		resp.Status = rejection.Status
		return http.StatusBadGateway, resp
	case errors.Is(err, domain.ErrTransport):
		return http.StatusGatewayTimeout, resp
	default:
		return http.StatusInternalServerError, resp
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	status, resp := errorStatus(err)
	httpinfra.WriteJSON(w, status, resp)
}

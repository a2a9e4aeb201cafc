package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"tg-booking-app/internal/domain"
	httpinfra "tg-booking-app/internal/infra/http"
	"tg-booking-app/internal/usecase/booking"
	"tg-booking-app/internal/usecase/projector"
	"tg-booking-app/internal/usecase/session"
)

// Sessions выдаёт сессию пользователя мини-приложения.
type Sessions interface {
	Get(ctx context.Context, identity domain.Identity) (*session.Session, error)
}

// Handler обслуживает API мини-приложения.
type Handler struct {
	sessions Sessions
	log      zerolog.Logger
}

func NewHandler(sessions Sessions, log zerolog.Logger) *Handler {
	return &Handler{sessions: sessions, log: log}
}

// Mount регистрирует маршруты /api/v1 за проверкой initData.
func (h *Handler) Mount(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(auth)
		api.Get("/me", h.me)
		api.Get("/view", h.view)
		api.Post("/refresh", h.refresh)
		api.Get("/drafts", h.drafts)
		api.Post("/services", h.createService)
		api.Post("/slots", h.createSlot)
		api.Post("/bookings", h.createBooking)
	})
}

// commandResponse содержит созданную сущность и свежее представление.
// Warning заполняется, если запись прошла, но перезагрузка кэша не удалась.
type commandResponse struct {
	Created any             `json:"created,omitempty"`
	View    *projector.View `json:"view,omitempty"`
	Warning string          `json:"warning,omitempty"`
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	identity, ok := httpinfra.IdentityFrom(r.Context())
	if !ok {
		writeDomainError(w, domain.ErrNoActor)
		return nil, false
	}
	sess, err := h.sessions.Get(r.Context(), identity)
	if err != nil {
		h.log.Warn().Err(err).Int64("tg_id", identity.TelegramID).Str("request_id", httpinfra.RequestID(r)).Msg("webapp: сессия не открыта")
		writeDomainError(w, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, sess.Actor)
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	view, err := sess.Projector.View()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Orchestrator.Refresh(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	h.view(w, r)
}

func (h *Handler) drafts(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, sess.Orchestrator.Drafts())
}

func (h *Handler) createService(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req createServiceRequest
	if !decode(w, r, &req) {
		return
	}
	sess.Orchestrator.SetServiceDraft(booking.ServiceDraft{Name: req.Name, Price: string(req.Price)})
	created, err := sess.Orchestrator.SubmitServiceDraft(r.Context())
	h.respond(w, sess, created, err)
}

func (h *Handler) createSlot(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req createSlotRequest
	if !decode(w, r, &req) {
		return
	}
	sess.Orchestrator.SetSlotDraft(booking.SlotDraft{DateTime: req.DateTime, ServiceID: string(req.ServiceID)})
	created, err := sess.Orchestrator.SubmitSlotDraft(r.Context())
	h.respond(w, sess, created, err)
}

func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req createBookingRequest
	if !decode(w, r, &req) {
		return
	}
	slotID, serviceID, fields := req.ids()
	if len(fields) > 0 {
		writeDomainError(w, &domain.ValidationError{Fields: fields})
		return
	}
	created, err := sess.Orchestrator.CreateBooking(r.Context(), slotID, serviceID)
	h.respond(w, sess, created, err)
}

func (h *Handler) respond(w http.ResponseWriter, sess *session.Session, created any, err error) {
	resp := commandResponse{Created: created}
	status := http.StatusCreated
	if err != nil {
		var rec *domain.ReconcileError
		if !errors.As(err, &rec) {
			writeDomainError(w, err)
			return
		}
		status = http.StatusAccepted
		resp.Warning = err.Error()
	}
	if view, verr := sess.Projector.View(); verr == nil {
		resp.View = &view
	}
	httpinfra.WriteJSON(w, status, resp)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, errors.New("некорректное тело запроса"))
		return false
	}
	return true
}

package bookingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-booking-app/internal/domain"
	"tg-booking-app/internal/infra/metrics"
)

// UserLookup выбирает вариант пути для получения пользователя.
type UserLookup string

const (
	// LookupByID: /api/users/{telegramId}.
	LookupByID UserLookup = "id"
	// LookupByTelegramID: /api/users/by-telegram-id/{telegramId}.
	LookupByTelegramID UserLookup = "by-telegram-id"
)

const defaultTimeout = 10 * time.Second

// Client ходит в удалённый сервис бронирования по HTTP/JSON.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	userLookup UserLookup
	log        zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout задаёт таймаут каждой сетевой операции. Таймаут считается ошибкой транспорта.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithUserLookup(lookup UserLookup) Option {
	return func(c *Client) {
		if lookup == LookupByTelegramID {
			c.userLookup = lookup
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}
	client := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		userLookup: LookupByID,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

var _ domain.BookingAPI = (*Client)(nil)

func (c *Client) GetUser(ctx context.Context, telegramID int64) (domain.RemoteUser, error) {
	endpoint := "/api/users/" + strconv.FormatInt(telegramID, 10)
	if c.userLookup == LookupByTelegramID {
		endpoint = "/api/users/by-telegram-id/" + strconv.FormatInt(telegramID, 10)
	}
	var user userDTO
	ok, err := c.get(ctx, "get user", endpoint, &user)
	if err != nil {
		return domain.RemoteUser{}, err
	}
	// Без идентификатора пользователя записи ушли бы с user_id 0.
	if !ok {
		return domain.RemoteUser{}, &domain.TransportError{Op: "get user", Err: errors.New("пустой ответ сервера")}
	}
	if user.ID == 0 {
		return domain.RemoteUser{}, &domain.TransportError{Op: "get user", Err: errors.New("в ответе нет id пользователя")}
	}
	return domain.RemoteUser{ID: user.ID, Role: domain.ParseRole(user.Role)}, nil
}

func (c *Client) ListServices(ctx context.Context) ([]domain.Service, error) {
	var items []serviceDTO
	if _, err := c.get(ctx, "list services", "/api/services", &items); err != nil {
		return nil, err
	}
	out := make([]domain.Service, 0, len(items))
	for _, item := range items {
		out = append(out, item.toDomain())
	}
	return out, nil
}

func (c *Client) CreateService(ctx context.Context, in domain.NewService) (*domain.Service, error) {
	var created serviceDTO
	ok, err := c.post(ctx, "create service", "/api/services", "", createServiceRequest{Name: in.Name, Price: in.Price}, &created)
	if err != nil || !ok {
		return nil, err
	}
	service := created.toDomain()
	return &service, nil
}

func (c *Client) ListSlots(ctx context.Context) ([]domain.Slot, error) {
	var items []slotDTO
	if _, err := c.get(ctx, "list slots", "/api/slots", &items); err != nil {
		return nil, err
	}
	out := make([]domain.Slot, 0, len(items))
	for _, item := range items {
		out = append(out, item.toDomain())
	}
	return out, nil
}

func (c *Client) CreateSlot(ctx context.Context, in domain.NewSlot) (*domain.Slot, error) {
	var created slotDTO
	ok, err := c.post(ctx, "create slot", "/api/slots", "", createSlotRequest{DateTime: in.DateTime, ServiceID: in.ServiceID}, &created)
	if err != nil || !ok {
		return nil, err
	}
	slot := created.toDomain()
	return &slot, nil
}

func (c *Client) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	var items []bookingDTO
	if _, err := c.get(ctx, "list bookings", "/api/bookings", &items); err != nil {
		return nil, err
	}
	out := make([]domain.Booking, 0, len(items))
	for _, item := range items {
		out = append(out, item.toDomain())
	}
	return out, nil
}

func (c *Client) CreateBooking(ctx context.Context, in domain.NewBooking) (*domain.Booking, error) {
	var created bookingDTO
	payload := createBookingRequest{UserID: in.UserID, SlotID: in.SlotID, ServiceID: in.ServiceID}
	ok, err := c.post(ctx, "create booking", "/api/bookings", in.IdempotencyKey, payload, &created)
	if err != nil || !ok {
		return nil, err
	}
	booking := created.toDomain()
	return &booking, nil
}

func (c *Client) get(ctx context.Context, op, endpoint string, out any) (bool, error) {
	return c.call(ctx, op, http.MethodGet, endpoint, "", nil, out)
}

func (c *Client) post(ctx context.Context, op, endpoint, idempotencyKey string, body any, out any) (bool, error) {
	return c.call(ctx, op, http.MethodPost, endpoint, idempotencyKey, body, out)
}

// call выполняет запрос с таймаутом операции. Возвращает false, если тело ответа пустое.
func (c *Client) call(ctx context.Context, op, method, endpoint, idempotencyKey string, body any, out any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return false, err
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	start := time.Now()
	ok, err := c.do(op, req, out)
	metrics.ObserveNetworkRequest("booking_api", op, endpointTarget(endpoint), start, err)
	if err != nil {
		c.log.Debug().Err(err).Str("op", op).Dur("took", time.Since(start)).Msg("booking api: запрос не удался")
	}
	return ok, err
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	resolved := *c.baseURL
	basePath := strings.TrimSuffix(c.baseURL.Path, "/")
	resolved.Path = path.Clean(basePath + endpoint)
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, resolved.String(), buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(op string, req *http.Request, out any) (bool, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &domain.TransportError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		// Редиректы клиент проходит сам; оставшийся 3xx означает неверный адрес, а не отказ сервиса.
		return false, &domain.TransportError{Op: op, Err: fmt.Errorf("unexpected redirect status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if len(data) > 0 {
			_ = json.Unmarshal(data, &apiErr)
		}
		msg := apiErr.message()
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return false, &domain.RemoteRejectionError{Op: op, Status: resp.StatusCode, Message: truncate(msg, 512)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return false, nil
	}
	// Неразборчивый ответ сервера приравниваем к сбою транспорта: кэш не трогаем.
	if err := json.Unmarshal(data, out); err != nil {
		return false, &domain.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return true, nil
}

func endpointTarget(endpoint string) string {
	if strings.HasPrefix(endpoint, "/api/users") {
		return "users"
	}
	return strings.TrimPrefix(endpoint, "/api/")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

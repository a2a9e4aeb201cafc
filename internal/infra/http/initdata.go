package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"tg-booking-app/internal/domain"
)

// InitDataHeader позволяет передать initData заголовком вместо query.
const InitDataHeader = "X-Telegram-Init-Data"

var (
	ErrInitDataMissing   = errors.New("init_data отсутствует")
	ErrInitDataSignature = errors.New("подпись недействительна")
	ErrInitDataExpired   = errors.New("init_data устарела")
	ErrInitDataUser      = errors.New("в init_data нет пользователя")
)

type identityKey struct{}

// WithIdentity кладёт личность пользователя в контекст.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom достаёт личность пользователя из контекста запроса.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(domain.Identity)
	return identity, ok
}

// InitDataVerifier проверяет initData Telegram WebApp.
// Ключ подписи: HMAC-SHA256("WebAppData", токен бота).
type InitDataVerifier struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewInitDataVerifier создаёт проверяющего. maxAge <= 0 отключает проверку auth_date.
func NewInitDataVerifier(botToken string, maxAge time.Duration) *InitDataVerifier {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return &InitDataVerifier{secret: mac.Sum(nil), maxAge: maxAge, now: time.Now}
}

// Verify проверяет подпись и срок initData и возвращает пользователя.
func (v *InitDataVerifier) Verify(initData string) (domain.Identity, error) {
	if strings.TrimSpace(initData) == "" {
		return domain.Identity{}, ErrInitDataMissing
	}
	values, err := url.ParseQuery(initData)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("разбор init_data: %w", err)
	}
	hash := values.Get("hash")
	if hash == "" {
		return domain.Identity{}, ErrInitDataSignature
	}
	expected, err := hex.DecodeString(hash)
	if err != nil {
		return domain.Identity{}, ErrInitDataSignature
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(dataCheckString(values)))
	if !hmac.Equal(mac.Sum(nil), expected) {
		return domain.Identity{}, ErrInitDataSignature
	}

	if v.maxAge > 0 {
		authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil {
			return domain.Identity{}, ErrInitDataExpired
		}
		if v.now().Sub(time.Unix(authDate, 0)) > v.maxAge {
			return domain.Identity{}, ErrInitDataExpired
		}
	}
	return parseUser(values.Get("user"))
}

// ParseUnsigned достаёт пользователя без проверки подписи. Только для локальной разработки.
func ParseUnsigned(initData string) (domain.Identity, error) {
	if strings.TrimSpace(initData) == "" {
		return domain.Identity{}, ErrInitDataMissing
	}
	values, err := url.ParseQuery(initData)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("разбор init_data: %w", err)
	}
	return parseUser(values.Get("user"))
}

// Sign подписывает набор полей тем же ключом. Используется в тестах и локальных инструментах.
func (v *InitDataVerifier) Sign(values url.Values) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(dataCheckString(values)))
	signed := url.Values{}
	for k, vs := range values {
		if k != "hash" {
			signed[k] = vs
		}
	}
	signed.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return signed.Encode()
}

// dataCheckString собирает пары key=value кроме hash, по алфавиту, через \n.
func dataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+values.Get(k))
	}
	return strings.Join(parts, "\n")
}

type webAppUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

func parseUser(raw string) (domain.Identity, error) {
	if raw == "" {
		return domain.Identity{}, ErrInitDataUser
	}
	var user webAppUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return domain.Identity{}, fmt.Errorf("разбор пользователя: %w", err)
	}
	if user.ID == 0 {
		return domain.Identity{}, ErrInitDataUser
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.Username
	}
	return domain.Identity{TelegramID: user.ID, DisplayName: name}, nil
}

// WebAppAuthMiddleware проверяет initData и кладёт пользователя в контекст.
// Без токена бота подпись не проверяется: так удобно запускать мини-приложение локально.
func WebAppAuthMiddleware(botToken string, maxAge time.Duration) func(http.Handler) http.Handler {
	verifier := NewInitDataVerifier(botToken, maxAge)
	verify := verifier.Verify
	if botToken == "" {
		verify = ParseUnsigned
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			initData := r.URL.Query().Get("init_data")
			if initData == "" {
				initData = r.Header.Get(InitDataHeader)
			}
			identity, err := verify(initData)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequestID возвращает request ID из контекста chi.
func RequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// ErrorResponse описывает ошибку.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
	Status int               `json:"upstream_status,omitempty"`
}

// WriteError отправляет JSON с ошибкой.
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteJSON(w, status, ErrorResponse{Error: err.Error()})
}

// WriteJSON отправляет тело в JSON.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

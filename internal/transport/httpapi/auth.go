package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

// ErrSecretRequired — не задан ключ подписи токенов.
var ErrSecretRequired = errors.New("jwt secret is required")

// Claims — полезная нагрузка токена сессии. Subject — идентификатор клиента.
type Claims struct {
	Email              string `json:"email,omitempty"`
	Name               string `json:"name,omitempty"`
	DiscountPercentage string `json:"discount_percentage,omitempty"`
	Role               string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator выпускает и проверяет HS256-токены сессии.
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
	logger *log.Entry
}

// NewAuthenticator создаёт Authenticator. Пустой секрет недопустим.
func NewAuthenticator(secret string, logger *log.Entry) (*Authenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretRequired
	}
	if logger == nil {
		logger = log.WithField("component", "http-auth")
	}
	return &Authenticator{
		secret: []byte(secret),
		issuer: "storefront",
		now:    time.Now,
		logger: logger,
	}, nil
}

// Issue подписывает токен для клиента.
func (a *Authenticator) Issue(c domain.Customer, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Email: c.Email,
		Name:  c.Name,
		Role:  string(c.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if !c.DiscountPercentage.IsZero() {
		claims.DiscountPercentage = c.DiscountPercentage.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse проверяет подпись и срок действия токена и возвращает клиента.
func (a *Authenticator) Parse(raw string) (domain.Customer, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("parse token: %w", err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return domain.Customer{}, fmt.Errorf("parse token: %w", domain.ErrCustomerRequired)
	}

	customer := domain.Customer{
		ID:    claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  domain.RoleCustomer,
	}
	switch domain.Role(claims.Role) {
	case domain.RoleCustomer, "":
	case domain.RoleOperator:
		customer.Role = domain.RoleOperator
	default:
		a.logger.WithField("customer_id", claims.Subject).WithField("role", claims.Role).Warn("unknown role claim, treating as customer")
	}
	if claims.DiscountPercentage != "" {
		pct, err := decimal.NewFromString(claims.DiscountPercentage)
		if err != nil {
			a.logger.WithError(err).WithField("customer_id", claims.Subject).Warn("ignoring malformed discount claim")
		} else {
			customer.DiscountPercentage = pct
		}
	}
	return customer, nil
}

// Middleware кладёт клиента из заголовка Authorization в контекст запроса.
// Запрос без токена проходит анонимно, недействительный токен отклоняется.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid_token", "authorization header must use Bearer scheme")
			return
		}
		customer, err := a.Parse(strings.TrimSpace(raw))
		if err != nil {
			a.logger.WithError(err).Debug("rejected session token")
			respondError(w, http.StatusUnauthorized, "invalid_token", "session token is invalid or expired")
			return
		}

		next.ServeHTTP(w, r.WithContext(session.WithCustomer(r.Context(), customer)))
	})
}

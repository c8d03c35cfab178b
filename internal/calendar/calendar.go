// Package calendar connects Google and Microsoft calendars over OAuth and
// syncs upcoming meetings, matching attendees to the user's contacts.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/rememberme/rememberme/internal/apperr"
	"github.com/rememberme/rememberme/internal/config"
	"github.com/rememberme/rememberme/internal/metrics"
	"github.com/rememberme/rememberme/internal/model"
	"github.com/rememberme/rememberme/internal/store"
)

const (
	stateTTL = 10 * time.Minute
	// expirySkew refreshes tokens slightly before they lapse.
	expirySkew = time.Minute
)

var tracer = otel.Tracer("github.com/rememberme/rememberme/internal/calendar")

var googleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// provider pairs an OAuth config with the API the events come from.
type provider struct {
	oauth   *oauth2.Config
	apiBase string
	fetch   func(ctx context.Context, c *http.Client, base string, from, to time.Time) ([]Event, error)
	account func(ctx context.Context, c *http.Client, base string) (string, error)
}

// Service manages calendar connections and syncs.
type Service struct {
	DB      *store.DB
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// HTTPClient, when set, is used for token exchange and API calls.
	HTTPClient *http.Client

	sealer      *Sealer
	stateSecret []byte
	providers   map[model.CalendarProvider]*provider
	now         func() time.Time
}

// NewService builds a Service for every provider with a client id set.
// publicURL is the externally reachable base of this server, used for the
// OAuth redirect.
func NewService(db *store.DB, cfg config.CalendarConfig, publicURL string, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key, err := cfg.Key()
	if err != nil {
		return nil, err
	}
	sealer, err := NewSealer(key)
	if err != nil {
		return nil, err
	}
	if cfg.StateSecret == "" {
		return nil, errors.New("calendar state secret is required")
	}

	s := &Service{
		DB:          db,
		Logger:      logger,
		sealer:      sealer,
		stateSecret: []byte(cfg.StateSecret),
		providers:   make(map[model.CalendarProvider]*provider),
		now:         func() time.Time { return time.Now().UTC() },
	}
	base := strings.TrimRight(publicURL, "/")
	redirect := func(p model.CalendarProvider) string {
		return base + "/api/calendar/" + string(p) + "/callback"
	}

	if cfg.GoogleClientID != "" {
		s.providers[model.ProviderGoogle] = &provider{
			oauth: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     googleEndpoint,
				RedirectURL:  redirect(model.ProviderGoogle),
				Scopes:       []string{"https://www.googleapis.com/auth/calendar.readonly", "email"},
			},
			apiBase: "https://www.googleapis.com/calendar/v3",
			fetch:   fetchGoogle,
			account: googleAccount,
		}
	}
	if cfg.MicrosoftClientID != "" {
		tenant := cfg.MicrosoftTenant
		if tenant == "" {
			tenant = "common"
		}
		s.providers[model.ProviderMicrosoft] = &provider{
			oauth: &oauth2.Config{
				ClientID:     cfg.MicrosoftClientID,
				ClientSecret: cfg.MicrosoftClientSecret,
				Endpoint:     microsoft.AzureADEndpoint(tenant),
				RedirectURL:  redirect(model.ProviderMicrosoft),
				Scopes:       []string{"offline_access", "Calendars.Read", "User.Read"},
			},
			apiBase: "https://graph.microsoft.com/v1.0",
			fetch:   fetchMicrosoft,
			account: microsoftAccount,
		}
	}
	return s, nil
}

// Providers lists the configured providers.
func (s *Service) Providers() []model.CalendarProvider {
	var out []model.CalendarProvider
	for _, p := range []model.CalendarProvider{model.ProviderGoogle, model.ProviderMicrosoft} {
		if _, ok := s.providers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) provider(p model.CalendarProvider) (*provider, error) {
	prov, ok := s.providers[p]
	if !ok {
		return nil, apperr.Validation("calendar provider %q is not configured", p)
	}
	return prov, nil
}

// httpContext carries the custom HTTP client into x/oauth2.
func (s *Service) httpContext(ctx context.Context) context.Context {
	if s.HTTPClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, s.HTTPClient)
	}
	return ctx
}

type stateClaims struct {
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

func (s *Service) signState(userID string, p model.CalendarProvider) (string, error) {
	now := s.now()
	claims := stateClaims{
		Provider: string(p),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.stateSecret)
}

func (s *Service) parseState(state string) (string, model.CalendarProvider, error) {
	var claims stateClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(*jwt.Token) (any, error) {
		return s.stateSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", "", apperr.Validation("invalid oauth state: %v", err)
	}
	if claims.Subject == "" {
		return "", "", apperr.Validation("invalid oauth state: missing user")
	}
	return claims.Subject, model.CalendarProvider(claims.Provider), nil
}

// AuthURL returns the consent URL that starts a connection.
func (s *Service) AuthURL(userID string, p model.CalendarProvider) (string, error) {
	prov, err := s.provider(p)
	if err != nil {
		return "", err
	}
	state, err := s.signState(userID, p)
	if err != nil {
		return "", fmt.Errorf("sign oauth state: %w", err)
	}
	return prov.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")), nil
}

// Callback completes the OAuth flow: it verifies state, exchanges the code
// and stores the sealed tokens.
func (s *Service) Callback(ctx context.Context, state, code string) (*model.CalendarConnection, error) {
	userID, p, err := s.parseState(state)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, apperr.Validation("authorization code is required")
	}
	prov, err := s.provider(p)
	if err != nil {
		return nil, err
	}

	ctx = s.httpContext(ctx)
	tok, err := prov.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Unavailable("exchange authorization code", err)
	}

	email, err := prov.account(ctx, oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok)), prov.apiBase)
	if err != nil {
		s.Logger.Warn("calendar: account lookup failed", zap.String("provider", string(p)), zap.Error(err))
	}

	conn := &model.CalendarConnection{UserID: userID, Provider: p, AccountEmail: email}
	if err := s.save(conn, tok); err != nil {
		return nil, err
	}
	s.Logger.Info("calendar connected", zap.String("user", userID), zap.String("provider", string(p)))
	return conn, nil
}

func (s *Service) save(conn *model.CalendarConnection, tok *oauth2.Token) error {
	access, err := s.sealer.Seal(tok.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := s.sealer.Seal(tok.RefreshToken)
	if err != nil {
		return err
	}
	conn.SealedAccessToken = access
	conn.SealedRefreshToken = refresh
	conn.ExpiresAt = nil
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		conn.ExpiresAt = &exp
	}
	return s.DB.UpsertConnection(conn)
}

// Token returns a usable access token, refreshing and re-saving it when it
// has expired.
func (s *Service) Token(ctx context.Context, userID string, p model.CalendarProvider) (*oauth2.Token, error) {
	prov, err := s.provider(p)
	if err != nil {
		return nil, err
	}
	conn, err := s.DB.GetConnection(userID, p)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, apperr.NotFound("no %s calendar connected", p)
	}

	access, err := s.sealer.Open(conn.SealedAccessToken)
	if err != nil {
		return nil, apperr.Internal("open access token", err)
	}
	refresh, err := s.sealer.Open(conn.SealedRefreshToken)
	if err != nil {
		return nil, apperr.Internal("open refresh token", err)
	}

	tok := &oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"}
	if conn.ExpiresAt != nil {
		tok.Expiry = *conn.ExpiresAt
	}
	if tok.Expiry.IsZero() || tok.Expiry.After(s.now().Add(expirySkew)) {
		return tok, nil
	}

	if refresh == "" {
		return nil, apperr.Unauthorized("%s calendar access expired, reconnect it", p)
	}
	fresh, err := prov.oauth.TokenSource(s.httpContext(ctx), &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		return nil, apperr.Unavailable("refresh calendar token", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = refresh
	}
	if err := s.save(conn, fresh); err != nil {
		return nil, err
	}
	s.Logger.Debug("calendar token refreshed", zap.String("user", userID), zap.String("provider", string(p)))
	return fresh, nil
}

// Disconnect forgets the stored tokens for a provider.
func (s *Service) Disconnect(userID string, p model.CalendarProvider) error {
	if err := s.DB.DeleteConnection(userID, p); err != nil {
		return err
	}
	s.Logger.Info("calendar disconnected", zap.String("user", userID), zap.String("provider", string(p)))
	return nil
}

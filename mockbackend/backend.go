package mockbackend

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/backend-qa/api-contract-tests/config"
	"github.com/backend-qa/api-contract-tests/framework"
)

// ErrorContract selects which error body shape the fake auth API produces.
type ErrorContract int

const (
	// CurrentContract errors carry "code", "error_code" and "msg".
	CurrentContract ErrorContract = iota
	// LegacyContract errors carry "error" and "error_description".
	LegacyContract
)

func (c ErrorContract) String() string {
	if c == LegacyContract {
		return "legacy"
	}
	return "current"
}

const (
	AuthPathPrefix = "/auth/v1"
	WebhookPath    = "/functions/v1/webhook"
	SignupPath     = "/functions/v1/signup"

	defaultTokenLifetime = time.Hour
)

// Options configures a Backend. Zero values give a backend that uses the current error contract
// and answers payment lookups with 404.
type Options struct {
	Contract ErrorContract

	// PaymentLookupStatus is the status returned for payment webhook events. Defaults to 404.
	PaymentLookupStatus int

	AnonKey    string
	ServiceKey string

	// JWTSecret signs access tokens. A random secret is used if empty.
	JWTSecret []byte

	TokenLifetime time.Duration

	Logger framework.Logger
}

type user struct {
	id          string
	email       string
	password    string
	confirmedAt time.Time
	createdAt   time.Time
}

// Backend is an in-process stand-in for both the hosted auth platform and the backend functions.
// It keeps users in memory and records admin deletions so that tests can check fixture cleanup.
type Backend struct {
	opts        Options
	router      chi.Router
	users       map[string]*user
	idsByEmail  map[string]string
	revoked     map[string]bool
	deleted     []string
	failDeletes bool
	lock        sync.Mutex
}

// New creates a Backend. It does not listen on anything; use it as an http.Handler.
func New(opts Options) *Backend {
	if opts.PaymentLookupStatus == 0 {
		opts.PaymentLookupStatus = http.StatusNotFound
	}
	if len(opts.JWTSecret) == 0 {
		opts.JWTSecret = []byte(uuid.NewString())
	}
	if opts.TokenLifetime <= 0 {
		opts.TokenLifetime = defaultTokenLifetime
	}
	if opts.Logger == nil {
		opts.Logger = framework.NullLogger()
	}
	b := &Backend{
		opts:       opts,
		users:      make(map[string]*user),
		idsByEmail: make(map[string]string),
		revoked:    make(map[string]bool),
	}
	b.router = b.routes()
	return b
}

func (b *Backend) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(b.logRequests)

	r.Route(AuthPathPrefix, func(r chi.Router) {
		r.Use(b.requireAPIKey)
		r.Post("/token", b.handleToken)
		r.Post("/logout", b.handleLogout)
		r.Get("/user", b.handleGetUser)
		r.Route("/admin/users", func(r chi.Router) {
			r.Use(b.requireServiceRole)
			r.Post("/", b.handleAdminCreateUser)
			r.Delete("/{id}", b.handleAdminDeleteUser)
		})
	})
	r.Post(SignupPath, b.handleSignup)
	r.HandleFunc(WebhookPath, b.handleWebhook)

	// The startup probe only needs some response.
	r.Head("/*", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.router.ServeHTTP(w, r)
}

func (b *Backend) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.opts.Logger.Printf("mock backend: %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// AddUser registers a confirmed user and returns its id.
func (b *Backend) AddUser(email, password string) string {
	b.lock.Lock()
	defer b.lock.Unlock()
	u, _ := b.addUserLocked(email, password, true)
	return u.id
}

func (b *Backend) addUserLocked(email, password string, confirmed bool) (*user, bool) {
	key := strings.ToLower(email)
	if id, ok := b.idsByEmail[key]; ok {
		return b.users[id], false
	}
	now := time.Now().UTC()
	u := &user{id: uuid.NewString(), email: email, password: password, createdAt: now}
	if confirmed {
		u.confirmedAt = now
	}
	b.users[u.id] = u
	b.idsByEmail[key] = u.id
	return u, true
}

func (b *Backend) findByEmail(email string) *user {
	if id, ok := b.idsByEmail[strings.ToLower(email)]; ok {
		return b.users[id]
	}
	return nil
}

// UserCount is the number of users that currently exist.
func (b *Backend) UserCount() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.users)
}

// HasUser reports whether a user with this id exists.
func (b *Backend) HasUser(id string) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	_, ok := b.users[id]
	return ok
}

// DeletedUsers returns the ids passed to admin delete, in order, including failed attempts.
func (b *Backend) DeletedUsers() []string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]string(nil), b.deleted...)
}

// SetFailDeletes makes admin deletions answer 500 without removing anything.
func (b *Backend) SetFailDeletes(fail bool) {
	b.lock.Lock()
	b.failDeletes = fail
	b.lock.Unlock()
}

// Config builds a configuration pointing at a server that is serving this backend. The valid
// credentials and confirmed address are seeded as users.
func (b *Backend) Config(serverURL string, validEmail, validPassword string) *config.Config {
	serverURL = strings.TrimRight(serverURL, "/")
	b.AddUser(validEmail, validPassword)
	cfg := &config.Config{
		BaseURL:              serverURL + WebhookPath,
		PlatformURL:          serverURL,
		AuthURL:              serverURL + AuthPathPrefix,
		SignupURL:            serverURL + SignupPath,
		AnonKey:              b.opts.AnonKey,
		ConfirmedUserEmail:   validEmail,
		EphemeralEmailDomain: "example.com",
		EphemeralPassword:    "Contract#Test1234",
		Credentials: config.Credentials{
			ValidEmail:      validEmail,
			ValidPassword:   validPassword,
			InvalidEmail:    "invalid@example.com",
			InvalidPassword: "wrongpassword",
		},
		RequestTimeout:      5 * time.Second,
		AwaitServiceTimeout: 5 * time.Second,
		AuthContract:        b.opts.Contract.String(),
	}
	if b.opts.ServiceKey != "" {
		cfg.ServiceKey = ldvalue.NewOptionalString(b.opts.ServiceKey)
	}
	return cfg
}

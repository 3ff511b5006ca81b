package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/domain"
	"github.com/aussiebroadwan/tvguide/internal/tvguide/service"
	"github.com/aussiebroadwan/tvguide/internal/tvguide/store"
	"github.com/aussiebroadwan/tvguide/pkg/httpx"
	"github.com/aussiebroadwan/tvguide/pkg/promx"
	"github.com/aussiebroadwan/tvguide/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/aussiebroadwan/tvguide/api/tvguide" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Realm is advertised in every WWW-Authenticate challenge.
const Realm = "tvguide"

// Limiters holds one limiter per rate limit profile. Nil entries get an
// in-memory limiter with the default profile.
type Limiters struct {
	Strict   httpx.Limiter
	Moderate httpx.Limiter
	Lenient  httpx.Limiter

	// Ping checks the shared limiter backend for /readyz. Nil means the
	// limiters are in-process.
	Ping func(ctx context.Context) error

	// Proxies may report the client address in forwarding headers. Nil
	// keys every limit on the connected peer.
	Proxies httpx.ProxyTrust
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware
	handler     http.Handler

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store
	metrics      *promx.Metrics
	gate         *httpx.Gate

	// Gatherer backs /metrics. Nil leaves the endpoint unregistered.
	Gatherer prometheus.Gatherer
	Limiters Limiters

	AuthService      *service.AuthService
	IdentityService  *service.IdentityService
	BootstrapService *service.BootstrapService
	CatalogService   *service.CatalogService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger, metrics *promx.Metrics) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		metrics:      metrics,
	}

	// promx must sit innermost so it sees the matched route pattern.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		promx.HTTPMiddleware(r.metrics),
	}

	return r
}

// ApplyRoutes registers every endpoint. Call it once, after the service
// fields are set.
func (r *Router) ApplyRoutes() {
	r.gate = &httpx.Gate{
		Authenticator: httpx.AuthenticatorFunc(r.authenticate),
		Realm:         Realm,
		Observe:       r.metrics.AuthzDecision,
	}
	if r.Limiters.Strict == nil {
		r.Limiters.Strict = httpx.NewMemoryLimiter(httpx.StrictLimit)
	}
	if r.Limiters.Moderate == nil {
		r.Limiters.Moderate = httpx.NewMemoryLimiter(httpx.ModerateLimit)
	}
	if r.Limiters.Lenient == nil {
		r.Limiters.Lenient = httpx.NewMemoryLimiter(httpx.LenientLimit)
	}

	r.registerAuth()
	r.registerUsers()
	r.registerCatalog()
	r.registerBootstrap()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())

	r.handler = httpx.Chain(r.Mux, r.middlewares...)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			TV Guide API
//	@version		0.1.0
//	@description	Channel and program listings with username/password accounts.
//	@description
//	@description				Access tokens are HMAC-signed JWTs. Send them as "Authorization: Bearer {token}".
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/tvguide
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if r.handler == nil {
		http.Error(w, "routes not applied", http.StatusInternalServerError)
		return
	}
	r.handler.ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	registerHandler := &RegisterHandler{AuthService: r.AuthService}
	tokenHandler := &TokenHandler{AuthService: r.AuthService}

	// Anonymous registration is allowed; a bearer token, if sent, must be valid.
	r.Mux.Handle("POST /auth/register",
		httpx.Chain(registerHandler,
			httpx.RateLimitByIP(r.Limiters.Strict, r.Limiters.Proxies),
			r.gate.OptionalAuth(),
		),
	)

	// Rate limited by IP + username form field to slow down guessing.
	r.Mux.Handle("POST /auth/token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIPAndFormField(r.Limiters.Strict, r.Limiters.Proxies, "username"),
		),
	)
}

func (r *Router) registerUsers() {
	r.Mux.Handle("GET /users/me",
		httpx.Chain(&UserInfoHandler{},
			r.gate.RequireAuth(),
			httpx.RateLimitByUser(r.Limiters.Lenient, r.Limiters.Proxies),
		),
	)
}

func (r *Router) registerCatalog() {
	channels := &ChannelsHandler{CatalogService: r.CatalogService}
	programs := &ProgramsHandler{CatalogService: r.CatalogService}

	public := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h, httpx.RateLimitByIP(r.Limiters.Lenient, r.Limiters.Proxies))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h,
			r.gate.RequireAuth(),
			r.gate.RequireRole(string(domain.RoleAdmin)),
			httpx.RateLimitByUser(r.Limiters.Moderate, r.Limiters.Proxies),
		)
	}

	r.Mux.Handle("GET /channels", public(channels.HandleList))
	r.Mux.Handle("GET /channels/{id}", public(channels.HandleGet))
	r.Mux.Handle("POST /channels", admin(channels.HandleCreate))
	r.Mux.Handle("DELETE /channels/{id}", admin(channels.HandleDelete))

	r.Mux.Handle("GET /programs", public(programs.HandleList))
	r.Mux.Handle("GET /programs/{id}", public(programs.HandleGet))
	r.Mux.Handle("POST /programs", admin(programs.HandleCreate))
	r.Mux.Handle("PUT /programs/{id}", admin(programs.HandleUpdate))
	r.Mux.Handle("DELETE /programs/{id}", admin(programs.HandleDelete))
}

func (r *Router) registerBootstrap() {
	r.Mux.Handle("POST /bootstrap",
		httpx.Chain(&BootstrapHandler{BootstrapService: r.BootstrapService},
			httpx.RateLimitByIP(r.Limiters.Strict, r.Limiters.Proxies),
		),
	)
}

func (r *Router) registerSystem() {
	// Probes are not rate limited; orchestrators poll them constantly.
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Limiters.Ping))

	if r.Gatherer != nil {
		r.Mux.Handle("GET /metrics", promx.Handler(r.Gatherer))
	}
}

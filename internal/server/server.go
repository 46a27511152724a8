package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"robotctl/internal/auth"
	"robotctl/internal/domain"
	"robotctl/internal/events"
	"robotctl/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Repo          repo.Repo
	Verifier      auth.Verifier
	Issuer        auth.Issuer
	Authenticator auth.Authenticator
	Events        events.Writer
	Logger        *log.Logger
	BasePath      string
}

type gateway struct {
	repo          repo.Repo
	verifier      auth.Verifier
	issuer        auth.Issuer
	authenticator auth.Authenticator
	events        events.Writer
	logger        *log.Logger
	metrics       *metrics
}

type requestKey struct{}
type bodyBytesKey struct{}
type requestIDKey struct{}

// apiError models the error envelope: {"error": "<message>"}.
type apiError struct {
	status  int
	Message string `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

func newAPIError(status int, message string) huma.StatusError {
	return &apiError{status: status, Message: message}
}

// New returns an HTTP handler exposing the robot control API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Authenticator.Secret == "" {
		return nil, errors.New("authenticator secret is required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("credential verifier is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	basePath := cfg.BasePath
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	g := gateway{
		repo:          cfg.Repo,
		verifier:      cfg.Verifier,
		issuer:        cfg.Issuer,
		authenticator: cfg.Authenticator,
		events:        cfg.Events,
		logger:        logger,
		metrics:       newMetrics(cfg.Repo, logger),
	}

	huma.DefaultArrayNullable = false
	// All errors, huma's own included, use the {"error": string} envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors surface as 400.
			status = http.StatusBadRequest
		}
		return newAPIError(status, msg)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			w.Header().Set("X-Request-Id", requestID)
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			ctx = context.WithValue(ctx, requestIDKey{}, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, g))
	hcfg := huma.DefaultConfig("Robot Control API", "1.0.0")
	hcfg.OpenAPIPath = "" // the spec is served by registerOpenAPI below
	hcfg.DocsPath = ""    // custom Swagger UI below
	hcfg.Transformers = nil // response bodies carry exactly the documented fields
	api := humachi.New(router, hcfg)
	var group huma.API = api
	if basePath != "" {
		group = huma.NewGroup(api, basePath)
	}

	registerDocs(router, basePath)
	registerHealth(group, g)
	registerLogin(group, g)
	registerCommands(group, g)
	registerStatus(group, g)
	registerHistory(group, g)
	router.Method(http.MethodGet, path.Join("/", basePath, "metrics"), g.metrics.handler())
	registerOpenAPI(router, api, basePath)

	return router, nil
}

// handleError maps store and auth failures onto the uniform response policy.
// Unexpected faults are logged in full and surfaced with a generic message.
func (g gateway) handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "Command not found")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return newAPIError(http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrTokenExpired):
		return newAPIError(http.StatusUnauthorized, "token expired")
	case errors.Is(err, auth.ErrInvalidToken):
		return newAPIError(http.StatusUnauthorized, "invalid token")
	default:
		g.logger.Printf("internal error: %v", err)
		return newAPIError(http.StatusInternalServerError, "internal error")
	}
}

// audit appends a write-only log row; failures never fail the request.
func (g gateway) audit(ctx context.Context, format string, args ...any) {
	if g.events.DB == nil {
		return
	}
	if err := g.events.Append(ctx, requestID(ctx), format, args...); err != nil {
		g.logger.Printf("audit append failed: %v", err)
	}
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func emptyBody(ctx context.Context) bool {
	data := bytes.TrimSpace(bodyBytes(ctx))
	return len(data) == 0 || string(data) == "null"
}

func registerHealth(api huma.API, g gateway) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		g.logger.Printf("Health check called")
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: HealthResponse{Status: "ok", Message: "API is healthy"}}, nil
	})
}

func registerLogin(api huma.API, g gateway) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/login",
		Summary:     "Exchange credentials for a bearer token",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		if emptyBody(ctx) {
			return nil, newAPIError(http.StatusBadRequest, "body required")
		}
		g.logger.Printf("Login attempt by user: %s", input.Body.Username)
		subject, err := g.verifier.Verify(input.Body.Username, input.Body.Password)
		if err != nil {
			g.logger.Printf("Unauthorized login attempt by user: %s", input.Body.Username)
			g.audit(ctx, "unauthorized login attempt by user %s", input.Body.Username)
			return nil, g.handleError(err)
		}
		token, err := g.issuer.Issue(subject)
		if err != nil {
			return nil, g.handleError(err)
		}
		g.logger.Printf("Token issued for user: %s", subject)
		g.audit(ctx, "token issued for user %s", subject)
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{Token: token}}, nil
	})
}

func registerCommands(api huma.API, g gateway) {
	huma.Register(api, huma.Operation{
		OperationID: "create-command",
		Method:      http.MethodPost,
		Path:        "/command",
		Summary:     "Record a control command",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CommandRequest `json:"body"`
	}) (*struct {
		Body CommandAcceptedResponse `json:"body"`
	}, error) {
		if emptyBody(ctx) {
			return nil, newAPIError(http.StatusBadRequest, "body required")
		}
		g.logger.Printf("Received command to create: %s", input.Body.CommandText)
		created, err := g.repo.InsertCommand(ctx, commandFromRequest(input.Body))
		if err != nil {
			return nil, g.handleError(err)
		}
		g.metrics.commandsAccepted.Inc()
		g.logger.Printf("Command created with id: %d", created.ID)
		subject, _ := subjectFromContext(ctx)
		g.audit(ctx, "command %d created for robot %s by %s", created.ID, created.Robot, subject)
		return &struct {
			Body CommandAcceptedResponse `json:"body"`
		}{Body: CommandAcceptedResponse{Message: "Command accepted", CommandID: created.ID}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-command",
		Method:      http.MethodPut,
		Path:        "/command",
		Summary:     "Overwrite an existing command",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64          `query:"id" required:"true"`
		Body CommandRequest `json:"body"`
	}) (*struct {
		Body CommandUpdatedResponse `json:"body"`
	}, error) {
		if emptyBody(ctx) {
			return nil, newAPIError(http.StatusBadRequest, "body required")
		}
		g.logger.Printf("Received command update request for id: %d", input.ID)
		updated, err := g.repo.UpdateCommand(ctx, input.ID, commandFromRequest(input.Body))
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				g.logger.Printf("Command not found: %d", input.ID)
			}
			return nil, g.handleError(err)
		}
		g.metrics.commandsUpdated.Inc()
		subject, _ := subjectFromContext(ctx)
		g.audit(ctx, "command %d updated by %s", updated.ID, subject)
		return &struct {
			Body CommandUpdatedResponse `json:"body"`
		}{Body: CommandUpdatedResponse{Message: "Command updated", UpdatedCommand: updated}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-command",
		Method:      http.MethodGet,
		Path:        "/command",
		Summary:     "Fetch a command by id",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID int64 `query:"id" required:"true"`
	}) (*struct {
		Body domain.Command `json:"body"`
	}, error) {
		g.logger.Printf("Fetching command with id: %d", input.ID)
		c, err := g.repo.GetCommand(ctx, input.ID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				g.logger.Printf("Command not found: %d", input.ID)
			}
			return nil, g.handleError(err)
		}
		return &struct {
			Body domain.Command `json:"body"`
		}{Body: c}, nil
	})
}

func registerStatus(api huma.API, g gateway) {
	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Current robot status snapshot",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.RobotStatus `json:"body"`
	}, error) {
		s, err := g.repo.CurrentStatus(ctx)
		if err != nil {
			return nil, g.handleError(err)
		}
		g.logger.Printf("Fetched robot status: %s", s.Status)
		return &struct {
			Body domain.RobotStatus `json:"body"`
		}{Body: s}, nil
	})
}

func registerHistory(api huma.API, g gateway) {
	huma.Register(api, huma.Operation{
		OperationID: "history",
		Method:      http.MethodGet,
		Path:        "/history",
		Summary:     "Full command history in creation order",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Command `json:"body"`
	}, error) {
		items, err := g.repo.ListCommands(ctx)
		if err != nil {
			return nil, g.handleError(err)
		}
		if items == nil {
			items = []domain.Command{}
		}
		g.logger.Printf("Fetched command history: %d commands", len(items))
		return &struct {
			Body []domain.Command `json:"body"`
		}{Body: items}, nil
	})
}

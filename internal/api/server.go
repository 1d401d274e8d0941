// Package api provides the HTTP edge (C8): it translates deploy-template
// requests into controller operations and streams the resulting progress
// context back to the client, either as newline-delimited JSON or, for
// human consumption, the plaintext rendering of the same events.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/vessel-labs/vessel/docs" // generated swagger docs
	"github.com/vessel-labs/vessel/internal/auth"
	"github.com/vessel-labs/vessel/internal/config"
	"github.com/vessel-labs/vessel/internal/controller"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/internal/validation"
	"github.com/vessel-labs/vessel/models"
)

// Server is the HTTP edge: one Echo instance bound to a controller Root.
type Server struct {
	echo      *echo.Echo
	root      *controller.Root
	config    *config.Config
	validator *validation.Validator
}

// New creates a ready-to-serve Server. Routes and middleware are wired
// immediately; call Start to actually listen.
func New(cfg *config.Config, root *controller.Root) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Server.Debug
	e.HTTPErrorHandler = HTTPErrorHandler

	s := &Server{
		echo:      e,
		root:      root,
		config:    cfg,
		validator: validation.New(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures the ambient HTTP hardening every route gets,
// carried over from the daemon's existing middleware stack even though
// spec.md itself is silent on it.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human})\n",
	}))
	s.echo.Use(middleware.Recover())
	s.echo.Use(SecurityHeaders)

	if len(s.config.Security.AllowedOrigins) > 0 {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: s.config.Security.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	s.echo.Use(middleware.RequestID())

	if s.config.Security.RateLimit > 0 {
		s.echo.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(s.config.Security.RateLimit),
		)))
	}

	s.echo.Use(ValidateContentType)
	s.echo.Use(ValidateAcceptHeader)
}

// setupRoutes wires spec.md §4.8's five routes plus /health and the
// swagger doc UI. /health is the one public view; everything else
// requires the process bearer token.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	api := s.echo.Group("", auth.RequireBearer(s.authKey))
	api.GET("/list", s.listHandler)
	api.PUT("/create", s.createHandler)
	api.POST("/setup", s.setupHandler)
	api.POST("/upload", s.uploadHandler)
	api.Any("/:plugin/:func", s.pluginFuncHandler)
}

// authKey is the auth.KeySource consulted on every request.
func (s *Server) authKey() (string, error) {
	tx, err := s.root.Store.Begin(false)
	if err != nil {
		return "", err
	}
	defer tx.Abort()
	return tx.AuthKey()
}

// Start begins serving. Write timeouts must stay disabled (see
// config.setDefaults) since streaming responses can run far longer than
// any fixed deadline.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	log.Printf("vessel HTTP edge listening on %s", addr)

	s.echo.Server.ReadTimeout = s.config.Server.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.Server.WriteTimeout

	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}

// ServeHTTP lets Server satisfy http.Handler, for tests driving it with
// httptest without a real listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// healthCheck reports whether the store is reachable.
func (s *Server) healthCheck(c echo.Context) error {
	tx, err := s.root.Store.Begin(false)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	tx.Abort()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "vessel",
	})
}

// listEntry is one service's worth of /list output.
type listEntry struct {
	Versions  int      `json:"versions"`
	Instances []string `json:"instances"`
}

// listHandler implements GET /list: the non-streaming deployment tree.
func (s *Server) listHandler(c echo.Context) error {
	iface, err := s.root.Interface(false)
	if err != nil {
		return InternalError("cannot open controller interface", err.Error())
	}
	defer iface.Abort()

	ids, err := iface.DeploymentIDs()
	if err != nil {
		return InternalError("cannot list deployments", err.Error())
	}

	tree := make(map[string]map[string]listEntry, len(ids))
	for _, id := range ids {
		dep, err := iface.Deployment(id)
		if err != nil {
			return InternalError("cannot load deployment "+id, err.Error())
		}
		services := make(map[string]listEntry, len(dep.Services))
		for name, svc := range dep.Services {
			instances := make([]string, 0, len(svc.Instances))
			for _, inst := range svc.Instances {
				instances = append(instances, inst.ID)
			}
			services[name] = listEntry{Versions: len(svc.Versions), Instances: instances}
		}
		tree[id] = services
	}
	return c.JSON(http.StatusOK, tree)
}

// createHandler implements PUT /create.
func (s *Server) createHandler(c echo.Context) error {
	var req validation.CreateRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestError("malformed JSON body", err.Error())
	}
	if result := s.validator.ValidateCreateRequest(&req); !result.Valid {
		return ValidationError("invalid create request", flattenValidation(result))
	}

	return s.stream(c, func(ctx context.Context, pc *progress.Context, iface *controller.Interface) error {
		if _, err := iface.CreateDeployment(ctx, pc, req.DeployID, false); err != nil {
			return err
		}
		pc.Job("deployment %s ready", req.DeployID)
		return nil
	})
}

// setupEnvelope is the raw /setup body, decoded before validation so
// Services can be walked in wire order rather than Go map order.
type setupEnvelope struct {
	DeployID string          `json:"deploy_id"`
	Services json.RawMessage `json:"services"`
	Globals  json.RawMessage `json:"globals"`
	Force    bool            `json:"force"`
}

// setupHandler implements POST /setup.
func (s *Server) setupHandler(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return BadRequestError("cannot read request body", err.Error())
	}

	var env setupEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return BadRequestError("malformed JSON body", err.Error())
	}

	req := &validation.SetupRequest{DeployID: env.DeployID, Force: env.Force}
	if len(env.Services) > 0 {
		if err := json.Unmarshal(env.Services, &req.Services); err != nil {
			return BadRequestError("services must be a JSON object", err.Error())
		}
	}
	if result := s.validator.ValidateSetupRequest(req); !result.Valid {
		return ValidationError("invalid setup request", flattenValidation(result))
	}

	services, err := decodeOrderedObject(env.Services)
	if err != nil {
		return BadRequestError("services must be a JSON object", err.Error())
	}

	var globals *models.Globals
	if len(env.Globals) > 0 {
		globals = models.NewGlobals()
		if err := json.Unmarshal(env.Globals, globals); err != nil {
			return BadRequestError("malformed globals", err.Error())
		}
	}

	return s.stream(c, func(ctx context.Context, pc *progress.Context, iface *controller.Interface) error {
		if globals != nil {
			if _, err := iface.SetGlobals(ctx, pc, env.DeployID, globals); err != nil {
				return err
			}
		}
		for _, svc := range services {
			var def map[string]interface{}
			if err := json.Unmarshal(svc.value, &def); err != nil {
				return models.InvalidInput("service " + svc.name + ": malformed definition")
			}
			pc.Job("setting up %s", svc.name)
			if _, err := iface.SetService(ctx, pc, env.DeployID, svc.name, def, env.Force); err != nil {
				return err
			}
		}
		return nil
	})
}

// uploadHandler implements POST /upload: a multipart body carrying the
// raw artifact (one or more named files) alongside a JSON "data" field
// describing where it goes.
func (s *Server) uploadHandler(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return BadRequestError("expected multipart/form-data", err.Error())
	}

	dataValues := form.Value["data"]
	if len(dataValues) == 0 {
		return BadRequestError("missing data field", "multipart body must include a JSON 'data' field")
	}

	var info validation.UploadInfo
	if err := json.Unmarshal([]byte(dataValues[0]), &info); err != nil {
		return BadRequestError("malformed data field", err.Error())
	}
	if result := s.validator.ValidateUploadInfo(&info); !result.Valid {
		return ValidationError("invalid upload info", flattenValidation(result))
	}

	var rawInfo map[string]interface{}
	_ = json.Unmarshal([]byte(dataValues[0]), &rawInfo)

	files := map[string][]byte{}
	for field, headers := range form.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return InternalError("cannot read uploaded file", err.Error())
			}
			buf, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return InternalError("cannot read uploaded file", err.Error())
			}
			files[field] = buf
		}
	}

	return s.stream(c, func(ctx context.Context, pc *progress.Context, iface *controller.Interface) error {
		return iface.ProvideData(ctx, pc, info.DeployID, info.ServiceName, files, rawInfo)
	})
}

// pluginFuncHandler implements any-method /<plugin_name>/<func>, handing
// the request straight to the named plugin's HTTPHook.
func (s *Server) pluginFuncHandler(c echo.Context) error {
	pluginName := c.Param("plugin")
	funcName := c.Param("func")

	var body map[string]interface{}
	if c.Request().ContentLength != 0 {
		if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
			return BadRequestError("malformed JSON body", err.Error())
		}
	}
	deploymentID, _ := body["deploy_id"].(string)

	return s.stream(c, func(ctx context.Context, pc *progress.Context, iface *controller.Interface) error {
		return s.root.Dispatcher.RunHTTPFunc(ctx, pc, pluginName, funcName, deploymentID, body)
	})
}

// stream opens a fresh writable Interface and progress Context, runs fn on
// its own goroutine, and writes every event fn's operation produces to the
// response as it's enqueued, matching §4.7's "worker task bound to a fresh
// ControllerInterface and a fresh Context" streaming contract. On error
// the transaction is aborted and the only thing the client sees beyond
// whatever was already streamed is a trailing error event; on success the
// transaction commits after fn returns.
func (s *Server) stream(c echo.Context, fn func(ctx context.Context, pc *progress.Context, iface *controller.Interface) error) error {
	iface, err := s.root.Interface(true)
	if err != nil {
		return InternalError("cannot open controller interface", err.Error())
	}

	pc := progress.New()
	ctx := c.Request().Context()

	go func() {
		defer pc.Done()
		if err := fn(ctx, pc, iface); err != nil {
			pc.Error("%s", err.Error())
			if aerr := iface.Abort(); aerr != nil {
				log.Printf("api: abort after error: %v", aerr)
			}
			return
		}
		if err := iface.Commit(); err != nil {
			pc.Error("commit failed: %s", err.Error())
		}
	}()

	return s.writeStream(c, pc)
}

// writeStream drains pc onto the response, either as newline-delimited
// JSON or, when the client asked for text/plain, the plaintext renderer
// from spec.md §6.
func (s *Server) writeStream(c echo.Context, pc *progress.Context) error {
	res := c.Response()
	plaintext := strings.Contains(c.Request().Header.Get(echo.HeaderAccept), "text/plain")

	if plaintext {
		res.Header().Set(echo.HeaderContentType, "text/plain; charset=UTF-8")
	} else {
		res.Header().Set(echo.HeaderContentType, "application/x-ndjson; charset=UTF-8")
	}
	res.WriteHeader(http.StatusOK)

	flusher, _ := res.Writer.(http.Flusher)
	enc := json.NewEncoder(res)

	for ev := range pc.Events() {
		if plaintext {
			if _, err := res.Write([]byte(ev.RenderPlaintext())); err != nil {
				return nil
			}
		} else {
			if err := enc.Encode(ev); err != nil {
				return nil
			}
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	return nil
}

// namedDef is one (service name, raw definition) pair from a /setup
// request body, in wire order.
type namedDef struct {
	name  string
	value json.RawMessage
}

// decodeOrderedObject walks a JSON object token by token instead of
// unmarshaling into a Go map, preserving key order the way spec.md §5
// requires services to be processed in request order.
func decodeOrderedObject(raw json.RawMessage) ([]namedDef, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}
	var out []namedDef
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string key")
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, err
		}
		out = append(out, namedDef{name: key, value: val})
	}
	return out, nil
}

// flattenValidation renders a validation.ValidationResult's errors as the
// field->message map APIError carries.
func flattenValidation(result *validation.ValidationResult) map[string]string {
	out := make(map[string]string, len(result.Errors))
	for _, e := range result.Errors {
		out[e.Field] = e.Message
	}
	return out
}

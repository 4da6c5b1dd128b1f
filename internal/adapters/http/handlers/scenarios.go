package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/jsamuelsen/authrpc/internal/adapters/http/dto"
	"github.com/jsamuelsen/authrpc/internal/adapters/http/middleware"
	"github.com/jsamuelsen/authrpc/internal/platform/config"
)

var (
	// ErrScenarioNotFound is returned when activating an unknown scenario.
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrDuplicateScenario is returned when two scenarios share a name.
	ErrDuplicateScenario = errors.New("duplicate scenario")
)

// Scenario is a canned backend answer for one path.
type Scenario struct {
	Name   string
	Path   string
	Status int
	Body   []byte
	Delay  time.Duration
}

// ScenarioFromConfig renders the body of cfg and applies its removals.
func ScenarioFromConfig(cfg config.ScenarioConfig) (Scenario, error) {
	body := []byte(cfg.RawBody)

	if cfg.RawBody == "" {
		src := cfg.Body
		if src == nil {
			src = map[string]any{}
		}

		var err error

		body, err = json.Marshal(src)
		if err != nil {
			return Scenario{}, fmt.Errorf("scenario %s: encoding body: %w", cfg.Name, err)
		}
	}

	for _, path := range cfg.Remove {
		var err error

		body, err = sjson.DeleteBytes(body, path)
		if err != nil {
			return Scenario{}, fmt.Errorf("scenario %s: removing %s: %w", cfg.Name, path, err)
		}
	}

	status := cfg.Status
	if status == 0 {
		status = http.StatusOK
	}

	return Scenario{
		Name:   cfg.Name,
		Path:   normalizePath(cfg.Path),
		Status: status,
		Body:   body,
		Delay:  cfg.Delay,
	}, nil
}

func normalizePath(p string) string {
	return "/" + strings.TrimLeft(p, "/")
}

// ScenarioStore holds the loaded scenarios and the active one per path.
// The first scenario added for a path is active until another is activated.
// It is safe for concurrent use.
type ScenarioStore struct {
	mu     sync.RWMutex
	byName map[string]Scenario
	order  []string
	active map[string]string
}

// NewScenarioStore creates an empty store.
func NewScenarioStore() *ScenarioStore {
	return &ScenarioStore{
		byName: make(map[string]Scenario),
		active: make(map[string]string),
	}
}

// LoadScenarios builds a store from configuration.
func LoadScenarios(cfgs []config.ScenarioConfig) (*ScenarioStore, error) {
	store := NewScenarioStore()

	for _, cfg := range cfgs {
		sc, err := ScenarioFromConfig(cfg)
		if err != nil {
			return nil, err
		}

		if err := store.Add(sc); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// Add stores sc.
func (s *ScenarioStore) Add(sc Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[sc.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateScenario, sc.Name)
	}

	sc.Path = normalizePath(sc.Path)
	s.byName[sc.Name] = sc
	s.order = append(s.order, sc.Name)

	if _, ok := s.active[sc.Path]; !ok {
		s.active[sc.Path] = sc.Name
	}

	return nil
}

// Activate makes the named scenario the answer for its path.
func (s *ScenarioStore) Activate(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrScenarioNotFound, name)
	}

	s.active[sc.Path] = name

	return nil
}

// Active returns the scenario answering path.
func (s *ScenarioStore) Active(path string) (Scenario, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name, ok := s.active[normalizePath(path)]
	if !ok {
		return Scenario{}, false
	}

	return s.byName[name], true
}

// List returns every scenario in load order.
func (s *ScenarioStore) List() []dto.ScenarioSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]dto.ScenarioSummary, 0, len(s.order))
	for _, name := range s.order {
		sc := s.byName[name]
		out = append(out, dto.ScenarioSummary{
			Name:   sc.Name,
			Path:   sc.Path,
			Status: sc.Status,
			Active: s.active[sc.Path] == name,
		})
	}

	return out
}

// Len returns the number of scenarios.
func (s *ScenarioStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.order)
}

// Name implements ports.HealthChecker.
func (s *ScenarioStore) Name() string {
	return "scenarios"
}

// Check implements ports.HealthChecker; a store without scenarios is not ready.
func (s *ScenarioStore) Check(context.Context) error {
	if s.Len() == 0 {
		return errors.New("no scenarios loaded")
	}

	return nil
}

// ScenarioHandlerConfig holds the collaborators of a ScenarioHandler.
type ScenarioHandlerConfig struct {
	Store *ScenarioStore

	// Registerer receives the served-scenario counter. Defaults to the
	// Prometheus default registry.
	Registerer prometheus.Registerer

	Logger *slog.Logger
}

// ScenarioHandler answers backend calls from the active scenarios and
// serves the /-/scenarios admin endpoints.
type ScenarioHandler struct {
	store  *ScenarioStore
	served *prometheus.CounterVec
	logger *slog.Logger

	mu       sync.Mutex
	requests map[string][]byte
}

// NewScenarioHandler creates a ScenarioHandler.
func NewScenarioHandler(cfg ScenarioHandlerConfig) (*ScenarioHandler, error) {
	if cfg.Store == nil {
		return nil, errors.New("scenario store is required")
	}

	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	served := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authrpc",
		Subsystem: "fakebackend",
		Name:      "scenarios_served_total",
		Help:      "Backend calls answered from a canned scenario.",
	}, []string{"scenario", "status"})

	if err := reg.Register(served); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, fmt.Errorf("registering scenario counter: %w", err)
		}

		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("registering scenario counter: %w", err)
		}

		served = existing
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ScenarioHandler{
		store:    cfg.Store,
		served:   served,
		logger:   logger,
		requests: make(map[string][]byte),
	}, nil
}

// Serve answers a backend call with the active scenario for its path.
func (h *ScenarioHandler) Serve(c *gin.Context) {
	path := c.Request.URL.Path

	if c.Request.Method != http.MethodPost {
		dto.Abort(c, http.StatusNotFound, dto.MessageNotFound)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil || !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		dto.Abort(c, http.StatusBadRequest, dto.MessageInvalidJSON)
		return
	}

	h.record(path, body)

	sc, ok := h.store.Active(path)
	if !ok {
		dto.Abort(c, http.StatusNotFound, dto.MessageScenarioNotFound+" : no scenario for "+path)
		return
	}

	c.Set(middleware.ContextKeyScenario, sc.Name)

	if sc.Delay > 0 {
		timer := time.NewTimer(sc.Delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-c.Request.Context().Done():
			h.served.WithLabelValues(sc.Name, strconv.Itoa(http.StatusServiceUnavailable)).Inc()
			dto.Abort(c, http.StatusServiceUnavailable, dto.MessageUnavailable+" : deadline exceeded")

			return
		}
	}

	h.served.WithLabelValues(sc.Name, strconv.Itoa(sc.Status)).Inc()

	h.logger.DebugContext(c.Request.Context(), "serving scenario",
		slog.String("scenario", sc.Name),
		slog.String("path", path),
		slog.Int("status", sc.Status),
	)

	c.Data(sc.Status, "application/json; charset=UTF-8", sc.Body)
}

func (h *ScenarioHandler) record(path string, body []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.requests[path] = slices.Clone(body)
}

// LastRequest returns the last body received on path.
func (h *ScenarioHandler) LastRequest(path string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	body, ok := h.requests[normalizePath(path)]

	return slices.Clone(body), ok
}

// Store returns the scenario store.
func (h *ScenarioHandler) Store() *ScenarioStore {
	return h.store
}

// List serves GET /-/scenarios.
func (h *ScenarioHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, dto.ScenarioListResponse{Scenarios: h.store.List()})
}

// Activate serves PUT /-/scenarios/active.
func (h *ScenarioHandler) Activate(c *gin.Context) {
	var req dto.ActivateScenarioRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		resp := dto.NewErrorResponse(http.StatusBadRequest, dto.MessageInvalidArgument).WithItems(dto.ValidationItems(err)...)
		dto.Write(c, http.StatusBadRequest, resp)

		return
	}

	if err := h.store.Activate(req.Name); err != nil {
		dto.Write(c, http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, dto.MessageScenarioNotFound+" : "+req.Name))
		return
	}

	h.logger.InfoContext(c.Request.Context(), "scenario activated", slog.String("scenario", req.Name))

	c.Status(http.StatusNoContent)
}

// RegisterAdminRoutes registers the scenario admin endpoints on rg.
func (h *ScenarioHandler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/scenarios", h.List)
	rg.PUT("/scenarios/active", h.Activate)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/toyrent/internal/backend"
	"github.com/Kerhoff/toyrent/internal/models"
	"github.com/Kerhoff/toyrent/internal/service"
)

// Server exposes the client state over local HTTP and WebSocket.
type Server struct {
	svc      *service.Service
	hub      *Hub
	logger   *logrus.Logger
	gatherer prometheus.Gatherer
	router   chi.Router
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, hub *Hub, gatherer prometheus.Gatherer, logger *logrus.Logger) *Server {
	s := &Server{svc: svc, hub: hub, gatherer: gatherer, logger: logger, router: chi.NewRouter()}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", s.hub.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleGetState)

		// Auth
		r.Post("/auth/otp", s.handleRequestOTP)
		r.Post("/auth/verify", s.handleVerifyOTP)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)

		// Children
		r.Get("/children", s.handleGetChildren)
		r.Post("/children", s.handleCreateChild)
		r.Get("/children/{id}", s.handleGetChild)
		r.Put("/children/{id}", s.handleUpdateChild)
		r.Delete("/children/{id}", s.handleDeleteChild)

		// Subscriptions and plans
		r.Get("/subscriptions/pending", s.handlePendingSubscriptions)
		r.Post("/subscriptions", s.handleCreateSubscription)
		r.Post("/subscriptions/{id}/pause", s.handlePauseSubscription)
		r.Post("/subscriptions/{id}/resume", s.handleResumeSubscription)
		r.Get("/plans", s.handleGetPlans)
		r.Get("/plans/{id}", s.handleGetPlan)

		// Delivery addresses
		r.Post("/addresses", s.handleCreateAddress)
		r.Put("/addresses/{id}", s.handleUpdateAddress)
		r.Delete("/addresses/{id}", s.handleDeleteAddress)

		// Profile
		r.Put("/profile", s.handleUpdateProfile)

		// Navigation state
		r.Put("/ui/screen", s.handleSetScreen)
		r.Put("/ui/editing-child", s.handleSetEditingChild)
		r.Put("/ui/selected-address", s.handleSetSelectedAddress)
		r.Post("/ui/reset", s.handleResetUI)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps a flow error to a response. Backend errors keep
// their status code.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	var apiErr *backend.Error
	switch {
	case errors.As(err, &apiErr):
		s.respondError(w, apiErr.StatusCode, apiErr.Message)
	case errors.Is(err, service.ErrInvalidInput):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.respondError(w, http.StatusGatewayTimeout, err.Error())
	default:
		s.logger.WithError(err).Error("Request failed")
		s.respondError(w, http.StatusBadGateway, err.Error())
	}
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// pathID extracts the {id} path value and converts it to int64.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return 0, fmt.Errorf("missing id in path")
	}
	return strconv.ParseInt(raw, 10, 64)
}

// requirePathID writes a 400 and returns false when {id} is not an integer
func (s *Server) requirePathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}

// parseStatuses reads a comma separated status list
func parseStatuses(raw string) ([]models.SubscriptionStatus, error) {
	var out []models.SubscriptionStatus
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		st := models.SubscriptionStatus(part)
		if !st.Valid() {
			return nil, fmt.Errorf("unknown subscription status %q", part)
		}
		out = append(out, st)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// State
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"ws_clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.svc.Store().State())
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func (s *Server) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone string `json:"phone"`
	}
	if ok, msg := s.decodeJSON(r, &body); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.svc.RequestOTP(r.Context(), body.Phone); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
	}
	if ok, msg := s.decodeJSON(r, &body); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if body.Code == "" {
		s.respondError(w, http.StatusBadRequest, "code is required")
		return
	}
	if err := s.svc.VerifyOTP(r.Context(), body.Phone, body.Code); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.svc.Store().State())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Refresh(r.Context()); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.svc.Store().State())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Logout(r.Context()); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Children
// ---------------------------------------------------------------------------

func (s *Server) handleGetChildren(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	st := s.svc.Store()

	switch {
	case q.Has("with"):
		statuses, err := parseStatuses(q.Get("with"))
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, st.ChildrenWithSubscriptionIn(statuses...))
	case q.Has("without"):
		statuses, err := parseStatuses(q.Get("without"))
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, st.ChildrenWithoutSubscriptionIn(statuses...))
	default:
		children := []models.Child{}
		if u := st.State().User; u != nil {
			children = u.Children
		}
		s.respondJSON(w, http.StatusOK, children)
	}
}

func (s *Server) handleGetChild(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requirePathID(w, r)
	if !ok {
		return
	}
	child := s.svc.Store().ChildByID(&id)
	if child == nil {
		s.respondError(w, http.StatusNotFound, "child not found")
		return
	}
	s.respondJSON(w, http.StatusOK, child)
}

func (s *Server) handleCreateChild(w http.ResponseWriter, r *http.Request) {
	var in backend.ChildInput
	if ok, msg := s.decodeJSON(r, &in); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	child, err := s.svc.AddChild(r.Context(), in)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, child)
}

func (s *Server) handleUpdateChild(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requirePathID(w, r)
	if !ok {
		return
	}
	var in backend.ChildInput
	if ok, msg := s.decodeJSON(r, &in); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	child, err := s.svc.UpdateChild(r.Context(), id, in)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, child)
}

func (s *Server) handleDeleteChild(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requirePathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.RemoveChild(r.Context(), id); err != nil {
		s.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Subscriptions and plans
// ---------------------------------------------------------------------------

func (s *Server) handlePendingSubscriptions(w http.ResponseWriter, r *http.Request) {
	onlyPending := true
	if raw := r.URL.Query().Get("only_pending"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "only_pending must be a boolean")
			return
		}
		onlyPending = v
	}
	s.respondJSON(w, http.StatusOK, s.svc.Store().PendingSubscriptionIDs(onlyPending))
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var in backend.SubscriptionInput
	if ok, msg := s.decodeJSON(r, &in); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if in.ChildID == 0 || in.PlanID == 0 {
		s.respondError(w, http.StatusBadRequest, "child_id and plan_id are required")
		return
	}
	sub, err := s.svc.CreateSubscription(r.Context(), in)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, sub)
}

func (s *Server) handlePauseSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requirePathID(w, r)
	if !ok {
		return
	}
	sub, err := s.svc.PauseSubscription(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, sub)
}

func (s *Server) handleResumeSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requirePathID(w, r)
	if !ok {
		return
	}
	sub, err := s.svc.ResumeSubscription(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, sub)
}

func (s *Server) handleGetPlans(w http.ResponseWriter, r *http.Request) {
	plans := s.svc.Store().State().SubscriptionPlans
	if plans == nil {
		plans = []models.SubscriptionPlan{}
	}
	s.respondJSON(w, http.StatusOK, plans)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requirePathID(w, r)
	if !ok {
		return
	}
	plan := s.svc.Store().SubscriptionPlanByID(id)
	if plan == nil {
		s.respondError(w, http.StatusNotFound, "plan not found")
		return
	}
	s.respondJSON(w, http.StatusOK, plan)
}

// ---------------------------------------------------------------------------
// Delivery addresses
// ---------------------------------------------------------------------------

func (s *Server) handleCreateAddress(w http.ResponseWriter, r *http.Request) {
	var in backend.DeliveryInfoInput
	if ok, msg := s.decodeJSON(r, &in); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if strings.TrimSpace(in.Address) == "" {
		s.respondError(w, http.StatusBadRequest, "address is required")
		return
	}
	addr, err := s.svc.AddDeliveryAddress(r.Context(), in)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, addr)
}

func (s *Server) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requirePathID(w, r)
	if !ok {
		return
	}
	var in backend.DeliveryInfoInput
	if ok, msg := s.decodeJSON(r, &in); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	addr, err := s.svc.UpdateDeliveryAddress(r.Context(), id, in)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, addr)
}

func (s *Server) handleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requirePathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.RemoveDeliveryAddress(r.Context(), id); err != nil {
		s.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Profile
// ---------------------------------------------------------------------------

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body backend.ProfileUpdate
	if ok, msg := s.decodeJSON(r, &body); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if body.Name == nil && body.Phone == nil {
		s.respondError(w, http.StatusBadRequest, "name or phone is required")
		return
	}
	if body.Name != nil {
		if err := s.svc.UpdateName(r.Context(), *body.Name); err != nil {
			s.respondServiceError(w, err)
			return
		}
	}
	if body.Phone != nil {
		if err := s.svc.UpdatePhone(r.Context(), *body.Phone); err != nil {
			s.respondServiceError(w, err)
			return
		}
	}
	s.respondJSON(w, http.StatusOK, s.svc.Store().State().User)
}

// ---------------------------------------------------------------------------
// Navigation state
// ---------------------------------------------------------------------------

func (s *Server) handleSetScreen(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Screen models.Screen `json:"screen"`
	}
	if ok, msg := s.decodeJSON(r, &body); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if !body.Screen.Valid() {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown screen %q", body.Screen))
		return
	}
	s.respondJSON(w, http.StatusOK, s.svc.Store().SetScreen(body.Screen).UI)
}

type idBody struct {
	ID *int64 `json:"id"`
}

func (s *Server) handleSetEditingChild(w http.ResponseWriter, r *http.Request) {
	var body idBody
	if ok, msg := s.decodeJSON(r, &body); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	s.respondJSON(w, http.StatusOK, s.svc.Store().SetEditingChild(body.ID).UI)
}

func (s *Server) handleSetSelectedAddress(w http.ResponseWriter, r *http.Request) {
	var body idBody
	if ok, msg := s.decodeJSON(r, &body); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	s.respondJSON(w, http.StatusOK, s.svc.Store().SetSelectedAddress(body.ID).UI)
}

func (s *Server) handleResetUI(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.svc.Store().ResetUI().UI)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/nick-dorsch/agenda/embed/web"
	"github.com/nick-dorsch/agenda/internal/agenda"
	"github.com/nick-dorsch/agenda/internal/dailyclose"
	"github.com/nick-dorsch/agenda/internal/reschedule"
	"github.com/nick-dorsch/agenda/internal/store"
	"github.com/nick-dorsch/agenda/pkg/models"
)

type Server struct {
	app    *agenda.App
	log    *slog.Logger
	server *http.Server
}

func NewServer(app *agenda.App, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{app: app, log: log}
}

// Handler returns the routed API and static assets.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)
	mux.HandleFunc("POST /api/tasks/{id}/{action}", s.handleTaskAction)
	mux.HandleFunc("POST /api/bulk/{action}", s.handleBulk)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/reconcile", s.handleReconcile)
	mux.HandleFunc("GET /api/discrepancies", s.handleDiscrepancies)

	// Static files
	mux.Handle("/", http.FileServer(http.FS(web.Assets)))

	return mux
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	s.log.Info("web server listening", "addr", addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }

func (e badRequest) Unwrap() error { return e.err }

func invalid(format string, args ...any) error {
	return badRequest{err: fmt.Errorf(format, args...)}
}

func (s *Server) dateParam(r *http.Request) (models.Date, error) {
	raw := r.URL.Query().Get("date")
	switch raw {
	case "":
		return s.app.Today(), nil
	case "all":
		return "", nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return "", badRequest{err: err}
	}
	return d, nil
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return invalid("invalid request body: %v", err)
	}
	return nil
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		s.respond(w, nil, err)
		return
	}
	tasks, err := s.app.Tasks(r.Context(), date)
	if tasks == nil {
		tasks = []models.Task{}
	}
	s.respond(w, tasks, err)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in agenda.NewTask
	if err := decodeBody(r, &in); err != nil {
		s.respond(w, nil, err)
		return
	}
	if in.Title == "" {
		s.respond(w, nil, invalid("title is required"))
		return
	}
	t, err := s.app.Create(r.Context(), in)
	if err != nil {
		s.respond(w, nil, err)
		return
	}
	s.write(w, http.StatusCreated, t)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.app.Get(r.Context(), r.PathValue("id"))
	s.respond(w, t, err)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	err := s.app.Delete(r.Context(), r.PathValue("id"))
	s.respond(w, map[string]string{"status": "deleted"}, err)
}

type forwardRequest struct {
	Date          models.Date `json:"date"`
	Reason        *string     `json:"reason"`
	ForwardedTo   string      `json:"forwarded_to"`
	KeepOrder     *bool       `json:"keep_order"`
	KeepChecklist *bool       `json:"keep_checklist"`
}

func (f forwardRequest) options(defaults reschedule.Options) *reschedule.Options {
	opts := defaults
	if f.Reason != nil {
		opts.Reason = *f.Reason
	}
	if f.KeepOrder != nil {
		opts.KeepOrder = *f.KeepOrder
	}
	if f.KeepChecklist != nil {
		opts.KeepChecklist = *f.KeepChecklist
	}
	opts.ForwardedTo = f.ForwardedTo
	return &opts
}

func (s *Server) handleTaskAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var (
		t   models.Task
		err error
	)
	switch action := r.PathValue("action"); action {
	case "complete":
		t, err = s.app.Complete(ctx, id)
	case "not-done":
		t, err = s.app.NotDone(ctx, id)
	case "pending":
		t, err = s.app.SetPending(ctx, id)
	case "conclude":
		t, err = s.app.Conclude(ctx, id)
	case "reopen":
		t, err = s.app.Reopen(ctx, id)
	case "delegate":
		var body struct {
			PersonID string `json:"person_id"`
		}
		if err := decodeBody(r, &body); err != nil {
			s.respond(w, nil, err)
			return
		}
		t, err = s.app.Delegate(ctx, id, body.PersonID)
	case "forward":
		s.handleForward(w, r, id)
		return
	default:
		http.NotFound(w, r)
		return
	}
	s.respond(w, t, err)
}

func (s *Server) handleForward(w http.ResponseWriter, r *http.Request, id string) {
	var body forwardRequest
	if err := decodeBody(r, &body); err != nil {
		s.respond(w, nil, err)
		return
	}
	if _, err := models.ParseDate(body.Date.String()); err != nil {
		s.respond(w, nil, badRequest{err: err})
		return
	}

	res, changed, err := s.app.Forward(r.Context(), id, body.Date, body.options(s.app.RescheduleDefaults()))
	s.respond(w, map[string]any{"changed": changed, "result": res}, err)
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	action, err := agenda.ParseBulkAction(r.PathValue("action"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	var body struct {
		forwardRequest
		IDs      []string `json:"ids"`
		PersonID string   `json:"person_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.respond(w, nil, err)
		return
	}

	res, err := s.app.Bulk(r.Context(), agenda.BulkRequest{
		Action:   action,
		IDs:      body.IDs,
		Date:     body.Date,
		PersonID: body.PersonID,
		Options:  body.options(s.app.RescheduleDefaults()),
	})
	if err != nil {
		err = badRequest{err: err}
	}
	s.respond(w, res, err)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err == nil && date.IsZero() {
		err = invalid("stats need a single date")
	}
	if err != nil {
		s.respond(w, nil, err)
		return
	}
	stats, err := s.app.Stats(r.Context(), date)
	s.respond(w, stats, err)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	found, err := s.app.Reconcile(r.Context())
	if found == nil {
		found = []models.Discrepancy{}
	}
	s.respond(w, found, err)
}

func (s *Server) handleDiscrepancies(w http.ResponseWriter, r *http.Request) {
	open, err := s.app.OpenDiscrepancies(r.Context())
	if open == nil {
		open = []models.Discrepancy{}
	}
	s.respond(w, open, err)
}

func statusFor(err error) int {
	var bad badRequest
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrVersionConflict), errors.Is(err, dailyclose.ErrGateClosed):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			s.log.Error("request failed", "error", err)
		}
		http.Error(w, err.Error(), code)
		return
	}
	s.write(w, http.StatusOK, data)
}

func (s *Server) write(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("failed to encode response", "error", err)
	}
}

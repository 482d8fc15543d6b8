package admin

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/c360/rtkit/component"
	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/execution"
	"github.com/c360/rtkit/manager"
	"github.com/c360/rtkit/port"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RateRequest is the body of PUT /api/contexts/{id}/rate.
type RateRequest struct {
	Rate float64 `json:"rate"`
}

func (s *Server) listComponents(w http.ResponseWriter, _ *http.Request) {
	objs := s.rt.Components()
	infos := make([]component.Info, 0, len(objs))
	for _, obj := range objs {
		infos = append(infos, obj.Describe())
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) getComponent(w http.ResponseWriter, r *http.Request) {
	obj, ok := s.findComponent(w, mux.Vars(r)["name"])
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, obj.Describe())
}

func (s *Server) componentAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	action, err := manager.ParseAction(vars["action"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	handle := component.NoHandle
	if raw := r.URL.Query().Get("ec"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: ec %q is not a handle", errors.ErrBadParameter, raw))
			return
		}
		handle = component.Handle(n)
	}

	obj, ok := s.findComponent(w, vars["name"])
	if !ok {
		return
	}
	if err := s.rt.Do(obj.Name(), action, handle); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, obj.Describe())
}

func (s *Server) listContexts(w http.ResponseWriter, _ *http.Request) {
	ecs := s.rt.Contexts()
	profiles := make([]execution.Profile, 0, len(ecs))
	for _, ec := range ecs {
		profiles = append(profiles, ec.Profile())
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) tick(w http.ResponseWriter, r *http.Request) {
	ec, ok := s.findContext(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	if err := ec.TickWait(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ec.Profile())
}

func (s *Server) setRate(w http.ResponseWriter, r *http.Request) {
	ec, ok := s.findContext(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	var req RateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := ec.SetRate(req.Rate); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ec.Profile())
}

func (s *Server) listConnectors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.rt.Network().Connectors())
}

func (s *Server) createConnector(w http.ResponseWriter, r *http.Request) {
	var profile port.ConnectorProfile
	if err := decodeJSON(r, &profile); err != nil {
		s.writeError(w, err)
		return
	}
	created, err := s.rt.Connect(r.Context(), profile)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// deleteConnector answers 204 for unknown ids too; disconnect is idempotent.
func (s *Server) deleteConnector(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.Disconnect(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	status := s.monitor.Check(HealthName)
	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) findComponent(w http.ResponseWriter, name string) (*component.RTObject, bool) {
	obj, ok := s.rt.Component(name)
	if !ok {
		s.writeError(w, fmt.Errorf("component %q: %w", name, errors.ErrNotFound))
	}
	return obj, ok
}

func (s *Server) findContext(w http.ResponseWriter, id string) (*execution.Context, bool) {
	ec, ok := s.rt.Context(id)
	if !ok {
		s.writeError(w, fmt.Errorf("execution context %q: %w", id, errors.ErrNotFound))
	}
	return ec, ok
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{
		Error: fmt.Sprintf("no route for %s", r.URL.Path),
		Code:  errors.Error.String(),
	})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error: fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path),
		Code:  errors.Unsupported.String(),
	})
}

// httpStatus maps an error to a status code.
func httpStatus(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, errors.ErrAlreadyExists):
		return http.StatusConflict
	}
	switch errors.Code(err) {
	case errors.BadParameter:
		return http.StatusBadRequest
	case errors.PreconditionNotMet:
		return http.StatusConflict
	case errors.Unsupported:
		return http.StatusNotImplemented
	case errors.OutOfResources:
		return http.StatusServiceUnavailable
	}
	if errors.IsInvalid(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := httpStatus(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("admin request failed", "error", err)
	}
	writeJSON(w, code, ErrorResponse{Error: err.Error(), Code: errors.Code(err).String()})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %v", errors.ErrBadParameter, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

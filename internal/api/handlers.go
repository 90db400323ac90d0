package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dokzlo13/huemotion/internal/animation"
	"github.com/dokzlo13/huemotion/internal/engine"
	"github.com/dokzlo13/huemotion/internal/light"
)

// Source is stamped on animations started over HTTP.
const Source = "api"

// AnimationRequest is the body of POST /api/animations/{kind}. Durations are seconds.
type AnimationRequest struct {
	Transition float64          `json:"transition"`
	Hold       float64          `json:"hold"`
	Period     float64          `json:"period"`
	Devices    []light.DeviceID `json:"devices"`
	Hues       []uint16         `json:"hues"`
	Script     string           `json:"script"`
}

// Spec converts the request into an animation spec.
func (req AnimationRequest) Spec(kind animation.Kind) (animation.Spec, error) {
	if req.Transition < 0 || req.Hold < 0 || req.Period < 0 {
		return animation.Spec{}, errors.New("durations must not be negative")
	}
	return animation.Spec{
		Kind:       kind,
		Transition: time.Duration(req.Transition * float64(time.Second)),
		Hold:       time.Duration(req.Hold * float64(time.Second)),
		Period:     time.Duration(req.Period * float64(time.Second)),
		Devices:    req.Devices,
		Hues:       req.Hues,
		Script:     req.Script,
	}, nil
}

// LightView is one light in GET /api/lights.
type LightView struct {
	ID        light.DeviceID `json:"id"`
	Name      string         `json:"name"`
	Reachable bool           `json:"reachable"`
	State     light.State    `json:"state"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleListLights(w http.ResponseWriter, r *http.Request) {
	res, ok := s.do(w, r, engine.GetLights{})
	if !ok {
		return
	}
	views := make([]LightView, 0, len(res.Lights))
	for _, id := range res.Lights.IDs() {
		l := res.Lights[id]
		views = append(views, LightView{ID: id, Name: l.Name, Reachable: l.Reachable, State: l.State})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleOn(w http.ResponseWriter, r *http.Request) {
	id, ok := lightID(w, r)
	if !ok {
		return
	}
	if _, ok := s.do(w, r, engine.On{ID: id}); ok {
		writeJSON(w, http.StatusOK, map[string]any{"light": id, "on": true})
	}
}

func (s *Server) handleOff(w http.ResponseWriter, r *http.Request) {
	id, ok := lightID(w, r)
	if !ok {
		return
	}
	if _, ok := s.do(w, r, engine.Off{ID: id}); ok {
		writeJSON(w, http.StatusOK, map[string]any{"light": id, "on": false})
	}
}

func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	id, ok := lightID(w, r)
	if !ok {
		return
	}
	var st light.State
	if !decode(w, r, &st) {
		return
	}
	if st.IsEmpty() {
		writeBadRequest(w, "state has no attributes")
		return
	}
	if _, ok := s.do(w, r, engine.SetState{ID: id, State: st}); ok {
		writeJSON(w, http.StatusOK, map[string]any{"light": id, "state": st})
	}
}

func (s *Server) handleStartAnimation(w http.ResponseWriter, r *http.Request) {
	kind, err := animation.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeInvalid, err.Error())
		return
	}

	var req AnimationRequest
	if !decode(w, r, &req) {
		return
	}
	spec, err := req.Spec(kind)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	res, ok := s.do(w, r, engine.StartAnimation{Spec: spec, Source: Source})
	if !ok {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"run_id": res.RunID, "spec": spec})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.do(w, r, engine.Stop{}); ok {
		writeJSON(w, http.StatusOK, s.engine.Status())
	}
}

// do runs a command with the reply timeout and writes the error response
// if it fails.
func (s *Server) do(w http.ResponseWriter, r *http.Request, cmd engine.Command) (engine.Result, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), ReplyTimeout)
	defer cancel()

	res, err := s.engine.Do(ctx, cmd)
	if err != nil {
		writeCommandError(w, err)
		return res, false
	}
	return res, true
}

func lightID(w http.ResponseWriter, r *http.Request) (light.DeviceID, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 8)
	if err != nil || n == 0 {
		writeBadRequest(w, "light id must be between 1 and 255")
		return 0, false
	}
	return light.DeviceID(n), true
}

// decode reads a JSON body. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeBadRequest(w, "invalid JSON body: "+err.Error())
	return false
}

package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lazypower/waypoint/internal/scene"
	"github.com/lazypower/waypoint/internal/spatial"
	"github.com/lazypower/waypoint/internal/store"
)

// --- users ---

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required,max=64"`
		Email    string `json:"email" validate:"required,email"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	u, err := s.db.CreateUser(req.Username, req.Email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("user registered", zap.String("user_id", u.ID), zap.String("username", u.Username))
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.db.ListUsers()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if users == nil {
		users = []store.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// --- session ---

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.sess.Status(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := map[string]any{"session": st}
	if st.LoggedIn {
		if u, err := s.db.GetUser(st.UserID); err == nil {
			resp["user"] = u
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User string `json:"user" validate:"required"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	u, err := s.db.ResolveUser(req.User)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.sess.Login(r.Context(), u.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.db.TouchLogin(u.ID); err != nil {
		s.log.Warn("record login failed", zap.String("user_id", u.ID), zap.Error(err))
	}

	st, err := s.sess.Status(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u, "session": st})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sess.Logout(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handleResetTracking(w http.ResponseWriter, r *http.Request) {
	n, err := s.sess.ResetTracking(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset", "anchors": n})
}

// --- memories ---

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	ms, err := s.sess.Memories(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": ms, "count": len(ms)})
}

func (s *Server) handlePlaceMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text  string `json:"text" validate:"required"`
		Photo []byte `json:"photo"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	m, err := s.sess.Place(r.Context(), req.Text, req.Photo)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleClearMemories(w http.ResponseWriter, r *http.Request) {
	n, err := s.sess.Clear(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": n})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, ok, err := s.sess.Memory(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := s.sess.Remove(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var vals [4]float32
	for i, key := range []string{"x", "y", "z", "radius"} {
		raw := q.Get(key)
		if raw == "" {
			if key == "radius" {
				continue
			}
			writeError(w, http.StatusBadRequest, key+" is required")
			return
		}
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, key+" must be a number")
			return
		}
		vals[i] = float32(f)
	}

	pos := spatial.Vec3{X: vals[0], Y: vals[1], Z: vals[2]}
	m, ok, err := s.sess.Nearby(r.Context(), pos, vals[3])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := map[string]any{"found": ok}
	if ok {
		resp["memory"] = m
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- taps and scene ---

func (s *Server) handleTap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X *float32 `json:"x" validate:"required"`
		Y *float32 `json:"y" validate:"required"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	m, ok, err := s.sess.Tap(r.Context(), scene.Point{X: *req.X, Y: *req.Y})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := map[string]any{"hit": ok}
	if ok {
		resp["memory"] = m
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	views, err := s.sess.Scene(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"anchors": views})
}

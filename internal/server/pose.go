package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lazypower/waypoint/internal/spatial"
)

const (
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	writeWait     = 10 * time.Second
	maxFrameBytes = 4 << 10
)

var errNoPose = errors.New("one of transform, orientation or tracking is required")

// poseFrame is one tracking update. A pose is given either as a 4x4
// column-major transform or as position plus orientation. Tracking quality
// may accompany a pose or arrive alone.
type poseFrame struct {
	Transform   []float32        `json:"transform" validate:"omitempty,len=16"`
	Position    *spatial.Vec3    `json:"position"`
	Orientation *spatial.Quat    `json:"orientation"`
	Tracking    *spatial.Quality `json:"tracking"`
}

// apply feeds the frame into the session tracker.
func (s *Server) apply(f *poseFrame) error {
	if err := s.validate.Struct(f); err != nil {
		return errors.New(validationMessage(err))
	}

	var pose *spatial.Pose
	switch {
	case len(f.Transform) == 16:
		var m [16]float32
		copy(m[:], f.Transform)
		p := spatial.PoseFromTransform(m)
		pose = &p
	case f.Orientation != nil:
		p := spatial.Pose{Orientation: *f.Orientation}
		if f.Position != nil {
			p.Position = *f.Position
		}
		pose = &p
	case f.Tracking == nil:
		return errNoPose
	}

	if f.Tracking != nil {
		s.sess.UpdateQuality(*f.Tracking)
	}
	if pose != nil {
		s.sess.UpdatePose(*pose)
	}
	return nil
}

func (s *Server) handlePose(w http.ResponseWriter, r *http.Request) {
	var f poseFrame
	if !s.decode(w, r, &f) {
		return
	}
	if err := s.apply(&f); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := s.sess.Status(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tracking": st.Tracking,
		"frames":   st.Frames,
	})
}

// poseAck is written back after every stream frame.
type poseAck struct {
	Frames uint64 `json:"frames"`
	Error  string `json:"error,omitempty"`
}

// handlePoseStream accepts a websocket of pose frames, one JSON frame per
// message, and acknowledges each with the running frame count.
func (s *Server) handlePoseStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("pose stream upgrade failed", zap.Error(err), zap.String("remote", r.RemoteAddr))
		return
	}
	defer conn.Close()

	log := s.log.With(zap.String("remote", r.RemoteAddr))
	log.Info("pose stream connected")

	conn.SetReadLimit(maxFrameBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	var frames int
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("pose stream read failed", zap.Error(err))
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var ack poseAck
		var f poseFrame
		if err := json.Unmarshal(data, &f); err != nil {
			ack.Error = "invalid json"
		} else if err := s.apply(&f); err != nil {
			ack.Error = err.Error()
		} else {
			frames++
		}
		st, err := s.sess.Status(r.Context())
		if err == nil {
			ack.Frames = st.Frames
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ack); err != nil {
			log.Warn("pose stream write failed", zap.Error(err))
			break
		}
	}
	log.Info("pose stream closed", zap.Int("frames", frames))
}

package web

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sweeney/attention-sensor/internal/attention"
)

const (
	streamBuffer = 16
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleStream pushes every sample to a websocket client. The observer only
// hands samples to a buffered channel; a client that falls behind loses
// samples instead of delaying the simulator.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	samples := make(chan attention.Sample, streamBuffer)
	samples <- s.sim.CurrentSample()

	var dropped atomic.Int64
	sub := s.sim.Subscribe(func(sample attention.Sample) error {
		select {
		case samples <- sample:
		default:
			dropped.Add(1)
		}
		return nil
	})
	defer sub.Unsubscribe()

	// The read side only tracks liveness; closed is signalled when the
	// client goes away.
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	s.logger.Debug("stream client connected",
		zap.String("remote", r.RemoteAddr),
		zap.Int("subscription", sub.ID()))
	for {
		select {
		case <-closed:
			s.logger.Debug("stream client disconnected",
				zap.String("remote", r.RemoteAddr),
				zap.Int("subscription", sub.ID()),
				zap.Int64("dropped", dropped.Load()))
			return
		case <-r.Context().Done():
			return
		case sample := <-samples:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(sample); err != nil {
				s.logger.Debug("stream write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

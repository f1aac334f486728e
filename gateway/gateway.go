// Package gateway exposes the engine over a websocket: clients stream
// detection events in and receive found/lost deltas back on the same
// connection.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mikiec84/perception-toolkit/artifact"
	"github.com/mikiec84/perception-toolkit/fetch"
)

// Message types accepted from clients.
const (
	TypeMarkerFound      = "marker-found"
	TypeMarkerLost       = "marker-lost"
	TypeImageFound       = "image-found"
	TypeImageLost        = "image-lost"
	TypeGeolocation      = "geolocation-updated"
	TypeDetectableImages = "detectable-images"
)

// Message types sent to clients.
const (
	TypeDelta                = "delta"
	TypeDetectableImagesList = "detectable-images"
	TypeError                = "error"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageBytes = 64 << 10 // 64 KB
)

// Engine is the coordinator surface the gateway forwards events to. Gateway
// clients never carry their own fetch policy; the engine's configured policy
// applies.
type Engine interface {
	MarkerFound(ctx context.Context, m artifact.Marker, policy fetch.Policy) (*artifact.NearbyResultDelta, error)
	MarkerLost(ctx context.Context, m artifact.Marker) (*artifact.NearbyResultDelta, error)
	ImageFound(ctx context.Context, img artifact.DetectedImage, policy fetch.Policy) (*artifact.NearbyResultDelta, error)
	ImageLost(ctx context.Context, img artifact.DetectedImage) (*artifact.NearbyResultDelta, error)
	GeolocationUpdated(ctx context.Context, coords artifact.GeoCoordinates, policy fetch.Policy) (*artifact.NearbyResultDelta, error)
	DetectableImages() []artifact.ImageTarget
}

// inbound is the envelope clients send.
type inbound struct {
	Type        string                   `json:"type"`
	Marker      *artifact.Marker         `json:"marker,omitempty"`
	Image       *artifact.DetectedImage  `json:"image,omitempty"`
	Coordinates *artifact.GeoCoordinates `json:"coordinates,omitempty"`
}

// outbound is the envelope sent back to clients.
type outbound struct {
	Type    string                      `json:"type"`
	Source  string                      `json:"source,omitempty"`
	Delta   *artifact.NearbyResultDelta `json:"delta,omitempty"`
	Targets []artifact.ImageTarget      `json:"targets,omitempty"`
	Error   string                      `json:"error,omitempty"`
}

// Server handles websocket connections against one engine.
type Server struct {
	engine   Engine
	upgrader websocket.Upgrader
	logger   *slog.Logger
	metrics  *Metrics
}

// NewServer creates a gateway over the given engine.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: logger,
	}
}

// WithMetrics enables Prometheus instrumentation on the gateway.
func (s *Server) WithMetrics(m *Metrics) *Server {
	s.metrics = m
	return s
}

// ServeHTTP upgrades the request and serves the connection until the client
// disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := &client{
		conn:   conn,
		server: s,
		logger: s.logger.With("remote", r.RemoteAddr),
	}
	s.metrics.connectionOpened()
	defer s.metrics.connectionClosed()
	client.run(r.Context())
}

// client is one websocket connection. writeMu serializes frames between the
// event loop and the ping ticker.
type client struct {
	conn    *websocket.Conn
	server  *Server
	logger  *slog.Logger
	writeMu sync.Mutex
}

func (c *client) run(ctx context.Context) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go c.pingLoop(stopPing)

	for {
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket closed unexpectedly", "error", err)
			}
			return
		}
		c.server.metrics.messageReceived(msg.Type)
		c.handle(ctx, msg)
	}
}

func (c *client) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *client) handle(ctx context.Context, msg inbound) {
	switch msg.Type {
	case TypeMarkerFound, TypeMarkerLost:
		if msg.Marker == nil {
			c.sendError("marker is required")
			return
		}
		c.forward(ctx, "marker", func() (*artifact.NearbyResultDelta, error) {
			if msg.Type == TypeMarkerFound {
				return c.server.engine.MarkerFound(ctx, *msg.Marker, nil)
			}
			return c.server.engine.MarkerLost(ctx, *msg.Marker)
		})

	case TypeImageFound, TypeImageLost:
		if msg.Image == nil {
			c.sendError("image is required")
			return
		}
		c.forward(ctx, "image", func() (*artifact.NearbyResultDelta, error) {
			if msg.Type == TypeImageFound {
				return c.server.engine.ImageFound(ctx, *msg.Image, nil)
			}
			return c.server.engine.ImageLost(ctx, *msg.Image)
		})

	case TypeGeolocation:
		if msg.Coordinates == nil {
			c.sendError("coordinates are required")
			return
		}
		c.forward(ctx, "geo", func() (*artifact.NearbyResultDelta, error) {
			return c.server.engine.GeolocationUpdated(ctx, *msg.Coordinates, nil)
		})

	case TypeDetectableImages:
		c.send(outbound{
			Type:    TypeDetectableImagesList,
			Targets: c.server.engine.DetectableImages(),
		})

	default:
		c.sendError("unknown message type: " + msg.Type)
	}
}

func (c *client) forward(ctx context.Context, source string, op func() (*artifact.NearbyResultDelta, error)) {
	delta, err := op()
	if err != nil {
		c.logger.Warn("event handling failed", "source", source, "error", err)
		c.sendError("event handling failed")
		return
	}
	c.send(outbound{Type: TypeDelta, Source: source, Delta: delta})
}

func (c *client) sendError(message string) {
	c.send(outbound{Type: TypeError, Error: message})
}

func (c *client) send(msg outbound) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Warn("encoding response failed", "error", err)
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.logger.Debug("writing response failed", "error", err)
	}
}

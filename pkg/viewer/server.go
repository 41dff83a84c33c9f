// Package viewer contains a HTTP server that shows the image stream
// and its statistics in a browser.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bluenviron/gocamstream"
	"github.com/bluenviron/gocamstream/pkg/camera"
	"github.com/bluenviron/gocamstream/pkg/imagestream"
	"github.com/bluenviron/gocamstream/pkg/observable"
	"github.com/bluenviron/gocamstream/pkg/snapshot"
)

const (
	defaultStatsPeriod      = 250 * time.Millisecond
	defaultImageContentType = "image/jpeg"
	defaultClientQueueSize  = 4
	writeTimeout            = 5 * time.Second
)

// Source is the receiver whose state is shown.
type Source interface {
	Snapshot() *gocamstream.Snapshot
	CompletedImage() observable.Reader[*imagestream.Image]
}

// Controller restarts the stream.
type Controller interface {
	Reset(ctx context.Context) error
}

// Saver saves images to disk.
type Saver interface {
	Save(kind snapshot.Kind, label string, payload []byte) (string, error)
}

// Stats are the statistics sent to clients.
type Stats struct {
	PacketNumber       uint32    `json:"packetNumber"`
	ImageNumber        uint32    `json:"imageNumber"`
	DroppedPackets     uint64    `json:"droppedPackets"`
	DroppedImages      uint64    `json:"droppedImages"`
	MalformedDatagrams uint64    `json:"malformedDatagrams"`
	ImagesCompleted    uint64    `json:"imagesCompleted"`
	ResolutionCode     uint8     `json:"resolutionCode"`
	Resolution         string    `json:"resolution"`
	FrameRate          float64   `json:"frameRate"`
	Bandwidth          float64   `json:"bandwidth"`
	Epoch              time.Time `json:"epoch"`
}

// Server is a HTTP server that shows the image stream.
type Server struct {
	// Address to listen on.
	// It defaults to ":8080".
	Address string

	// Receiver whose state is shown.
	Source Source

	// Camera model, used to label resolutions.
	Camera camera.Model

	// Handles POST /reset. If nil, the endpoint is disabled.
	Controller Controller

	// Handles POST /snapshot. If nil, the endpoint is disabled.
	Saver Saver

	// Period between two statistics messages on websockets.
	// It defaults to 250ms.
	StatsPeriod time.Duration

	// Content type of images.
	// It defaults to "image/jpeg".
	ImageContentType string

	// Number of images that can be queued for a slow websocket client.
	// When the queue is full, the oldest image is discarded.
	// It defaults to 4.
	ClientQueueSize int

	// logger.
	// It defaults to a no-op logger.
	Logger *zap.Logger

	ln          net.Listener
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	unsubscribe func()
	closed      core.Fuse

	mutex   sync.Mutex
	clients map[uuid.UUID]*wsClient
	wg      sync.WaitGroup
}

// Initialize starts the server.
func (s *Server) Initialize() error {
	if s.Address == "" {
		s.Address = ":8080"
	}
	if s.Source == nil {
		return errors.New("source is missing")
	}

	s.setDefaults()

	var err error
	s.ln, err = net.Listen("tcp", s.Address)
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.unsubscribe = s.Source.CompletedImage().Subscribe(s.onImage)

	s.wg.Add(1)
	go s.run()

	s.Logger.Info("viewer listening", zap.Stringer("address", s.ln.Addr()))

	return nil
}

// setDefaults fills optional fields. It can be called more than once.
func (s *Server) setDefaults() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.StatsPeriod == 0 {
		s.StatsPeriod = defaultStatsPeriod
	}
	if s.ImageContentType == "" {
		s.ImageContentType = defaultImageContentType
	}
	if s.ClientQueueSize == 0 {
		s.ClientQueueSize = defaultClientQueueSize
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	if s.clients == nil {
		s.clients = make(map[uuid.UUID]*wsClient)
	}
}

// Close closes the server and disconnects all clients.
func (s *Server) Close() {
	s.mutex.Lock()
	s.closed.Break()
	for _, c := range s.clients {
		c.close()
	}
	s.mutex.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.httpServer != nil {
		s.httpServer.Close() //nolint:errcheck
	}

	s.wg.Wait()
}

// Addr returns the address of the listener.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *Server) run() {
	defer s.wg.Done()

	err := s.httpServer.Serve(s.ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.Logger.Error("viewer terminated", zap.Error(err))
	}
}

// Handler returns the HTTP handler of the server.
// It can be used without Initialize, in which case Close
// must still be called to disconnect websocket clients.
func (s *Server) Handler() http.Handler {
	s.setDefaults()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.onPage)
	mux.HandleFunc("GET /stats", s.onStats)
	mux.HandleFunc("GET /image", s.onImageRequest)
	mux.HandleFunc("GET /ws", s.onWebSocket)
	mux.HandleFunc("POST /reset", s.onReset)
	mux.HandleFunc("POST /snapshot", s.onSnapshot)
	return mux
}

func (s *Server) stats() *Stats {
	snap := s.Source.Snapshot()

	return &Stats{
		PacketNumber:       snap.PacketNumber,
		ImageNumber:        snap.ImageNumber,
		DroppedPackets:     snap.DroppedPackets,
		DroppedImages:      snap.DroppedImages,
		MalformedDatagrams: snap.MalformedDatagrams,
		ImagesCompleted:    snap.ImagesCompleted,
		ResolutionCode:     snap.ResolutionCode,
		Resolution:         s.Camera.LabelOrCode(snap.ResolutionCode),
		FrameRate:          snap.FrameRate,
		Bandwidth:          snap.Bandwidth,
		Epoch:              snap.Epoch,
	}
}

func (s *Server) onPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page) //nolint:errcheck
}

func (s *Server) onStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.stats()) //nolint:errcheck
}

func (s *Server) onImageRequest(w http.ResponseWriter, _ *http.Request) {
	img := s.Source.Snapshot().Image
	if img == nil {
		http.Error(w, "no image available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", s.ImageContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img.Payload) //nolint:errcheck
}

func (s *Server) onReset(w http.ResponseWriter, r *http.Request) {
	if s.Controller == nil {
		http.Error(w, "reset is disabled", http.StatusNotImplemented)
		return
	}

	err := s.Controller.Reset(r.Context())
	if err != nil {
		s.Logger.Warn("reset failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) onSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.Saver == nil {
		http.Error(w, "snapshots are disabled", http.StatusNotImplemented)
		return
	}

	kind, err := snapshot.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap := s.Source.Snapshot()
	if snap.Image == nil {
		http.Error(w, "no image available", http.StatusConflict)
		return
	}

	path, err := s.Saver.Save(kind, s.Camera.LabelOrCode(snap.Image.Mode), snap.Image.Payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"path": path}) //nolint:errcheck
}

func (s *Server) onWebSocket(w http.ResponseWriter, r *http.Request) {
	wc, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &wsClient{
		s:      s,
		id:     uuid.New(),
		wc:     wc,
		logger: s.Logger,
	}
	c.initialize()

	s.mutex.Lock()
	if s.closed.IsBroken() {
		s.mutex.Unlock()
		wc.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
		wc.WriteMessage(websocket.CloseMessage, //nolint:errcheck
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "terminated"))
		wc.Close() //nolint:errcheck
		return
	}
	s.clients[c.id] = c
	s.wg.Add(1)
	s.mutex.Unlock()

	s.Logger.Debug("websocket client connected",
		zap.Stringer("id", c.id), zap.String("remoteAddr", r.RemoteAddr))

	go func() {
		defer s.wg.Done()
		c.run()

		s.mutex.Lock()
		delete(s.clients, c.id)
		s.mutex.Unlock()

		s.Logger.Debug("websocket client disconnected",
			zap.Stringer("id", c.id), zap.Uint64("imagesDropped", c.imagesDropped.Load()))
	}()
}

func (s *Server) onImage(img *imagestream.Image) {
	if img == nil {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, c := range s.clients {
		c.push(img)
	}
}

// NumClients returns the number of connected websocket clients.
func (s *Server) NumClients() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.clients)
}

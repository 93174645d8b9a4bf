package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"credit-scoring/internal/scoring"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const feedWriteWait = 5 * time.Second

// FeedRecorder is told how many clients are connected.
type FeedRecorder interface {
	FeedClientsSet(n int)
}

// FeedMessage is one frame on the decision feed.
type FeedMessage struct {
	Type     string                  `json:"type"` // "hello" or "decision"
	Decision *scoring.DecisionRecord `json:"decision,omitempty"`
}

type feedClient struct {
	conn *websocket.Conn
	mu   sync.Mutex // one writer per connection
}

func (c *feedClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Feed streams every served decision to connected websocket clients. It is a
// scoring.DecisionSink: RecordDecision never blocks, and when the buffer is
// full the decision is dropped from the feed only.
type Feed struct {
	upgrader         websocket.Upgrader
	recorder         FeedRecorder
	clients          map[*feedClient]struct{}
	clientsMu        sync.RWMutex
	broadcastChannel chan scoring.DecisionRecord
	stopChannel      chan struct{}
	stopOnce         sync.Once
	done             chan struct{}
}

func NewFeed(bufferSize int, recorder FeedRecorder) *Feed {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	f := &Feed{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
			Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
				writeDetail(w, status, reason.Error())
			},
		},
		recorder:         recorder,
		clients:          make(map[*feedClient]struct{}),
		broadcastChannel: make(chan scoring.DecisionRecord, bufferSize),
		stopChannel:      make(chan struct{}),
		done:             make(chan struct{}),
	}
	go f.clientBroadcaster()
	return f
}

// RecordDecision queues rec for broadcast.
func (f *Feed) RecordDecision(_ context.Context, rec scoring.DecisionRecord) error {
	select {
	case <-f.stopChannel:
		return nil
	default:
	}

	select {
	case f.broadcastChannel <- rec:
	default:
		log.Debug().Str("request_id", rec.RequestID).Msg("decision feed buffer full, dropping update")
	}
	return nil
}

// Clients returns the number of connected clients.
func (f *Feed) Clients() int {
	f.clientsMu.RLock()
	defer f.clientsMu.RUnlock()
	return len(f.clients)
}

// Close stops broadcasting and disconnects every client.
func (f *Feed) Close() {
	f.stopOnce.Do(func() {
		close(f.stopChannel)
		<-f.done

		f.clientsMu.Lock()
		for c := range f.clients {
			c.conn.Close()
		}
		f.clients = make(map[*feedClient]struct{})
		f.clientsMu.Unlock()
		f.reportClients(0)
	})
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects. Clients only receive; anything they send is discarded.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-f.stopChannel:
		writeDetail(w, http.StatusServiceUnavailable, "decision feed closed")
		return
	default:
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("failed to upgrade decision feed connection")
		return
	}
	defer conn.Close()

	// the HTTP server's read deadline still applies to the hijacked conn
	_ = conn.SetReadDeadline(time.Time{})

	client := &feedClient{conn: conn}
	if !f.addClient(client) {
		return
	}
	defer f.removeClient(client)

	log.Info().Str("remote", r.RemoteAddr).Msg("decision feed client connected")

	// hello tells the client it is registered
	if data, err := json.Marshal(FeedMessage{Type: "hello"}); err == nil {
		if err := client.write(data); err != nil {
			return
		}
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (f *Feed) clientBroadcaster() {
	defer close(f.done)
	for {
		select {
		case rec := <-f.broadcastChannel:
			f.broadcastToClients(rec)
		case <-f.stopChannel:
			return
		}
	}
}

func (f *Feed) broadcastToClients(rec scoring.DecisionRecord) {
	data, err := json.Marshal(FeedMessage{Type: "decision", Decision: &rec})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal decision for broadcast")
		return
	}

	f.clientsMu.RLock()
	clients := make([]*feedClient, 0, len(f.clients))
	for c := range f.clients {
		clients = append(clients, c)
	}
	f.clientsMu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			log.Debug().Err(err).Msg("dropping decision feed client")
			c.conn.Close()
			f.removeClient(c)
		}
	}
}

// addClient registers c unless the feed has been closed.
func (f *Feed) addClient(c *feedClient) bool {
	f.clientsMu.Lock()
	select {
	case <-f.stopChannel:
		f.clientsMu.Unlock()
		return false
	default:
	}
	f.clients[c] = struct{}{}
	n := len(f.clients)
	f.clientsMu.Unlock()
	f.reportClients(n)
	return true
}

func (f *Feed) removeClient(c *feedClient) {
	f.clientsMu.Lock()
	if _, ok := f.clients[c]; !ok {
		f.clientsMu.Unlock()
		return
	}
	delete(f.clients, c)
	n := len(f.clients)
	f.clientsMu.Unlock()
	f.reportClients(n)
}

func (f *Feed) reportClients(n int) {
	if f.recorder != nil {
		f.recorder.FeedClientsSet(n)
	}
}

package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/makeasinger/songprompt/internal/logger"
	"github.com/makeasinger/songprompt/internal/model"
)

const (
	sendBuffer   = 32
	pingInterval = 30 * time.Second
	replayTTL    = 10 * time.Minute
)

// Subscription receives the messages published for one job.
type Subscription struct {
	JobID string
	Send  chan []byte
}

type lastMessage struct {
	data []byte
	at   time.Time
}

// Hub fans job progress out to websocket subscribers. The latest message per
// job is kept for a while so a client that connects late still sees the outcome.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
	last map[string]lastMessage
	log  *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		subs: make(map[string]map[*Subscription]struct{}),
		last: make(map[string]lastMessage),
		log:  log,
	}
}

// Subscribe registers interest in jobID and replays its latest message.
func (h *Hub) Subscribe(jobID string) *Subscription {
	sub := &Subscription{JobID: jobID, Send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[*Subscription]struct{})
	}
	h.subs[jobID][sub] = struct{}{}
	if m, ok := h.last[jobID]; ok {
		sub.Send <- m.data
	}
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(sub)
}

func (h *Hub) drop(sub *Subscription) {
	subs, ok := h.subs[sub.JobID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.Send)
	if len(subs) == 0 {
		delete(h.subs, sub.JobID)
	}
}

// Subscribers returns the number of live subscriptions for jobID.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}

func (h *Hub) publish(jobID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal websocket message", "job_id", jobID, "error", err)
		return
	}

	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, m := range h.last {
		if now.Sub(m.at) > replayTTL {
			delete(h.last, id)
		}
	}
	h.last[jobID] = lastMessage{data: data, at: now}

	for sub := range h.subs[jobID] {
		select {
		case sub.Send <- data:
		default:
			// slow consumer
			h.drop(sub)
		}
	}
}

func (h *Hub) PublishProgress(jobID string, progress int, status model.JobStatus, step string) {
	h.publish(jobID, model.WSProgressMessage{
		Type:        model.WSMessageTypeProgress,
		JobID:       jobID,
		Progress:    progress,
		Status:      status,
		CurrentStep: step,
	})
}

func (h *Hub) PublishComplete(jobID string, result *model.GenerationResult) {
	h.publish(jobID, model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		JobID:  jobID,
		Result: result,
	})
}

func (h *Hub) PublishError(jobID, code, message string) {
	h.publish(jobID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{Code: code, Message: message},
	})
}

// Serve pumps messages for jobID to c until either side closes.
func (h *Hub) Serve(c *websocket.Conn, jobID string) {
	sub := h.Subscribe(jobID)
	defer h.Unsubscribe(sub)

	h.log.Debug("websocket subscribed", "job_id", jobID)

	// only the writer goroutine touches the connection for writes
	pongs := make(chan []byte, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case data, ok := <-sub.Send:
				if !ok {
					_ = c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case data := <-pongs:
				if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read failed", "job_id", jobID, "error", err)
			}
			break
		}

		var msg model.WSMessage
		if json.Unmarshal(raw, &msg) == nil && msg.Type == model.WSMessageTypePing {
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			select {
			case pongs <- pong:
			default:
			}
		}
	}

	h.Unsubscribe(sub)
	<-done
	h.log.Debug("websocket closed", "job_id", jobID)
}

package realtime

import (
	"encoding/json"
	"sync"
)

// Router tracks push sessions and the topics each one subscribed to, and fans an event
// out to every subscriber of its topic. A subject may hold several sessions (one per tab).
type Router struct {
	mu            sync.RWMutex
	sessions      map[string]*Connection            // sessionID -> connection
	topics        map[string]map[string]*Connection // topic -> sessionID -> connection
	sessionTopics map[string]map[string]struct{}    // sessionID -> topics
}

func NewRouter() *Router {
	return &Router{
		sessions:      make(map[string]*Connection),
		topics:        make(map[string]map[string]*Connection),
		sessionTopics: make(map[string]map[string]struct{}),
	}
}

// Attach registers conn and starts its writer.
func (r *Router) Attach(conn *Connection) {
	r.mu.Lock()
	r.sessions[conn.ID] = conn
	r.sessionTopics[conn.ID] = make(map[string]struct{})
	r.mu.Unlock()

	conn.Start()
}

// Detach drops conn and all of its subscriptions.
func (r *Router) Detach(conn *Connection) {
	r.mu.Lock()
	r.detachLocked(conn.ID)
	r.mu.Unlock()
}

// Subscribe adds conn to topic. Returns false when conn is not attached.
func (r *Router) Subscribe(topic string, conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[conn.ID]; !ok {
		return false
	}
	subs := r.topics[topic]
	if subs == nil {
		subs = make(map[string]*Connection)
		r.topics[topic] = subs
	}
	subs[conn.ID] = conn
	r.sessionTopics[conn.ID][topic] = struct{}{}
	return true
}

func (r *Router) Unsubscribe(topic string, conn *Connection) {
	r.mu.Lock()
	r.unsubscribeLocked(topic, conn.ID)
	r.mu.Unlock()
}

// Publish frames payload as an event on topic and delivers it to every subscriber.
// Returns the number of sessions the frame was queued for.
func (r *Router) Publish(topic string, payload []byte) int {
	frame, err := json.Marshal(Frame{Type: FrameEvent, Topic: topic, Payload: json.RawMessage(payload)})
	if err != nil {
		return 0
	}

	r.mu.RLock()
	subs := make([]*Connection, 0, len(r.topics[topic]))
	for _, conn := range r.topics[topic] {
		subs = append(subs, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range subs {
		if err := conn.Send(frame); err == nil {
			delivered++
		}
	}
	return delivered
}

// Subscribers reports how many sessions listen on topic.
func (r *Router) Subscribers(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

// Close terminates every tracked connection and clears state.
func (r *Router) Close() {
	r.mu.Lock()
	sessions := make([]*Connection, 0, len(r.sessions))
	for _, conn := range r.sessions {
		sessions = append(sessions, conn)
	}
	r.sessions = make(map[string]*Connection)
	r.topics = make(map[string]map[string]*Connection)
	r.sessionTopics = make(map[string]map[string]struct{})
	r.mu.Unlock()

	for _, conn := range sessions {
		conn.Close(1001, "router shutdown")
	}
}

func (r *Router) detachLocked(sessionID string) {
	if _, ok := r.sessions[sessionID]; !ok {
		return
	}
	delete(r.sessions, sessionID)
	for topic := range r.sessionTopics[sessionID] {
		r.unsubscribeLocked(topic, sessionID)
	}
	delete(r.sessionTopics, sessionID)
}

func (r *Router) unsubscribeLocked(topic, sessionID string) {
	subs := r.topics[topic]
	if subs == nil {
		return
	}
	delete(subs, sessionID)
	if len(subs) == 0 {
		delete(r.topics, topic)
	}
	if set, ok := r.sessionTopics[sessionID]; ok {
		delete(set, topic)
	}
}

package control

import (
	"encoding/json"
	"net/http"
)

// Server accepts control messages over HTTP and hands them to the single
// control channel, so messages from every connection are applied in order.
type Server struct {
	messages chan<- Envelope
}

// NewServer returns a server feeding messages. A Handler.Serve loop must be
// draining messages.
func NewServer(messages chan<- Envelope) *Server {
	return &Server{
		messages: messages,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /control", s.handleMessage)

	return mux
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeAck(w, http.StatusBadRequest, Ack{Error: "Bad Request: " + err.Error()})
		return
	}

	reply := make(chan Ack, 1)
	select {
	case s.messages <- Envelope{Message: msg, Reply: reply}:
	case <-r.Context().Done():
		return
	}

	var ack Ack
	select {
	case ack = <-reply:
	case <-r.Context().Done():
		return
	}

	status := http.StatusOK
	if !ack.Success {
		status = http.StatusBadRequest
	}
	writeAck(w, status, ack)
}

func writeAck(w http.ResponseWriter, status int, ack Ack) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ack)
}

package engine

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"pcapscope/internal/models"
)

// Client receives analysis messages. Implemented by the WebSocket handler.
type Client interface {
	SendMessage(msg models.WSMessage) error
}

// Server runs analyses on behalf of connected clients and broadcasts the
// decoded packets and the final result to all of them.
type Server struct {
	mu           sync.Mutex
	clients      map[Client]bool
	lastAnalysis *models.PcapAnalysis

	analyzer *Analyzer
	log      *zap.SugaredLogger
}

// NewServer creates a Server around the given analyzer.
func NewServer(analyzer *Analyzer, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		clients:  make(map[Client]bool),
		analyzer: analyzer,
		log:      log,
	}
}

// RegisterClient adds a client to receive broadcasts.
func (s *Server) RegisterClient(c Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = true
}

// UnregisterClient removes a client.
func (s *Server) UnregisterClient(c Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

// LastAnalysis returns the most recent result, or nil.
func (s *Server) LastAnalysis() *models.PcapAnalysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAnalysis
}

// AnalyzeFile runs the full pipeline on path, streams every decoded packet
// to connected clients, then broadcasts the assembled analysis. The result
// is also returned so HTTP handlers can respond with it directly.
func (s *Server) AnalyzeFile(path, displayName string) (*models.PcapAnalysis, error) {
	analysis, err := s.analyzer.Analyze(path)
	if err != nil {
		return nil, err
	}
	if displayName != "" {
		analysis.Filename = displayName
	}

	s.mu.Lock()
	s.lastAnalysis = analysis
	s.mu.Unlock()

	for i := range analysis.Packets {
		payload, _ := json.Marshal(&analysis.Packets[i])
		s.broadcast(models.WSMessage{Type: "packet", Payload: payload})
	}
	payload, _ := json.Marshal(analysis)
	s.broadcast(models.WSMessage{Type: "analysis", Payload: payload})

	s.log.Infow("broadcast analysis", "summary", Summary(analysis), "clients", len(s.clients))
	return analysis, nil
}

func (s *Server) broadcast(msg models.WSMessage) {
	s.mu.Lock()
	clients := make([]Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.SendMessage(msg)
	}
}

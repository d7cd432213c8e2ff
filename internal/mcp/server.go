package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"storyweave/internal/config"
	"storyweave/internal/engine"
	"storyweave/internal/store"
	"storyweave/internal/storyworld"
)

// maxSessions bounds the number of playthroughs held open at once.
const maxSessions = 64

type Server struct {
	source string
	data   []byte
	world  *storyworld.World
	cfg    *config.ProjectConfig
	db     store.Store
	logger *slog.Logger
	mcp    *sdk.Server

	mu       sync.Mutex
	sessions map[string]*session
	order    []string
}

type session struct {
	mu          sync.Mutex
	id          string
	playthrough *engine.Playthrough
}

// NewServer serves the storyworld document in data. db may be nil, in which
// case the report tools fail and rehearsals are not saved.
func NewServer(source string, data []byte, cfg *config.ProjectConfig, db store.Store, version string) (*Server, error) {
	w, err := storyworld.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading storyworld %s: %w", source, err)
	}
	if cfg == nil {
		def := config.Default("storyweave")
		cfg = &def
	}
	s := &Server{
		source:   source,
		data:     data,
		world:    w,
		cfg:      cfg,
		db:       db,
		logger:   slog.Default().With("component", "mcp"),
		sessions: make(map[string]*session),
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "storyweave",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}

func (s *Server) addSession(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) >= maxSessions {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.sessions, oldest)
	}
	s.sessions[sess.id] = sess
	s.order = append(s.order, sess.id)
}

func (s *Server) session(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Server) dropSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	for i, sid := range s.order {
		if sid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

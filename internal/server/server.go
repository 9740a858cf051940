package server

import (
	"math/rand"
	"net/http"
	"sync"
	"time"

	"song-sleuth/internal/config"

	"gorm.io/gorm"
)

type Server struct {
	store     *Store
	db        *gorm.DB
	ws        *wsHub
	cfg       config.Config
	rng       *rand.Rand
	catalogue *catalogueClient
	narrative *narrativeClient
	refiner   orderRefiner
	timersMu  sync.Mutex
	timers    map[string]*time.Timer
}

func New(conn *gorm.DB, cfg config.Config) *Server {
	narrative := newNarrativeClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	s := &Server{
		store:     NewStore(),
		db:        conn,
		ws:        newWSHub(),
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		catalogue: newCatalogueClient(cfg.CatalogueClientID, cfg.CatalogueClientSecret, time.Duration(cfg.CatalogueTokenTTLSeconds)*time.Second),
		narrative: narrative,
		timers:    make(map[string]*time.Timer),
	}
	if narrative.configured() {
		s.refiner = narrative
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	mux.HandleFunc("GET /api/rooms/", s.handleRoomSubroutes)
	mux.HandleFunc("POST /api/rooms/", s.handleRoomSubroutes)
	mux.HandleFunc("DELETE /api/rooms/", s.handleRoomSubroutes)
	mux.HandleFunc("GET /api/catalogue/search", s.handleCatalogueSearch)
	mux.HandleFunc("GET /ws/rooms/", s.handleWebsocket)
	return mux
}

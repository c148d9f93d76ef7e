package service

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/blocknet/src/comm"
	"github.com/mosaicnetworks/blocknet/src/intercom"
	"github.com/mosaicnetworks/blocknet/src/peers"
)

// DefaultStatsTimeout bounds the wait for the network tasks to answer a
// stats request.
const DefaultStatsTimeout = 5 * time.Second

// ViewProvider returns the current view of the network.
type ViewProvider interface {
	View() peers.View
}

// Service exposes the state of the node over HTTP.
type Service struct {
	sync.Mutex

	bindAddress  string
	netMsgs      chan<- intercom.NetworkMsg
	topology     ViewProvider
	gatherer     prometheus.Gatherer
	mux          *http.ServeMux
	statsTimeout time.Duration
	logger       *logrus.Entry
}

// NewService creates a Service. Stats requests are sent to the network tasks
// through netMsgs; metrics are read from gatherer.
func NewService(bindAddress string,
	netMsgs chan<- intercom.NetworkMsg,
	topology ViewProvider,
	gatherer prometheus.Gatherer,
	logger *logrus.Entry) *Service {

	service := Service{
		bindAddress:  bindAddress,
		netMsgs:      netMsgs,
		topology:     topology,
		gatherer:     gatherer,
		mux:          http.NewServeMux(),
		statsTimeout: DefaultStatsTimeout,
		logger:       logger,
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering blocknet API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/topology", s.makeHandler(s.GetTopology))
	s.mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the handler serving the API.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving blocknet API")

	err := http.ListenAndServe(s.bindAddress, s.mux)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats returns the connected peers.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	msg := intercom.NewPeerStats()

	timer := time.NewTimer(s.statsTimeout)
	defer timer.Stop()

	select {
	case s.netMsgs <- msg:
	case <-timer.C:
		http.Error(w, "network busy", http.StatusServiceUnavailable)
		return
	}

	var stats []comm.PeerStat
	select {
	case stats = <-msg.Reply():
	case <-timer.C:
		http.Error(w, "network busy", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetTopology returns the nodes known by the node.
func (s *Service) GetTopology(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.topology.View())
}

package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/frame"
	"github.com/MeKo-Tech/barscan/internal/results"
	"github.com/MeKo-Tech/barscan/internal/scan"
)

// scanner defines the methods needed by the server from a scan runner.
type scanner interface {
	Submit(ctx context.Context, f frame.Frame) scan.Outcome
	Results() <-chan results.Entry
	Log() *results.Log
	Dropped() int64
	Session() *scan.Session
}

// runnerScanner adapts *scan.Runner to scanner.
type runnerScanner struct {
	*scan.Runner
}

func (r runnerScanner) Session() *scan.Session { return r.Stage().Session() }

// Server holds the HTTP server state and dependencies.
type Server struct {
	scanner     scanner
	hub         *hub
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// OutcomeJSON is the wire form of a processed frame.
type OutcomeJSON struct {
	Kind        string          `json:"kind"`
	Display     string          `json:"display,omitempty"`
	Format      string          `json:"format,omitempty"`
	ContentType string          `json:"content_type,omitempty"`
	Text        string          `json:"text,omitempty"`
	Points      []barcode.Point `json:"points,omitempty"`
	SaveName    string          `json:"save_name,omitempty"`
}

type ScanResponse struct {
	Success   bool         `json:"success"`
	RequestID string       `json:"request_id,omitempty"`
	Outcome   *OutcomeJSON `json:"outcome,omitempty"`
	Error     string       `json:"error,omitempty"`
}

type ResultsResponse struct {
	Results  []results.Entry `json:"results"`
	Count    int             `json:"count"`
	Distinct int             `json:"distinct"`
	Dropped  int64           `json:"dropped"`
}

// OptionsJSON is the wire form of barcode.Options.
type OptionsJSON struct {
	Formats      []string `json:"formats"`
	TryHarder    bool     `json:"try_harder"`
	TryRotate    bool     `json:"try_rotate"`
	TryInvert    bool     `json:"try_invert"`
	TryDownscale bool     `json:"try_downscale"`
}

// SessionRequest changes session flags. Nil fields are left unchanged.
type SessionRequest struct {
	Paused *bool `json:"paused,omitempty"`
	Crop   *bool `json:"crop,omitempty"`
	Torch  *bool `json:"torch,omitempty"`
	Save   bool  `json:"save,omitempty"`
}

// NewServer creates a server on top of a scan runner. The caller owns the
// runner and decides whether its source loop runs.
func NewServer(config Config, runner *scan.Runner) *Server {
	return newServer(config, runnerScanner{runner})
}

func newServer(config Config, sc scanner) *Server {
	return &Server{
		scanner:     sc,
		hub:         newHub(),
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
	}
}

// Run broadcasts result entries to websocket clients until ctx is done or
// the result channel closes.
func (s *Server) Run(ctx context.Context) {
	s.hub.run(ctx, s.scanner.Results())
}

// Close disconnects all websocket clients.
func (s *Server) Close() error {
	s.hub.closeAll()
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/results", s.corsMiddleware(s.resultsHandler))
	mux.HandleFunc("/scan/image", s.corsMiddleware(s.scanImageHandler))
	mux.HandleFunc("/options", s.corsMiddleware(s.optionsHandler))
	mux.HandleFunc("/session", s.corsMiddleware(s.sessionHandler))
	mux.HandleFunc("/ws", s.resultsWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

func outcomeJSON(o scan.Outcome) *OutcomeJSON {
	out := &OutcomeJSON{
		Kind:     o.Kind.String(),
		Display:  o.Display,
		Points:   o.Points(),
		SaveName: o.SaveName,
	}
	if o.Result != nil {
		out.Format = o.Result.Format.String()
		out.ContentType = o.Result.ContentType.String()
		out.Text = o.Result.Text
	}
	return out
}

func optionsJSON(o barcode.Options) OptionsJSON {
	names := []string{}
	for _, f := range o.Formats.Formats() {
		names = append(names, f.String())
	}
	return OptionsJSON{
		Formats:      names,
		TryHarder:    o.TryHarder,
		TryRotate:    o.TryRotate,
		TryInvert:    o.TryInvert,
		TryDownscale: o.TryDownscale,
	}
}

func (o OptionsJSON) toOptions() (barcode.Options, error) {
	formats, err := barcode.ParseFormats(o.Formats)
	if err != nil {
		return barcode.Options{}, err
	}
	return barcode.Options{
		Formats:      formats,
		TryHarder:    o.TryHarder,
		TryRotate:    o.TryRotate,
		TryInvert:    o.TryInvert,
		TryDownscale: o.TryDownscale,
	}, nil
}

// apply updates s and reports the resulting state.
func (r SessionRequest) apply(s *scan.Session) scan.SessionState {
	if r.Paused != nil {
		s.SetPaused(*r.Paused)
	}
	if r.Crop != nil {
		s.SetCropEnabled(*r.Crop)
	}
	if r.Torch != nil {
		s.SetTorchEnabled(*r.Torch)
	}
	if r.Save {
		s.RequestSave()
	}
	return s.State()
}

// Package web serves the portfolio dashboard and SSE streams of valuation
// snapshots and band alerts.
package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/mpared/folio/internal/domain"
)

const streamPollInterval = 2 * time.Second

type snapshotReader interface {
	SnapshotsAfter(index uint64) ([]domain.SnapshotRecord, error)
}

type alertReader interface {
	AlertsAfter(index uint64) ([]domain.AlertRecord, error)
}

type zonePlanner interface {
	Plan(ctx context.Context, portfolio, asset string) (domain.ZonePlan, error)
}

type ledgerWriter interface {
	Append(tx domain.Transaction) (domain.Transaction, error)
}

type positionReader interface {
	Positions(portfolio string) (domain.Positions, error)
}

type zoneAdmin interface {
	Zones(portfolio string) ([]domain.Zone, error)
	SaveZones(portfolio string, zones []domain.Zone) error
	MarkZoneExecuted(portfolio, zoneID string) error
	Bands(portfolio string) ([]domain.BuyBand, error)
	SaveBands(portfolio string, bands []domain.BuyBand) error
	MarkBandExecuted(portfolio, bandID string) error
}

// Deps bundles the stores and services the server exposes.
type Deps struct {
	Snapshots snapshotReader
	Alerts    alertReader
	Planner   zonePlanner
	Ledger    ledgerWriter
	Positions positionReader
	Zones     zoneAdmin
}

// Server exposes the HTML dashboard, SSE streams over the snapshot and
// alert stores, and the JSON API for transactions, zones and planning.
type Server struct {
	addr   string
	deps   Deps
	logger *zap.Logger
}

func NewServer(addr string, deps Deps, logger *zap.Logger) *Server {
	return &Server{addr: addr, deps: deps, logger: logger}
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/snapshots/stream", s.handleSnapshotStream)
	mux.HandleFunc("/alerts/stream", s.handleAlertStream)
	mux.HandleFunc("/plan", s.handlePlan)
	mux.HandleFunc("/transactions", s.handleTransactions)
	mux.HandleFunc("/positions", s.handlePositions)
	mux.HandleFunc("/zones", s.handleZones)
	mux.HandleFunc("/zones/execute", s.handleZoneExecute)
	mux.HandleFunc("/bands", s.handleBands)
	mux.HandleFunc("/bands/execute", s.handleBandExecute)
	return mux
}

// Start runs the HTTP server and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs the dashboard over HTTPS with certificates obtained
// via ACME. A plain HTTP listener on port 80 answers HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return fmt.Errorf("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 5 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux(),
		ReadHeaderTimeout: 5 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		_ = httpsSrv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("acme challenge server failed", zap.Error(err))
		}
	}()

	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleSnapshotStream(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, "snapshot", func(lastIndex uint64) ([]sseEvent, error) {
		records, err := s.deps.Snapshots.SnapshotsAfter(lastIndex)
		if err != nil {
			return nil, err
		}
		events := make([]sseEvent, 0, len(records))
		for _, record := range records {
			events = append(events, sseEvent{index: record.Index, payload: record.Snapshot})
		}
		return events, nil
	})
}

func (s *Server) handleAlertStream(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, "alert", func(lastIndex uint64) ([]sseEvent, error) {
		records, err := s.deps.Alerts.AlertsAfter(lastIndex)
		if err != nil {
			return nil, err
		}
		events := make([]sseEvent, 0, len(records))
		for _, record := range records {
			events = append(events, sseEvent{index: record.Index, payload: record.Alert})
		}
		return events, nil
	})
}

// planResponse extends each computed zone with optional entry-point
// slices when ?parts= is given.
type planResponse struct {
	Plan        domain.ZonePlan                `json:"plan"`
	EntryPoints map[string][]domain.EntryPoint `json:"entry_points,omitempty"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	if s.deps.Planner == nil {
		http.Error(w, "planner not available", http.StatusServiceUnavailable)
		return
	}

	portfolio := r.URL.Query().Get("portfolio")
	asset := r.URL.Query().Get("asset")
	if portfolio == "" || asset == "" {
		http.Error(w, "portfolio and asset query params are required", http.StatusBadRequest)
		return
	}

	plan, err := s.deps.Planner.Plan(r.Context(), portfolio, asset)
	if err != nil {
		s.logger.Error("zone planning failed",
			zap.String("portfolio", portfolio),
			zap.String("asset", asset),
			zap.Error(err))
		http.Error(w, "planning failed", http.StatusInternalServerError)
		return
	}

	resp := planResponse{Plan: plan}
	if parts, err := strconv.Atoi(r.URL.Query().Get("parts")); err == nil && parts > 0 {
		resp.EntryPoints = make(map[string][]domain.EntryPoint)
		for _, zone := range plan.Zones {
			if points := domain.SplitEntryPoints(zone, parts); len(points) > 0 {
				resp.EntryPoints[zone.Zone.ID] = points
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("plan response encode failed", zap.Error(err))
	}
}

type sseEvent struct {
	index   uint64
	payload any
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, eventName string, fetch func(lastIndex uint64) ([]sseEvent, error)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// comment heartbeat keeps proxies from dropping idle connections
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(streamPollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	send := func() error {
		events, err := fetch(lastIndex)
		if err != nil {
			return err
		}
		for _, event := range events {
			payload, err := json.Marshal(event.payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: %s\n", eventName)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = event.index
		}
		return nil
	}

	if err := send(); err != nil {
		http.Error(w, "failed to load records", http.StatusInternalServerError)
		s.logger.Error("stream initial load failed", zap.String("stream", eventName), zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := send(); err != nil {
				s.logger.Warn("stream poll failed", zap.String("stream", eventName), zap.Error(err))
			}
		}
	}
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Folio</title>
  <style>
    :root { --bg:#ffffff; --ink:#111111; --mid:#4d4d4d; --panel:#f6f6f6; }
    * { box-sizing:border-box; }
    body {
      margin:0; padding:2rem;
      background:var(--bg); color:var(--ink);
      font-family:'Space Mono','JetBrains Mono',monospace;
    }
    #app {
      max-width:1100px; margin:0 auto;
      background:var(--panel); border:3px solid var(--ink);
      padding:2rem; box-shadow:10px 10px 0 rgba(0,0,0,.15);
      display:grid; grid-template-columns:1fr 340px; gap:2rem;
    }
    header { grid-column:1 / -1; display:flex; justify-content:space-between; align-items:center; }
    h1 { font-size:.9rem; text-transform:uppercase; letter-spacing:.2em; margin:0; }
    .status {
      font-size:.65rem; text-transform:uppercase; letter-spacing:.1em;
      border:2px solid var(--ink); padding:.4rem .9rem; background:#fff;
    }
    table { width:100%; border-collapse:collapse; background:#fff; border:2px solid var(--ink); }
    th, td { padding:.5rem .7rem; border-bottom:1px solid rgba(0,0,0,.12); font-size:.72rem; text-align:right; }
    th:first-child, td:first-child { text-align:left; }
    th { text-transform:uppercase; letter-spacing:.1em; font-size:.6rem; color:var(--mid); }
    .total {
      border:3px solid var(--ink); background:#fff; padding:1rem; margin-bottom:1rem;
    }
    .total .label { font-size:.6rem; text-transform:uppercase; letter-spacing:.2em; color:var(--mid); }
    .total .value { font-size:1.6rem; font-weight:700; margin-top:.5rem; }
    .pnl-pos { color:#1b9aaa; }
    .pnl-neg { color:#d7263d; }
    .alert-card {
      border:2px solid var(--ink); background:#fff; padding:.8rem; margin-bottom:.8rem;
      font-size:.68rem; line-height:1.5;
    }
    .alert-card .asset { font-weight:700; text-transform:uppercase; }
    .alert-card .time { color:var(--mid); font-size:.6rem; }
    .sidebar-title {
      font-size:.65rem; text-transform:uppercase; letter-spacing:.15em;
      border-bottom:2px solid var(--ink); padding-bottom:.6rem; margin:0 0 1rem;
    }
    .empty { color:var(--mid); font-size:.7rem; text-transform:uppercase; letter-spacing:.1em; }
    @media (max-width:760px) { #app { grid-template-columns:1fr; } }
  </style>
</head>
<body>
  <div id="app">
    <header>
      <h1>folio</h1>
      <div id="status" class="status">Connecting…</div>
    </header>
    <main>
      <div class="total">
        <div class="label">Total value</div>
        <div class="value" id="totalValue">—</div>
      </div>
      <table>
        <thead>
          <tr><th>Asset</th><th>Qty</th><th>Avg cost</th><th>Price</th><th>Value</th><th>PnL %</th></tr>
        </thead>
        <tbody id="positions">
          <tr><td colspan="6" class="empty">Waiting for snapshots…</td></tr>
        </tbody>
      </table>
    </main>
    <aside>
      <h3 class="sidebar-title">Buy alerts</h3>
      <div id="alerts"><div class="empty">No alerts yet</div></div>
    </aside>
  </div>
<script>
const statusEl = document.getElementById('status');
const totalEl = document.getElementById('totalValue');
const positionsEl = document.getElementById('positions');
const alertsEl = document.getElementById('alerts');
const MAX_ALERTS = 50;

const num = (v) => {
  const n = parseFloat(v);
  return Number.isFinite(n) ? n : 0;
};

function renderSnapshot(snap){
  totalEl.textContent = num(snap.value_usd).toFixed(2) + ' USD';
  const rows = (snap.positions || []).map((p) => {
    const pnl = num(p.pnl_pct);
    const cls = pnl >= 0 ? 'pnl-pos' : 'pnl-neg';
    return '<tr><td>' + p.asset + '</td>' +
      '<td>' + num(p.qty).toFixed(8) + '</td>' +
      '<td>' + num(p.avg_cost_usd).toFixed(2) + '</td>' +
      '<td>' + num(p.price_usd).toFixed(2) + '</td>' +
      '<td>' + num(p.value_usd).toFixed(2) + '</td>' +
      '<td class="' + cls + '">' + pnl.toFixed(2) + '%</td></tr>';
  });
  positionsEl.innerHTML = rows.length ? rows.join('') : '<tr><td colspan="6" class="empty">No positions</td></tr>';
}

function renderAlert(alert){
  const empty = alertsEl.querySelector('.empty');
  if(empty){ empty.remove(); }
  const card = document.createElement('div');
  card.className = 'alert-card';
  const when = alert.created_at ? new Date(alert.created_at).toLocaleTimeString([], { hour12:false }) : '';
  card.innerHTML = '<span class="asset">' + alert.asset + '</span> at ' +
    num(alert.price_usd).toFixed(2) + ' (target ' + num(alert.target_usd).toFixed(2) + ')' +
    '<div class="time">' + when + '</div>';
  alertsEl.insertBefore(card, alertsEl.firstChild);
  while(alertsEl.children.length > MAX_ALERTS){
    alertsEl.removeChild(alertsEl.lastChild);
  }
}

function connect(path, eventName, handler){
  const source = new EventSource(path);
  source.addEventListener(eventName, (event) => {
    try{ handler(JSON.parse(event.data)); }catch(err){ console.error('payload parse', err); }
    statusEl.textContent = 'Live';
  });
  source.addEventListener('error', () => {
    statusEl.textContent = 'Reconnecting…';
    source.close();
    setTimeout(() => connect(path, eventName, handler), 2000);
  });
}

connect('/snapshots/stream', 'snapshot', renderSnapshot);
connect('/alerts/stream', 'alert', renderAlert);
</script>
</body>
</html>`

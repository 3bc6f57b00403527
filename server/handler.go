package server

import (
	"embed"
	"encoding/json"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"interactived/governor"
)

//go:embed all:static
var staticFiles embed.FS

// TunablesSnapshot is the read/write surface of spec §6's tunables
// table, rendered into a form the HTTP layer can marshal and parse.
type TunablesSnapshot struct {
	HispeedFreq       uint32 `json:"hispeed_freq"`
	GoHispeedLoad     uint32 `json:"go_hispeed_load"`
	MinSampleTimeMS   int64  `json:"min_sample_time_ms"`
	TimerRateMS       int64  `json:"timer_rate_ms"`
	AboveHispeedDelay int64  `json:"above_hispeed_delay_ms"`
	TargetLoads       string `json:"target_loads"`
}

func tunablesOf(p *governor.TuningProfile) TunablesSnapshot {
	return TunablesSnapshot{
		HispeedFreq:       p.HispeedFreq(),
		GoHispeedLoad:     p.GoHispeedLoad(),
		MinSampleTimeMS:   p.MinSampleTime().Milliseconds(),
		TimerRateMS:       p.TimerRate().Milliseconds(),
		AboveHispeedDelay: p.AboveHispeedDelay().Milliseconds(),
		TargetLoads:       governor.FormatTargetLoads(p.TargetLoads()),
	}
}

// Snapshot is the full governor status payload the dashboard and /api
// callers see: one entry per core plus the cluster-wide coupling
// signals and tunables.
type Snapshot struct {
	Cores       []governor.CoreSnapshot `json:"cores"`
	OnlineCount int                     `json:"online_count"`
	GPUIdle     bool                    `json:"gpu_idle"`
	Busy        TunablesSnapshot        `json:"busy"`
	Idle        TunablesSnapshot        `json:"idle"`
	Boost       TunablesSnapshot        `json:"boost"`
	Timestamp   int64                   `json:"timestamp"`
	ClientCount int                     `json:"client_count"`
}

var (
	cachedSnapshot     *Snapshot
	cachedSnapshotJSON []byte
	lastSnapshotTime   time.Time
	snapshotMu         sync.Mutex
)

// CollectSnapshot reads a consistent point-in-time view of every core
// plus the cluster-wide signals.
func CollectSnapshot(ctrl *governor.ControllerContext) *Snapshot {
	cpus := ctrl.AllCPUs()
	cores := make([]governor.CoreSnapshot, 0, len(cpus))
	for _, cpu := range cpus {
		core, ok := ctrl.Cores[cpu]
		if !ok {
			continue
		}
		cores = append(cores, core.Snapshot())
	}

	snap := &Snapshot{
		Cores:       cores,
		OnlineCount: len(ctrl.OnlineCPUs()),
		GPUIdle:     ctrl.GPUIdle(),
		Busy:        tunablesOf(ctrl.Busy),
		Idle:        tunablesOf(ctrl.Idle),
		Boost:       tunablesOf(ctrl.Boost),
		Timestamp:   time.Now().UnixMilli(),
	}
	return snap
}

func getCachedSnapshotJSON(ctrl *governor.ControllerContext, clientCount int) []byte {
	snapshotMu.Lock()
	if time.Since(lastSnapshotTime) < 200*time.Millisecond && cachedSnapshotJSON != nil {
		data := cachedSnapshotJSON
		snapshotMu.Unlock()
		return data
	}
	snapshotMu.Unlock()

	snap := CollectSnapshot(ctrl)
	snap.ClientCount = clientCount
	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("snapshot marshal error: %v", err)
		return nil
	}

	snapshotMu.Lock()
	cachedSnapshot = snap
	cachedSnapshotJSON = data
	lastSnapshotTime = time.Now()
	snapshotMu.Unlock()

	return data
}

func safeGo(wg *sync.WaitGroup, fn func()) {
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("panic in background task: %v", r)
			}
		}()
		fn()
	}()
}

func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC in HTTP handler: %v", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error": "Internal Server Error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// handleMetrics serves the cached governor snapshot.
func handleMetrics(ctrl *governor.ControllerContext, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		data := getCachedSnapshotJSON(ctrl, hub.ClientCount())
		if data == nil {
			http.Error(w, "failed to collect snapshot", http.StatusInternalServerError)
			return
		}
		w.Write(data)
	}
}

// handleTunable implements GET/PUT /api/tunables/{busy,idle,boost} (spec
// §6's tunables surface plus the daemon's error handling addition: a
// malformed write returns 400 rather than silently clamping).
func handleTunable(ctrl *governor.ControllerContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/api/tunables/")
		var profile *governor.TuningProfile
		switch name {
		case "busy":
			profile = ctrl.Busy
		case "idle":
			profile = ctrl.Idle
		case "boost":
			profile = ctrl.Boost
		default:
			http.Error(w, "unknown tunable profile", http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(tunablesOf(profile))
		case http.MethodPut:
			var body TunablesSnapshot
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			loads, err := governor.ParseTargetLoads(body.TargetLoads)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			profile.SetHispeedFreq(body.HispeedFreq)
			profile.SetGoHispeedLoad(body.GoHispeedLoad)
			profile.SetMinSampleTime(time.Duration(body.MinSampleTimeMS) * time.Millisecond)
			profile.SetTimerRate(time.Duration(body.TimerRateMS) * time.Millisecond)
			profile.SetAboveHispeedDelay(time.Duration(body.AboveHispeedDelay) * time.Millisecond)
			profile.SetTargetLoads(loads)
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// handleBoostpulse implements POST /api/boostpulse.
func handleBoostpulse(ctrl *governor.ControllerContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctrl.BoostPulse()
		w.WriteHeader(http.StatusOK)
	}
}

// handleLimits implements PUT /api/policies/{id}/limits.
func handleLimits(ctrl *governor.ControllerContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		idStr := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/policies/"), "/limits")
		id, err := strconv.Atoi(idStr)
		if err != nil {
			http.Error(w, "invalid policy id", http.StatusBadRequest)
			return
		}
		var body struct {
			Min uint32 `json:"min"`
			Max uint32 `json:"max"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Min > body.Max {
			http.Error(w, "invalid limits", http.StatusBadRequest)
			return
		}
		if err := ctrl.Limits(id, body.Min, body.Max); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"simulate": GlobalConfig.Governor.Simulate,
	})
}

// NewRouter wires the dashboard, telemetry websocket, console websocket,
// and tunables API behind bcrypt/session auth (spec §7's error handling
// surface stays split: auth failures are 401/403 at this layer,
// tunable-validation failures are 400 inside handleTunable).
func NewRouter(ctrl *governor.ControllerContext, hub *Hub) http.Handler {
	protected := http.NewServeMux()

	protected.HandleFunc("/api/metrics", handleMetrics(ctrl, hub))
	protected.HandleFunc("/api/tunables/", handleTunable(ctrl))
	protected.HandleFunc("/api/boostpulse", handleBoostpulse(ctrl))
	protected.HandleFunc("/api/policies/", handleLimits(ctrl))
	protected.HandleFunc("/api/config", handleConfig)

	protected.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	})

	protected.HandleFunc("/ws/console", func(w http.ResponseWriter, r *http.Request) {
		ServeConsole(ctrl, w, r)
	})

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("failed to create sub filesystem: %v", err)
	}
	protected.Handle("/", http.FileServer(http.FS(staticFS)))

	root := http.NewServeMux()
	root.HandleFunc("/api/login", handleLogin)
	root.HandleFunc("/api/logout", handleLogout)
	root.HandleFunc("/api/auth/check", handleAuthCheck)
	root.Handle("/", AuthMiddleware(protected))

	return RecoveryMiddleware(root)
}

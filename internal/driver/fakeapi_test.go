package driver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/FairForge/sensorbench/internal/generator"
)

// fakeAPI is an in-process stand-in for the ingestion API. With broken set
// it answers every endpoint in a way the validators must reject. With
// noEscalation set it raises alerts but never bumps priority to 1.
type fakeAPI struct {
	broken       bool
	noEscalation bool
	delay        time.Duration
	requests     atomic.Int64
}

func newFakeServer(t *testing.T, api *fakeAPI) *httptest.Server {
	t.Helper()

	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			api.requests.Add(1)
			if api.delay > 0 {
				time.Sleep(api.delay)
			}
			w.Header().Set("Content-Type", "application/json")
			next.ServeHTTP(w, req)
		})
	})
	r.HandleFunc(PathHealth, api.health).Methods(http.MethodGet)
	r.HandleFunc(PathStats, api.stats).Methods(http.MethodGet)
	r.HandleFunc(PathSensorData, api.sensorData).Methods(http.MethodPost)
	r.HandleFunc(PathSensorRW, api.sensorRW).Methods(http.MethodPost)
	r.HandleFunc(PathBatch, api.batch).Methods(http.MethodPost)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *fakeAPI) health(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	if a.broken {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

func (a *fakeAPI) stats(w http.ResponseWriter, _ *http.Request) {
	if a.broken {
		writeJSON(w, http.StatusOK, map[string]any{"total_records": -1, "recent_24h_count": 3})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_records":    42,
		"priority_stats":   map[string]int{"1": 10, "2": 20, "3": 12},
		"recent_24h_count": 42,
	})
}

func (a *fakeAPI) sensorData(w http.ResponseWriter, req *http.Request) {
	var rec generator.SensorRecord
	if err := json.NewDecoder(req.Body).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": err.Error()})
		return
	}
	if a.broken {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": "db down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "id": a.requests.Load()})
}

func (a *fakeAPI) rwResult(rec generator.SensorRWRecord) map[string]any {
	out := map[string]any{
		"status":    "success",
		"device_id": rec.DeviceID,
		"new_value": rec.NewValue,
		"priority":  rec.Priority,
	}
	if rec.NewValue > 100 && !a.broken {
		out["alert"] = fmt.Sprintf("High value alert: %.2f", rec.NewValue)
		if !a.noEscalation {
			out["priority"] = 1
		}
	}
	return out
}

func (a *fakeAPI) sensorRW(w http.ResponseWriter, req *http.Request) {
	var rec generator.SensorRWRecord
	if err := json.NewDecoder(req.Body).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, a.rwResult(rec))
}

func (a *fakeAPI) batch(w http.ResponseWriter, req *http.Request) {
	var rec generator.BatchRecord
	if err := json.NewDecoder(req.Body).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": err.Error()})
		return
	}

	results := make([]map[string]any, 0, len(rec.Data))
	alerts := 0
	for _, item := range rec.Data {
		r := a.rwResult(item)
		if _, ok := r["alert"]; ok {
			alerts++
		}
		results = append(results, r)
	}

	processed := len(results)
	if a.broken {
		processed--
		results = results[:processed]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "success",
		"total_processed": processed,
		"results":         results,
		"total_alerts":    alerts,
	})
}

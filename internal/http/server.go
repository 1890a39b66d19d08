package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/doubleencore/MPA-Horatio/internal/log"
	"github.com/doubleencore/MPA-Horatio/pkg/scheduler"
	"github.com/doubleencore/MPA-Horatio/pkg/task"
)

// StartServer exposes the status surface: queue occupancy, coordinator
// state and pause/resume control. It sits outside the task core.
func StartServer(port string, q *task.Queue, coord *scheduler.Coordinator) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/tasks", TasksHandler(q))
	mux.HandleFunc("/scheduler", SchedulerHandler(coord))

	log.GetLogger().Infof("Starting Horatio status server on :%s", port)
	return http.ListenAndServe(":"+port, mux)
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Horatio is running")
}

// TasksHandler serves the queue's occupancy snapshot as JSON.
func TasksHandler(q *task.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(q.Stats()); err != nil {
			log.GetLogger().Errorf("Failed to encode queue stats: %v", err)
		}
	}
}

// SchedulerHandler reports coordinator state on GET and accepts
// action=pause|resume|tick on POST.
func SchedulerHandler(coord *scheduler.Coordinator) http.HandlerFunc {
	type status struct {
		Active    bool     `json:"active"`
		Providers []string `json:"providers"`
	}
	writeStatus := func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		s := status{Active: coord.Active(), Providers: coord.ProviderIdentifiers()}
		if err := json.NewEncoder(w).Encode(s); err != nil {
			log.GetLogger().Errorf("Failed to encode scheduler status: %v", err)
		}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeStatus(w)
		case http.MethodPost:
			switch action := r.FormValue("action"); action {
			case "pause":
				coord.Pause()
			case "resume":
				coord.Resume()
			case "tick":
				coord.ScheduleTasks()
			default:
				http.Error(w, fmt.Sprintf("Unknown action %q", action), http.StatusBadRequest)
				return
			}
			writeStatus(w)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

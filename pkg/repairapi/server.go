// Package repairapi exposes the repair coordinator over HTTP, mirroring
// the teacher's mux-based admin surface: one router, one logging
// middleware, one JSON error convention.
package repairapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/dbrepair/dbrepair/pkg/domain"
	"github.com/dbrepair/dbrepair/pkg/opctx"
	"github.com/dbrepair/dbrepair/pkg/repair"
)

// Server holds the router and the coordinator it drives.
type Server struct {
	router      *mux.Router
	coordinator *repair.Coordinator
}

// NewServer builds a Server whose sole collaborator is coordinator.
func NewServer(coordinator *repair.Coordinator) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		coordinator: coordinator,
	}
	s.routes()
	s.router.Use(requestLoggerMiddleware)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("WARN: No route found for %s %s", r.Method, r.URL.Path)
		http.NotFound(w, r)
	})
	return s
}

// requestLoggerMiddleware logs the method, URL path, and duration for each request.
func requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		elapsed := time.Since(start)
		log.Printf("INFO: Request %s %s took %s", r.Method, r.URL.Path, elapsed)
	})
}

// Router exposes the internal mux.Router.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.HandleFunc("/repair/{db}", s.handleRepair).Methods("POST")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// repairResponse is the JSON body returned on a successful repair.
type repairResponse struct {
	Database string `json:"database"`
	Status   string `json:"status"`
}

// repairErrorResponse is the JSON body returned on failure.
type repairErrorResponse struct {
	Error string `json:"error"`
}

// handleRepair drives one Coordinator.Repair call for the {db} path
// variable. Query parameters "preserve" and "backup" map onto
// repair.Options the same way; either defaults to false when absent
// or unparsable.
func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	dbName := vars["db"]

	opts := repair.Options{
		PreserveClonedFilesOnFailure: boolQuery(r, "preserve"),
		BackupOriginalFiles:          boolQuery(r, "backup"),
	}

	log.Printf("INFO: handleRepair called for database '%s' (preserve=%v backup=%v)",
		dbName, opts.PreserveClonedFilesOnFailure, opts.BackupOriginalFiles)

	opCtx := opctx.New(dbName, s.coordinator.DBPath)
	if err := s.coordinator.Repair(opCtx, dbName, opts); err != nil {
		log.Printf("ERROR: repair failed for database '%s': %v", dbName, err)
		writeJSON(w, statusForRepairError(err), repairErrorResponse{Error: err.Error()})
		return
	}

	log.Printf("INFO: repair succeeded for database '%s'", dbName)
	writeJSON(w, http.StatusOK, repairResponse{Database: dbName, Status: "repaired"})
}

// statusForRepairError maps a repair error onto the HTTP status an
// operator-facing admin endpoint should report, distinguishing client
// mistakes (bad database name, already running) from server-side
// resource exhaustion.
func statusForRepairError(err error) int {
	switch {
	case errors.Is(err, domain.ErrNamespaceNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRepairInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrOutOfDiskSpace):
		return http.StatusInsufficientStorage
	case errors.Is(err, domain.ErrInterrupted):
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

func boolQuery(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	if err != nil {
		return false
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

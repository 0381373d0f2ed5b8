package ghostrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type ControlServerTableStatus struct {
	Name           string
	Columns        []string `json:",omitempty"`
	HasCondition   bool
	ForbiddenTypes []string `json:",omitempty"`
	Action         string
}

type ControlServerSchemaStatus struct {
	Name       string
	ActionKind string
	Tables     []*ControlServerTableStatus
}

type ControlServerStatus struct {
	Version     string
	Generation  string
	InstalledAt time.Time
	CurrentTime time.Time

	BinlogFile string
	BinlogPos  uint32
	Paused     bool

	Dispatch DispatchStats
	Schemas  []*ControlServerSchemaStatus
}

type ControlServer struct {
	Routes     *RouteTable
	Dispatcher *Dispatcher
	Streamer   *BinlogStreamer
	Throttler  Throttler
	Addr       string

	server *http.Server
	logger *logrus.Entry
	router *mux.Router
}

func (this *ControlServer) Initialize() error {
	this.logger = logrus.WithField("tag", "control_server")
	this.logger.Info("initializing")

	this.router = mux.NewRouter()
	this.router.HandleFunc("/api/status", this.HandleStatus).Methods("GET")
	this.router.HandleFunc("/api/tables/{schema}/{table}", this.HandleTable).Methods("GET")
	this.router.HandleFunc("/api/actions/reload", this.HandleReload).Methods("POST")
	this.router.HandleFunc("/api/actions/pause", this.HandlePause).Methods("POST")
	this.router.HandleFunc("/api/actions/unpause", this.HandleUnpause).Methods("POST")

	this.server = &http.Server{
		Addr:    this.Addr,
		Handler: this,
	}

	return nil
}

func (this *ControlServer) Run(wg *sync.WaitGroup) {
	defer wg.Done()

	this.logger.Infof("running on %s", this.Addr)
	err := this.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logrus.WithError(err).Error("error on ListenAndServe")
	}
}

func (this *ControlServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return this.server.Shutdown(ctx)
}

func (this *ControlServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	this.router.ServeHTTP(w, r)

	this.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.RequestURI,
		"time":   time.Since(start),
	}).Info("served http request")
}

func (this *ControlServer) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := this.fetchStatus()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (this *ControlServer) HandleTable(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	index, err := this.Routes.Index()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	table, found := index.Resolve(vars["schema"], vars["table"])
	if !found {
		http.Error(w, "no binding for "+vars["schema"]+"."+vars["table"], http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, tableStatus(table))
}

func (this *ControlServer) HandleReload(w http.ResponseWriter, r *http.Request) {
	index, err := this.Routes.Reload()
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	generation, _ := this.Routes.Generation()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"Generation": generation.ID,
		"Schemas":    index.Len(),
	})
}

func (this *ControlServer) HandlePause(w http.ResponseWriter, r *http.Request) {
	this.setPaused(w, true)
}

func (this *ControlServer) HandleUnpause(w http.ResponseWriter, r *http.Request) {
	this.setPaused(w, false)
}

func (this *ControlServer) setPaused(w http.ResponseWriter, paused bool) {
	if this.Throttler == nil {
		http.Error(w, "pausing is not supported", http.StatusNotImplemented)
		return
	}

	this.Throttler.SetPaused(paused)
	writeJSON(w, http.StatusOK, map[string]bool{"Paused": paused})
}

func (this *ControlServer) fetchStatus() (*ControlServerStatus, error) {
	index, err := this.Routes.Index()
	if err != nil {
		return nil, err
	}

	status := &ControlServerStatus{Version: VersionString, CurrentTime: time.Now()}

	if generation, ok := this.Routes.Generation(); ok {
		status.Generation = generation.ID
		status.InstalledAt = generation.InstalledAt
	}

	if this.Dispatcher != nil {
		status.Dispatch = this.Dispatcher.Stats()
	}

	if this.Throttler != nil {
		status.Paused = this.Throttler.Throttled()
	}

	if this.Streamer != nil {
		pos := this.Streamer.GetLastStreamedBinlogPosition()
		status.BinlogFile = pos.Name
		status.BinlogPos = pos.Pos
	}

	for _, schema := range index.Schemas() {
		schemaStatus := &ControlServerSchemaStatus{
			Name:       schema.Name(),
			ActionKind: schema.ActionKind().String(),
		}
		for _, table := range schema.Tables() {
			schemaStatus.Tables = append(schemaStatus.Tables, tableStatus(table))
		}
		status.Schemas = append(status.Schemas, schemaStatus)
	}

	return status, nil
}

func tableStatus(table *Table) *ControlServerTableStatus {
	status := &ControlServerTableStatus{
		Name:         table.Name(),
		Columns:      table.Columns(),
		HasCondition: table.Condition() != nil,
		Action:       table.Action().String(),
	}

	for _, eventType := range table.ForbiddenMask().Types() {
		status.ForbiddenTypes = append(status.ForbiddenTypes, eventType.String())
	}

	return status
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"io/ioutil"
	stdlog "log"
	"net/http"
	"strings"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mastercactapus/cncdrill/calib"
	"github.com/mastercactapus/cncdrill/coord"
	"github.com/mastercactapus/cncdrill/job"
	"github.com/mastercactapus/cncdrill/machine"
	"github.com/mastercactapus/cncdrill/sequence"
	"github.com/mastercactapus/cncdrill/tour"
	"github.com/pkg/errors"
)

type api struct {
	http.Handler
	st   *station
	sse  *sse.Server
	data *dataStore

	events chan sequence.Event
	unsub  func()
	done   chan struct{}
}

type stateResponse struct {
	Device   machine.State     `json:"device"`
	Location coord.Point       `json:"location"`
	Run      sequence.RunState `json:"run"`
	Last     *sequence.Outcome `json:"last,omitempty"`
}

func newAPI(st *station, dataDir string) *api {
	r := mux.NewRouter()
	a := &api{
		Handler: r,
		st:      st,
		sse: sse.NewServer(&sse.Options{
			Logger: stdlog.New(ioutil.Discard, "", 0),
		}),
		data:   newDataStore(dataDir),
		events: make(chan sequence.Event, 256),
		done:   make(chan struct{}),
	}

	r.HandleFunc("/api/state", a.getState).Methods("GET")
	r.HandleFunc("/api/job", a.getJob).Methods("GET")
	r.HandleFunc("/api/job", a.loadJob).Methods("POST")
	r.HandleFunc("/api/job/offset", a.offsetJob).Methods("POST")
	r.HandleFunc("/api/job/reset", a.resetJob).Methods("POST")
	r.HandleFunc("/api/optimize", a.optimize).Methods("POST")
	r.HandleFunc("/api/targets/{id}/status", a.setStatus).Methods("PUT")
	r.HandleFunc("/api/targets/{id}/select", a.selectTarget).Methods("POST")

	r.HandleFunc("/api/home", a.home).Methods("POST")
	r.HandleFunc("/api/drill-all", a.drillAll).Methods("POST")
	r.HandleFunc("/api/drill/{id}", a.drill).Methods("POST")
	r.HandleFunc("/api/move", a.move).Methods("POST")
	r.HandleFunc("/api/zero", a.zero).Methods("POST")
	r.HandleFunc("/api/jog", a.jog).Methods("POST")
	r.HandleFunc("/api/drivers", a.setDrivers).Methods("PUT")
	r.HandleFunc("/api/cycle-drill", a.setCycleDrill).Methods("PUT")
	r.HandleFunc("/api/backlash", a.setBacklash).Methods("PUT")
	r.HandleFunc("/api/calibration/{axis}", a.setCalibration).Methods("PUT")
	r.HandleFunc("/api/cancel", a.cancel).Methods("POST")
	r.HandleFunc("/api/stop", a.stop).Methods("POST")

	r.PathPrefix("/events/").Handler(a.sse)
	r.PathPrefix("/data/").Handler(http.StripPrefix("/data", a.data))

	a.unsub = st.engine.Subscribe(func(ev sequence.Event) {
		select {
		case a.events <- ev:
		default:
			log.WithField("kind", ev.Kind).Warn("event dropped")
		}
	})
	go a.relay()

	return a
}

// relay forwards engine events and device states to the event stream.
func (a *api) relay() {
	send := func(channel string, v interface{}) {
		data, err := json.Marshal(v)
		if err != nil {
			log.WithError(err).Error("marshal event")
			return
		}
		a.sse.SendMessage(channel, sse.SimpleMessage(string(data)))
	}
	for {
		select {
		case <-a.done:
			return
		case ev := <-a.events:
			send("/events/run", ev)
		case state := <-a.st.states:
			send("/events/state", state)
		}
	}
}

func (a *api) Close() {
	a.unsub()
	close(a.done)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sequence.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, sequence.ErrNotReady), errors.Is(err, sequence.ErrNoTargets):
		return http.StatusPreconditionFailed
	case errors.Is(err, job.ErrUnknownTarget):
		return http.StatusNotFound
	case errors.Is(err, job.ErrNotPermutation), errors.Is(err, calib.ErrBadScale):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (a *api) fail(w http.ResponseWriter, req *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.WithError(err).WithField("path", req.URL.Path).Error("request")
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		log.WithError(err).Error("encode")
	}
}

func readJSON(w http.ResponseWriter, req *http.Request, v interface{}) bool {
	err := json.NewDecoder(req.Body).Decode(v)
	if err != nil && err != io.EOF {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func targetID(w http.ResponseWriter, req *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(req)["id"])
	if err != nil {
		http.Error(w, "invalid target id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (a *api) getState(w http.ResponseWriter, req *http.Request) {
	res := stateResponse{
		Device:   a.st.ctl.State(),
		Location: a.st.ctl.CurrentLocation(),
		Run:      a.st.engine.State(),
	}
	if last := a.st.engine.Last(); last.Name != "" {
		res.Last = &last
	}
	writeJSON(w, res)
}

func (a *api) getJob(w http.ResponseWriter, req *http.Request) {
	tgs, err := a.st.engine.Targets()
	if err != nil {
		a.fail(w, req, err)
		return
	}
	writeJSON(w, tgs)
}

// loadJob replaces the job with the holes of the uploaded drawing. The
// format comes from the name parameter's extension, G-code if absent.
// loadJob replaces the job with an uploaded drawing, keeping a copy in the
// data store under name. With file set it loads a stored drawing instead.
func (a *api) loadJob(w http.ResponseWriter, req *http.Request) {
	if file := req.FormValue("file"); file != "" {
		a.loadStored(w, req, file)
		return
	}

	name := req.FormValue("name")
	data, err := ioutil.ReadAll(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d, err := readDrawing(name, bytes.NewReader(data))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.st.engine.Load(d.Points); err != nil {
		a.fail(w, req, err)
		return
	}
	if name != "" {
		if err := a.data.put(name, bytes.NewReader(data)); err != nil {
			log.WithError(err).WithField("name", name).Warn("keep drawing")
		}
	}
	writeJSON(w, d)
}

func (a *api) loadStored(w http.ResponseWriter, req *http.Request, file string) {
	f, err := a.data.open(file)
	if err != nil {
		storeError(w, req, err)
		return
	}
	defer f.Close()

	d, err := readDrawing(file, f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.st.engine.Load(d.Points); err != nil {
		a.fail(w, req, err)
		return
	}
	writeJSON(w, d)
}

type offsetRequest struct {
	coord.Point
	// Snap rounds the new origin to a grid of this size, in inches.
	Snap float64
}

// offsetJob makes the given drawing point the new job origin.
func (a *api) offsetJob(w http.ResponseWriter, req *http.Request) {
	var o offsetRequest
	if !readJSON(w, req, &o) {
		return
	}
	if err := a.st.engine.Offset(o.Point.Snap(o.Snap)); err != nil {
		a.fail(w, req, err)
		return
	}
	a.getJob(w, req)
}

func (a *api) resetJob(w http.ResponseWriter, req *http.Request) {
	if err := a.st.engine.Reset(); err != nil {
		a.fail(w, req, err)
		return
	}
	a.getJob(w, req)
}

// optimize reorders the job along the best tour from the current location.
func (a *api) optimize(w http.ResponseWriter, req *http.Request) {
	var opts tour.Options
	if !readJSON(w, req, &opts) {
		return
	}
	tgs, err := a.st.engine.Targets()
	if err != nil {
		a.fail(w, req, err)
		return
	}

	res := tour.Optimize(a.st.ctl.CurrentLocation(), tgs, opts)
	if res.Improved {
		// statuses may have changed since the snapshot, but ids have not
		if err := a.st.engine.Reorder(res.Best.IDs()); err != nil {
			a.fail(w, req, err)
			return
		}
	}
	writeJSON(w, res)
}

func (a *api) setStatus(w http.ResponseWriter, req *http.Request) {
	id, ok := targetID(w, req)
	if !ok {
		return
	}
	data, err := ioutil.ReadAll(req.Body)
	if err != nil {
		return
	}
	s, err := job.ParseStatus(strings.Trim(strings.TrimSpace(string(data)), `"`))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tg, err := a.st.engine.SetStatus(id, s)
	if err != nil {
		a.fail(w, req, err)
		return
	}
	writeJSON(w, tg)
}

func (a *api) selectTarget(w http.ResponseWriter, req *http.Request) {
	id, ok := targetID(w, req)
	if !ok {
		return
	}
	tg, err := a.st.engine.Select(id)
	if err != nil {
		a.fail(w, req, err)
		return
	}
	writeJSON(w, tg)
}

func (a *api) start(w http.ResponseWriter, req *http.Request, p sequence.Procedure) {
	err := a.st.engine.Start(p, nil)
	if err != nil {
		a.fail(w, req, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *api) home(w http.ResponseWriter, req *http.Request) {
	a.start(w, req, sequence.Home(settings.HomingOptions()))
}

func (a *api) drillAll(w http.ResponseWriter, req *http.Request) {
	a.start(w, req, sequence.DrillAll(settings.DrillOptions()))
}

func (a *api) drill(w http.ResponseWriter, req *http.Request) {
	id, ok := targetID(w, req)
	if !ok {
		return
	}
	a.start(w, req, sequence.DrillTarget(id, settings.DrillOptions()))
}

func (a *api) move(w http.ResponseWriter, req *http.Request) {
	var p coord.Point
	if !readJSON(w, req, &p) {
		return
	}
	a.start(w, req, sequence.MoveTo(p))
}

type zeroRequest struct {
	// Axis is "x", "y" or empty for both.
	Axis  string  `json:"axis"`
	Value float64 `json:"value"`
}

func (a *api) zero(w http.ResponseWriter, req *http.Request) {
	var z zeroRequest
	if !readJSON(w, req, &z) {
		return
	}

	axes := []machine.Axis{machine.X, machine.Y}
	if z.Axis != "" {
		ax, ok := parseAxis(w, z.Axis)
		if !ok {
			return
		}
		axes = []machine.Axis{ax}
	}
	for _, ax := range axes {
		if err := a.st.engine.Zero(ax, z.Value); err != nil {
			a.fail(w, req, err)
			return
		}
	}
	a.getState(w, req)
}

func (a *api) cancel(w http.ResponseWriter, req *http.Request) {
	a.st.engine.Cancel()
	w.WriteHeader(http.StatusAccepted)
}

func (a *api) stop(w http.ResponseWriter, req *http.Request) {
	a.st.engine.Abort()
	w.WriteHeader(http.StatusAccepted)
}

package main

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/mastercactapus/cncdrill/calib"
	"github.com/mastercactapus/cncdrill/machine"
	"github.com/mastercactapus/cncdrill/sequence"
)

func parseAxis(w http.ResponseWriter, name string) (machine.Axis, bool) {
	switch strings.ToLower(name) {
	case "x":
		return machine.X, true
	case "y":
		return machine.Y, true
	}
	http.Error(w, "unknown axis '"+name+"'", http.StatusBadRequest)
	return 0, false
}

// applied sends a changed output to the device and replies with the new state.
func (a *api) applied(w http.ResponseWriter, req *http.Request, err error) {
	if err != nil {
		a.fail(w, req, err)
		return
	}
	a.st.engine.Poll()
	a.getState(w, req)
}

type jogRequest struct {
	// steps per axis; the sign is the direction
	X int `json:"x"`
	Y int `json:"y"`
}

func (a *api) jog(w http.ResponseWriter, req *http.Request) {
	var j jogRequest
	if !readJSON(w, req, &j) {
		return
	}
	a.start(w, req, sequence.Jog(j.X, j.Y))
}

func (a *api) setDrivers(w http.ResponseWriter, req *http.Request) {
	var d machine.Drivers
	if !readJSON(w, req, &d) {
		return
	}
	a.applied(w, req, a.st.engine.SetDrivers(d))
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

// setCycleDrill runs the drill by hand; the cycle stays on until disabled.
func (a *api) setCycleDrill(w http.ResponseWriter, req *http.Request) {
	var t toggleRequest
	if !readJSON(w, req, &t) {
		return
	}
	a.applied(w, req, a.st.engine.SetCycleDrill(t.Enabled))
}

// setBacklash enables or inhibits backlash compensation.
func (a *api) setBacklash(w http.ResponseWriter, req *http.Request) {
	var t toggleRequest
	if !readJSON(w, req, &t) {
		return
	}
	a.applied(w, req, a.st.engine.SetInhibitBacklash(!t.Enabled))
}

func (a *api) setCalibration(w http.ResponseWriter, req *http.Request) {
	ax, ok := parseAxis(w, mux.Vars(req)["axis"])
	if !ok {
		return
	}
	var cal calib.Axis
	if !readJSON(w, req, &cal) {
		return
	}
	a.applied(w, req, a.st.engine.SetCalibration(ax, cal))
}

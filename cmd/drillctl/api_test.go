package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mastercactapus/cncdrill/calib"
	"github.com/mastercactapus/cncdrill/config"
	"github.com/mastercactapus/cncdrill/job"
	"github.com/mastercactapus/cncdrill/machine"
	"github.com/mastercactapus/cncdrill/machine/rig"
	"github.com/mastercactapus/cncdrill/sequence"
	"github.com/mastercactapus/cncdrill/tour"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

const program = "G90 G20\nG81 X1 Y1 Z-0.1 R0.1\nX2\nY2\nG80\n"

func newTestAPI(t *testing.T) *api {
	t.Helper()
	settings = config.Default()
	settings.Device.Name = rig.Emulator
	settings.Drill.Period = 20 * time.Millisecond

	st := openStation(settings)
	require.True(t, st.ctl.IsOpen())
	st.engine.Poll()

	a := newAPI(st, t.TempDir())
	t.Cleanup(func() {
		st.engine.Abort()
		st.engine.Wait()
		a.Close()
		st.Close()
	})
	return a
}

func do(t *testing.T, a *api, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func targetsOf(t *testing.T, a *api) []job.Target {
	t.Helper()
	rec := do(t, a, "GET", "/api/job", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tgs []job.Target
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tgs))
	return tgs
}

func TestAPI_State(t *testing.T) {
	a := newTestAPI(t)

	rec := do(t, a, "GET", "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Device struct{ Open bool }
		Run    string
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Device.Open)
	assert.Equal(t, "idle", res.Run)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, a, "DELETE", "/api/state", "").Code)
}

func TestAPI_Job(t *testing.T) {
	a := newTestAPI(t)

	rec := do(t, a, "POST", "/api/job?name=holes.nc", program)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	tgs := targetsOf(t, a)
	require.Len(t, tgs, 3)
	assert.Equal(t, 2.0, tgs[2].Location.Y)

	rec = do(t, a, "POST", "/api/job?name=holes.nc", "G2 X1\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, a, "POST", "/api/job/offset", `{"x":1,"y":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, targetsOf(t, a)[2].Location.Y)

	rec = do(t, a, "POST", "/api/job/offset", `{"x":0.26,"y":-0.01,"snap":0.25}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.75, targetsOf(t, a)[2].Location.X)
	assert.Equal(t, 1.0, targetsOf(t, a)[2].Location.Y)
}

func TestAPI_Optimize(t *testing.T) {
	a := newTestAPI(t)
	require.Equal(t, http.StatusOK, do(t, a, "POST", "/api/job?name=h.nc", "G81 X0 Y1\nX1 Y0\nX0.5 Y0.5\n").Code)

	rec := do(t, a, "POST", "/api/optimize", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res tour.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.Improved)
	assert.Less(t, res.Best.Length, res.Original.Length)
	assert.Equal(t, res.Best.IDs(), tour.Tour{Order: targetsOf(t, a)}.IDs())
}

func TestAPI_Status(t *testing.T) {
	a := newTestAPI(t)
	require.Equal(t, http.StatusOK, do(t, a, "POST", "/api/job?name=h.nc", program).Code)
	id := targetsOf(t, a)[1].ID

	assert.Equal(t, http.StatusBadRequest, do(t, a, "PUT", "/api/targets/nope/status", "drilled").Code)
	assert.Equal(t, http.StatusNotFound, do(t, a, "PUT", "/api/targets/"+uuid.New().String()+"/status", "drilled").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, a, "PUT", "/api/targets/"+id.String()+"/status", "bogus").Code)

	rec := do(t, a, "PUT", "/api/targets/"+id.String()+"/status", `"drilled"`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, job.Drilled, targetsOf(t, a)[1].Status)

	rec = do(t, a, "POST", "/api/targets/"+id.String()+"/select", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, job.Selected, targetsOf(t, a)[1].Status)

	rec = do(t, a, "POST", "/api/job/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	for _, tg := range targetsOf(t, a) {
		assert.Equal(t, job.Idle, tg.Status)
	}
}

func TestAPI_DrillAll(t *testing.T) {
	a := newTestAPI(t)

	assert.Equal(t, http.StatusPreconditionFailed, do(t, a, "POST", "/api/drill-all", "").Code)

	require.Equal(t, http.StatusOK, do(t, a, "POST", "/api/job?name=h.nc", program).Code)
	require.Equal(t, http.StatusAccepted, do(t, a, "POST", "/api/drill-all", "").Code)

	// one run at a time
	assert.Equal(t, http.StatusConflict, do(t, a, "POST", "/api/move", `{"x":0,"y":0}`).Code)
	assert.Equal(t, http.StatusConflict, do(t, a, "POST", "/api/job?name=h.nc", program).Code)

	out := a.st.engine.Wait()
	assert.Equal(t, sequence.Completed, out.State)
	assert.True(t, out.Success)
	for _, tg := range targetsOf(t, a) {
		assert.Equal(t, job.Drilled, tg.Status)
	}
}

func TestAPI_Cancel(t *testing.T) {
	a := newTestAPI(t)
	require.Equal(t, http.StatusOK, do(t, a, "POST", "/api/job?name=h.nc", program).Code)
	require.Equal(t, http.StatusAccepted, do(t, a, "POST", "/api/drill-all", "").Code)
	require.Equal(t, http.StatusAccepted, do(t, a, "POST", "/api/stop", "").Code)

	out := a.st.engine.Wait()
	assert.Equal(t, sequence.Cancelled, out.State)
	for _, tg := range targetsOf(t, a) {
		assert.NotEqual(t, job.Next, tg.Status)
	}
}

func TestAPI_MoveAndZero(t *testing.T) {
	a := newTestAPI(t)

	require.Equal(t, http.StatusAccepted, do(t, a, "POST", "/api/move", `{"x":1.5,"y":0.5}`).Code)
	out := a.st.engine.Wait()
	require.Equal(t, sequence.Completed, out.State)
	assert.InDelta(t, 1.5, a.st.ctl.CurrentLocation().X, 0.001)

	assert.Equal(t, http.StatusBadRequest, do(t, a, "POST", "/api/zero", `{"axis":"z"}`).Code)

	rec := do(t, a, "POST", "/api/zero", `{"axis":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	loc := a.st.ctl.CurrentLocation()
	assert.Equal(t, 0.0, loc.X)
	assert.InDelta(t, 0.5, loc.Y, 0.001)

	require.Equal(t, http.StatusOK, do(t, a, "POST", "/api/zero", "").Code)
	assert.Equal(t, 0.0, a.st.ctl.CurrentLocation().Y)
}

func stateOf(t *testing.T, rec *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res stateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestAPI_Controls(t *testing.T) {
	a := newTestAPI(t)
	before := a.st.ctl.State().Abs

	require.Equal(t, http.StatusAccepted, do(t, a, "POST", "/api/jog", `{"x":100,"y":-50}`).Code)
	out := a.st.engine.Wait()
	require.True(t, out.Success, out.String())
	assert.Equal(t, [2]int{before[0] + 100, before[1] - 50}, a.st.ctl.State().Abs)

	st := stateOf(t, do(t, a, "PUT", "/api/drivers", `{"x":true,"y":false,"t":true}`))
	assert.Equal(t, machine.Drivers{X: true, T: true}, st.Device.Drivers)

	st = stateOf(t, do(t, a, "PUT", "/api/cycle-drill", `{"enabled":true}`))
	assert.True(t, st.Device.CycleDrill)
	st = stateOf(t, do(t, a, "PUT", "/api/cycle-drill", `{"enabled":false}`))
	assert.False(t, st.Device.CycleDrill)

	st = stateOf(t, do(t, a, "PUT", "/api/backlash", `{"enabled":false}`))
	assert.True(t, st.Device.InhibitBacklash)
	assert.True(t, a.st.ctl.Persisted().InhibitBacklash, "saved with the position")

	st = stateOf(t, do(t, a, "PUT", "/api/calibration/Y", `{"scale":2000,"backlash":2}`))
	assert.Equal(t, calib.Axis{Scale: 2000, Backlash: 2}, st.Device.Calib[machine.Y])
	assert.Equal(t, http.StatusBadRequest, do(t, a, "PUT", "/api/calibration/y", `{"scale":0}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, a, "PUT", "/api/calibration/z", `{"scale":10}`).Code)
	assert.Equal(t, 2000, a.st.ctl.State().Calib[machine.Y].Scale)
}

func TestReadDrawing(t *testing.T) {
	d, err := readDrawing("board.NC", strings.NewReader(program))
	require.NoError(t, err)
	assert.Len(t, d.Points, 3)

	_, err = readDrawing("board.vdx", strings.NewReader(program))
	assert.Error(t, err)
}

func TestStation_Shutdown(t *testing.T) {
	a := newTestAPI(t)
	require.Equal(t, http.StatusOK, do(t, a, "POST", "/api/job?name=h.nc", program).Code)
	require.Equal(t, http.StatusAccepted, do(t, a, "POST", "/api/drill-all", "").Code)

	path := filepath.Join(t.TempDir(), "cncdrill.yaml")
	require.NoError(t, a.st.shutdown(settings, path))

	// the run is over before the position is written
	assert.Equal(t, sequence.Cancelled, a.st.engine.Last().State)
	saved, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, a.st.ctl.Persisted(), saved.Persisted())
}

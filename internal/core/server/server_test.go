package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Janus-Aurelius/driver-proximity/internal/core/model"
	"github.com/Janus-Aurelius/driver-proximity/internal/engine"
	"github.com/Janus-Aurelius/driver-proximity/internal/geocell"
	"github.com/Janus-Aurelius/driver-proximity/internal/index/memindex"
	"github.com/Janus-Aurelius/driver-proximity/internal/logger"
	"github.com/Janus-Aurelius/driver-proximity/internal/overlay"
)

type nearbyResp struct {
	Results []struct {
		DriverID string `json:"driver_id"`
		Distance string `json:"distance"`
	} `json:"results"`
	Count int `json:"count"`
}

func newTestServer(t *testing.T, withGrid bool) http.Handler {
	t.Helper()

	var ix *memindex.Index
	if withGrid {
		grid, err := geocell.NewGrid(7)
		if err != nil {
			t.Fatalf("NewGrid: %v", err)
		}
		ix = memindex.NewWithGrid(grid)
	} else {
		ix = memindex.New()
	}

	e := engine.New(ix, ix, overlay.NewClassifier(""), 0)
	gw := engine.NewGateway(ix)

	zl := logger.Build(logger.Config{Level: "error"}, io.Discard)
	return Routes(logger.NewSlog(&zl), Deps{
		Engine:          e,
		Gateway:         gw,
		DefaultStrategy: model.FlatScan,
	})
}

func putLocation(t *testing.T, h http.Handler, id, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/drivers/"+id+"/location", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestReportLocation_RoundTrip(t *testing.T) {
	h := newTestServer(t, true)

	rr := putLocation(t, h, "real:1", `{"longitude":106.700,"latitude":10.770}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/nearby?lon=106.700&lat=10.770&radius_km=5&count=3", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("nearby status=%d body=%s", rr.Code, rr.Body.String())
	}

	var resp nearbyResp
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || len(resp.Results) != 1 {
		t.Fatalf("resp=%+v want one result", resp)
	}
	if resp.Results[0].DriverID != "real:1" {
		t.Fatalf("driver=%q", resp.Results[0].DriverID)
	}
	if resp.Results[0].Distance != "0.000" {
		t.Fatalf("distance=%q want 3-decimal km string", resp.Results[0].Distance)
	}
}

func TestReportLocation_Invalid(t *testing.T) {
	h := newTestServer(t, true)

	if rr := putLocation(t, h, "d1", `{"longitude":200,"latitude":10}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range lon: status=%d", rr.Code)
	}
	if rr := putLocation(t, h, "d1", `{not json`); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status=%d", rr.Code)
	}
}

func TestNearby_ParamValidation(t *testing.T) {
	h := newTestServer(t, true)

	cases := []struct {
		name string
		url  string
	}{
		{"missing lon", "/nearby?lat=10.77&radius_km=5"},
		{"bad radius", "/nearby?lon=106.7&lat=10.77&radius_km=abc"},
		{"negative count", "/nearby?lon=106.7&lat=10.77&radius_km=5&count=-1"},
		{"bad strategy", "/nearby?lon=106.7&lat=10.77&radius_km=5&strategy=quadtree"},
		{"bad prefer flag", "/nearby?lon=106.7&lat=10.77&radius_km=5&prefer_real=maybe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d want 400", rr.Code)
			}
		})
	}

	// Non-positive radius passes parsing but fails in the engine.
	req := httptest.NewRequest(http.MethodGet, "/nearby?lon=106.7&lat=10.77&radius_km=0", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("radius=0 status=%d want 400", rr.Code)
	}
}

func TestNearby_HierarchicalWithoutIndexIs503(t *testing.T) {
	h := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet,
		"/nearby?lon=106.7&lat=10.77&radius_km=5&strategy=hierarchical", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", rr.Code)
	}
}

func TestNearby_PreferRealOrdering(t *testing.T) {
	h := newTestServer(t, true)

	seed := []struct {
		id   string
		body string
	}{
		{"ghost:1", `{"longitude":106.7001,"latitude":10.7701}`},
		{"real:1", `{"longitude":106.7030,"latitude":10.7730}`},
		{"ghost:2", `{"longitude":106.7002,"latitude":10.7702}`},
	}
	for _, s := range seed {
		if rr := putLocation(t, h, s.id, s.body); rr.Code != http.StatusNoContent {
			t.Fatalf("seed %s: status=%d", s.id, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet,
		"/nearby?lon=106.700&lat=10.770&radius_km=5&count=2", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var resp nearbyResp
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 2 || resp.Results[0].DriverID != "real:1" {
		t.Fatalf("prefer_real default should rank real:1 first: %+v", resp)
	}

	// Mixed mode returns pure distance order: the ghosts are closer.
	req = httptest.NewRequest(http.MethodGet,
		"/nearby?lon=106.700&lat=10.770&radius_km=5&count=2&prefer_real=false", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 2 || resp.Results[0].DriverID != "ghost:1" || resp.Results[1].DriverID != "ghost:2" {
		t.Fatalf("mixed mode order wrong: %+v", resp)
	}
}

func TestDeregister_RemovesDriver(t *testing.T) {
	h := newTestServer(t, true)

	if rr := putLocation(t, h, "d1", `{"longitude":106.700,"latitude":10.770}`); rr.Code != http.StatusNoContent {
		t.Fatalf("seed: status=%d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/drivers/d1", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/nearby?lon=106.700&lat=10.770&radius_km=5", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var resp nearbyResp
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 0 {
		t.Fatalf("deregistered driver still present: %+v", resp)
	}
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestServer(t, true)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

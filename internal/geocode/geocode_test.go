package geocode

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/signalsfoundry/leo-route-optimizer/internal/cache"
	"github.com/signalsfoundry/leo-route-optimizer/internal/upstream"
	"github.com/signalsfoundry/leo-route-optimizer/model"
)

func nominatim(t *testing.T, calls *atomic.Int32, body string, code int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if ua := r.Header.Get("User-Agent"); ua != DefaultUserAgent {
			t.Errorf("User-Agent = %q, want %q", ua, DefaultUserAgent)
		}
		if r.URL.Query().Get("format") != "json" || r.URL.Query().Get("limit") != "1" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestResolver(srvURL string, c PlaceCache) *Resolver {
	client := upstream.New(time.Second, DefaultUserAgent)
	client.MaxAttempts = 1
	return NewResolver(srvURL, client, c, nil)
}

func lonPtr(v float64) *float64 { return &v }

func TestResolveCustomCoords(t *testing.T) {
	r := NewResolver("http://unused.invalid", nil, nil, nil)
	p, err := r.Resolve(context.Background(), Query{Text: "40.7", Lon: lonPtr(-74)})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := model.Place{Point: model.GeoPoint{Lat: 40.7, Lon: -74}, Name: CustomCoordsName, Resolved: true}
	if p != want {
		t.Fatalf("Resolve = %+v, want %+v", p, want)
	}
}

func TestResolveCustomCoordsRejectsText(t *testing.T) {
	r := NewResolver("http://unused.invalid", nil, nil, nil)
	if _, err := r.Resolve(context.Background(), Query{Text: "Paris", Lon: lonPtr(2)}); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestResolveNumericText(t *testing.T) {
	r := NewResolver("http://unused.invalid", nil, nil, nil)
	cases := []struct {
		text string
		lat  float64
		name string
	}{
		{"51.5", 51.5, "Coords(51.5,0.0)"},
		{"40", 40, "Coords(40.0,0.0)"},
		{" -12.25 ", -12.25, "Coords(-12.25,0.0)"},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			p, err := r.Resolve(context.Background(), Query{Text: tc.text})
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if p.Point.Lat != tc.lat || p.Point.Lon != 0 || p.Name != tc.name {
				t.Fatalf("Resolve(%q) = %+v, want lat %v name %q", tc.text, p, tc.lat, tc.name)
			}
		})
	}
}

func TestResolvePlaceName(t *testing.T) {
	var calls atomic.Int32
	srv := nominatim(t, &calls, `[{"lat":"48.8588897","lon":"2.320041","display_name":"Paris, Ile-de-France, France"}]`, http.StatusOK)
	r := newTestResolver(srv.URL, nil)

	p, err := r.Resolve(context.Background(), Query{Text: "Paris"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Name != "Paris" || p.Point.Lat != 48.8588897 || p.Point.Lon != 2.320041 || !p.Resolved {
		t.Fatalf("unexpected place %+v", p)
	}
}

func TestResolveUnknownPlaceFallsBackToOrigin(t *testing.T) {
	var calls atomic.Int32
	srv := nominatim(t, &calls, `[]`, http.StatusOK)
	r := newTestResolver(srv.URL, nil)

	p, err := r.Resolve(context.Background(), Query{Text: "Atlantis"})
	if err != nil {
		t.Fatalf("Resolve should not fail, got %v", err)
	}
	want := model.Place{Name: "Atlantis"}
	if p != want {
		t.Fatalf("Resolve = %+v, want %+v", p, want)
	}
}

func TestResolveUpstreamErrorFallsBackToOrigin(t *testing.T) {
	var calls atomic.Int32
	srv := nominatim(t, &calls, `oops`, http.StatusInternalServerError)
	r := newTestResolver(srv.URL, nil)

	p, err := r.Resolve(context.Background(), Query{Text: "Tokyo"})
	if err != nil {
		t.Fatalf("Resolve should not fail, got %v", err)
	}
	if p.Point != (model.GeoPoint{}) || p.Name != "Tokyo" || p.Resolved {
		t.Fatalf("unexpected fallback %+v", p)
	}
}

func TestResolveUsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := nominatim(t, &calls, `[{"lat":"35.68","lon":"139.76","display_name":"Tokyo, Japan"}]`, http.StatusOK)
	store := cache.NewMemoryStore()
	r := newTestResolver(srv.URL, store)

	for i := 0; i < 3; i++ {
		p, err := r.Resolve(context.Background(), Query{Text: "Tokyo"})
		if err != nil || p.Name != "Tokyo" {
			t.Fatalf("Resolve #%d = %+v, %v", i, p, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one upstream lookup, got %d", calls.Load())
	}
	if _, ok, _ := store.GetPlace(context.Background(), "tokyo"); !ok {
		t.Fatalf("expected lookup to be cached")
	}
}

func TestFailedLookupsAreNotCached(t *testing.T) {
	var calls atomic.Int32
	srv := nominatim(t, &calls, `[]`, http.StatusOK)
	store := cache.NewMemoryStore()
	r := newTestResolver(srv.URL, store)

	_, _ = r.Resolve(context.Background(), Query{Text: "Nowhere"})
	_, _ = r.Resolve(context.Background(), Query{Text: "Nowhere"})
	if calls.Load() != 2 {
		t.Fatalf("expected failed lookups to be retried, got %d calls", calls.Load())
	}
}

func TestResolveRejectsNonFiniteCoords(t *testing.T) {
	r := NewResolver("http://unused.invalid", nil, nil, nil)
	cases := []Query{
		{Text: "NaN"},
		{Text: "Inf"},
		{Text: "-Infinity"},
		{Text: "NaN", Lon: lonPtr(1)},
		{Text: "10", Lon: lonPtr(math.Inf(1))},
	}
	for _, q := range cases {
		if _, err := r.Resolve(context.Background(), q); !errors.Is(err, ErrInvalidQuery) {
			t.Fatalf("Resolve(%+v) err = %v, want ErrInvalidQuery", q, err)
		}
	}
}

func TestParseCoord(t *testing.T) {
	cases := []struct {
		in      string
		v       float64
		numeric bool
		bad     bool
	}{
		{in: " 12.5 ", v: 12.5, numeric: true},
		{in: "-3", v: -3, numeric: true},
		{in: "Paris"},
		{in: "nan", numeric: true, bad: true},
		{in: "+Inf", numeric: true, bad: true},
	}
	for _, tc := range cases {
		v, numeric, err := ParseCoord(tc.in)
		if v != tc.v || numeric != tc.numeric || (err != nil) != tc.bad {
			t.Fatalf("ParseCoord(%q) = %v, %v, %v", tc.in, v, numeric, err)
		}
	}
}

func TestNonFiniteSearchResultFallsBackToOrigin(t *testing.T) {
	var calls atomic.Int32
	srv := nominatim(t, &calls, `[{"lat":"NaN","lon":"2","display_name":"Nowhere"}]`, http.StatusOK)
	r := newTestResolver(srv.URL, nil)

	p, err := r.Resolve(context.Background(), Query{Text: "Nowhere"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Point != (model.GeoPoint{}) || p.Resolved {
		t.Fatalf("expected origin fallback, got %+v", p)
	}
}

func TestCancelledCallerDoesNotFailSharedLookup(t *testing.T) {
	arrived := make(chan struct{}, 4)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		<-release
		_, _ = w.Write([]byte(`[{"lat":"51.5","lon":"-0.12","display_name":"London, England"}]`))
	}))
	t.Cleanup(srv.Close)
	r := newTestResolver(srv.URL, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = r.Resolve(firstCtx, Query{Text: "London"})
	}()
	<-arrived

	second := make(chan model.Place, 1)
	go func() {
		p, _ := r.Resolve(context.Background(), Query{Text: "London"})
		second <- p
	}()
	time.Sleep(50 * time.Millisecond)
	cancelFirst()
	<-firstDone
	close(release)

	select {
	case p := <-second:
		if !p.Resolved || p.Name != "London" {
			t.Fatalf("joined lookup = %+v, want resolved London", p)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("joined lookup did not finish")
	}
}

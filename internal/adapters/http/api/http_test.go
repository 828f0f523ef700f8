package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/okian/padmap/internal/adapters/http/api"
	"github.com/okian/padmap/internal/adapters/mq/queue"
	"github.com/okian/padmap/internal/adapters/output/pad"
	"github.com/okian/padmap/internal/adapters/profilestore"
	"github.com/okian/padmap/internal/domain/dedupe"
	"github.com/okian/padmap/internal/domain/input"
	"github.com/okian/padmap/internal/domain/mapping"
	"github.com/okian/padmap/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeEngine struct {
	mu    sync.Mutex
	loads [][]mapping.Rule
}

func (e *fakeEngine) LoadMappings(rules []mapping.Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loads = append(e.loads, rules)
}

func (e *fakeEngine) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.loads)
}

type fakeIngestor struct {
	mu     sync.Mutex
	err    error
	events []input.Event
}

func (f *fakeIngestor) Submit(_ context.Context, ev input.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

type fakeStats struct{}

func (fakeStats) GetStats() map[string]any {
	return map[string]any{"engine": map[string]any{"state": "active"}}
}

type fixture struct {
	mux      *http.ServeMux
	store    *profilestore.Store
	engine   *fakeEngine
	ingestor *fakeIngestor
	pad      *pad.Pad
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		t.Fatalf("logger init: %v", err)
	}
	eng := &fakeEngine{}
	store, err := profilestore.New(t.TempDir(), eng)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	p := pad.New("test-pad")
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("pad: %v", err)
	}
	f := &fixture{
		mux:      http.NewServeMux(),
		store:    store,
		engine:   eng,
		ingestor: &fakeIngestor{},
		pad:      p,
	}
	server := api.NewServer(api.Dependencies{
		Deduper:  dedupe.NewInMemoryDeduper(),
		Ingestor: f.ingestor,
		Profiles: store,
		Pad:      p,
		Stats:    fakeStats{},
	})
	server.Register(context.Background(), f.mux)
	return f
}

func (f *fixture) do(method, target, contentType, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

const driveProfile = `{
  "name": "drive",
  "rules": [
    {
      "condition": {"kind": "button", "target_id": 0},
      "actions": [{"type": "set_virtual_button", "button": "XBOX_A"}]
    },
    {
      "condition": {"kind": "axis", "target_id": 1},
      "actions": [{"type": "set_virtual_axis", "axis": "XBOX_RIGHT_TRIGGER", "source": true}]
    }
  ]
}`

func TestServerRoutes(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		f := newFixture(t)

		Convey("When health is requested", func() {
			w := f.do(http.MethodGet, "/healthz", "", "")

			Convey("Then it should report ok", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["status"], ShouldEqual, "ok")
			})
		})

		Convey("When metrics are requested", func() {
			w := f.do(http.MethodGet, "/metrics", "", "")

			Convey("Then the registry should be exposed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "padmap_engine_")
			})
		})

		Convey("When stats are requested", func() {
			w := f.do(http.MethodGet, "/stats", "", "")

			Convey("Then the provider's stats should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w), ShouldContainKey, "engine")
			})
		})

		Convey("When the pad is requested", func() {
			w := f.do(http.MethodGet, "/pad", "", "")

			Convey("Then the snapshot should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				out := decode(w)
				So(out["name"], ShouldEqual, "test-pad")
				So(out["initialized"], ShouldEqual, true)
			})
		})

		Convey("When a route is called with the wrong method", func() {
			w := f.do(http.MethodDelete, "/stats", "", "")

			Convey("Then it should be rejected", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestPostEvent(t *testing.T) {
	Convey("Given the events endpoint", t, func() {
		f := newFixture(t)

		Convey("When a button event is posted", func() {
			w := f.do(http.MethodPost, "/events", "application/json",
				`{"event_id":"e1","device":"kbd","kind":"button","id":4,"pressed":true,"ts":"2026-01-02T03:04:05Z"}`)

			Convey("Then it should be accepted and submitted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(decode(w)["status"], ShouldEqual, "accepted")
				So(f.ingestor.events, ShouldHaveLength, 1)
				ev := f.ingestor.events[0]
				So(ev.Kind(), ShouldEqual, input.KindButton)
				So(string(ev.Device()), ShouldEqual, "kbd")
				bp, ok := ev.ButtonPayload()
				So(ok, ShouldBeTrue)
				So(bp.ID, ShouldEqual, 4)
				So(bp.Pressed, ShouldBeTrue)
				So(ev.Timestamp().Year(), ShouldEqual, 2026)
			})

			Convey("And the same event id is posted again", func() {
				w2 := f.do(http.MethodPost, "/events", "application/json",
					`{"event_id":"e1","device":"kbd","kind":"button","id":4,"pressed":true}`)

				Convey("Then it should be acknowledged as a duplicate", func() {
					So(w2.Code, ShouldEqual, http.StatusOK)
					So(decode(w2)["duplicate"], ShouldEqual, true)
					So(f.ingestor.events, ShouldHaveLength, 1)
				})
			})
		})

		Convey("When an axis event without an event id is posted", func() {
			w := f.do(http.MethodPost, "/events", "application/json",
				`{"device":"stick","kind":"axis","id":2,"value":-120}`)

			Convey("Then it should be accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				ap, ok := f.ingestor.events[0].AxisPayload()
				So(ok, ShouldBeTrue)
				So(ap.Value, ShouldEqual, -120)
			})
		})

		Convey("When invalid events are posted", func() {
			bodies := []string{
				`not json`,
				`{"device":"kbd","kind":"button","id":1}`,
				`{"device":"kbd","kind":"axis","id":1,"pressed":true}`,
				`{"device":"kbd","kind":"hat","id":1,"value":1}`,
				`{"kind":"button","id":1,"pressed":true}`,
				`{"device":"kbd","kind":"button","pressed":true}`,
				`{"device":"kbd","kind":"button","id":1,"pressed":true,"ts":"yesterday"}`,
				`{"device":"kbd","kind":"button","id":1,"pressed":true,"extra":1}`,
			}

			Convey("Then each should be a bad request", func() {
				for _, body := range bodies {
					w := f.do(http.MethodPost, "/events", "application/json", body)
					So(w.Code, ShouldEqual, http.StatusBadRequest)
					So(decode(w)["code"], ShouldEqual, "bad_request")
				}
				So(f.ingestor.events, ShouldBeEmpty)
			})
		})

		Convey("When the lanes are full", func() {
			f.ingestor.err = queue.ErrFull
			body := `{"event_id":"e9","device":"kbd","kind":"button","id":1,"pressed":false}`
			w := f.do(http.MethodPost, "/events", "application/json", body)

			Convey("Then it should report backpressure", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decode(w)["code"], ShouldEqual, "backpressure")
			})

			Convey("And a retry after recovery should be accepted", func() {
				f.ingestor.err = nil
				w2 := f.do(http.MethodPost, "/events", "application/json", body)
				So(w2.Code, ShouldEqual, http.StatusAccepted)
			})
		})

		Convey("When the lanes are closed", func() {
			f.ingestor.err = queue.ErrClosed
			w := f.do(http.MethodPost, "/events", "application/json",
				`{"device":"kbd","kind":"button","id":1,"pressed":false}`)

			Convey("Then the service should be unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestProfiles(t *testing.T) {
	Convey("Given an empty profile store", t, func() {
		f := newFixture(t)

		Convey("When a profile is put", func() {
			w := f.do(http.MethodPut, "/profiles/drive", "application/json", driveProfile)

			Convey("Then it should be created", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(f.store.Names(), ShouldResemble, []string{"drive"})
			})

			Convey("And it is listed", func() {
				out := decode(f.do(http.MethodGet, "/profiles", "", ""))
				profiles := out["profiles"].([]any)
				So(profiles, ShouldHaveLength, 1)
				So(profiles[0].(map[string]any)["identifier"], ShouldEqual, "drive")
			})

			Convey("And it is fetched as yaml", func() {
				g := f.do(http.MethodGet, "/profiles/drive?format=yaml", "", "")
				So(g.Code, ShouldEqual, http.StatusOK)
				So(g.Header().Get("Content-Type"), ShouldStartWith, "application/yaml")
				So(g.Body.String(), ShouldContainSubstring, "name: drive")
			})

			Convey("And it is activated", func() {
				a := f.do(http.MethodPost, "/profiles/drive/activate", "", "")

				Convey("Then the engine should receive its rules", func() {
					So(a.Code, ShouldEqual, http.StatusOK)
					out := decode(a)
					So(out["active"], ShouldEqual, true)
					So(out["activation"], ShouldNotBeEmpty)
					So(f.engine.count(), ShouldEqual, 1)
					name, _ := f.store.ActiveName()
					So(name, ShouldEqual, "drive")
				})

				Convey("Then saving it again should re-activate it", func() {
					u := f.do(http.MethodPut, "/profiles/drive", "application/json", driveProfile)
					So(u.Code, ShouldEqual, http.StatusOK)
					So(decode(u)["active"], ShouldEqual, true)
					So(f.engine.count(), ShouldEqual, 2)
				})
			})

			Convey("And it is deleted", func() {
				d := f.do(http.MethodDelete, "/profiles/drive", "", "")

				Convey("Then it should be gone", func() {
					So(d.Code, ShouldEqual, http.StatusNoContent)
					So(f.do(http.MethodGet, "/profiles/drive", "", "").Code, ShouldEqual, http.StatusNotFound)
				})
			})
		})

		Convey("When a toml profile is put", func() {
			body := "name = \"menu\"\n\n[[rules]]\n[rules.condition]\nkind = \"button\"\ntarget_id = 9\n\n[[rules.actions]]\ntype = \"run_macro\"\nmacro = \"open\"\n"
			w := f.do(http.MethodPut, "/profiles/menu", "application/toml", body)

			Convey("Then it should be created", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				p, err := f.store.Get("menu")
				So(err, ShouldBeNil)
				So(p.Rules, ShouldHaveLength, 1)
			})
		})

		Convey("When the body names another profile", func() {
			w := f.do(http.MethodPut, "/profiles/other", "application/json", driveProfile)

			Convey("Then it should be rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(f.store.Names(), ShouldBeEmpty)
			})
		})

		Convey("When the body is malformed", func() {
			w := f.do(http.MethodPut, "/profiles/drive", "application/json",
				`{"name":"drive","rules":[{"actions":[]}]}`)

			Convey("Then it should be a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the content type is unsupported", func() {
			w := f.do(http.MethodPut, "/profiles/drive", "application/xml", "<profile/>")

			Convey("Then it should be a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When an unknown profile is activated", func() {
			w := f.do(http.MethodPost, "/profiles/missing/activate", "", "")

			Convey("Then it should be not found and nothing loaded", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(f.engine.count(), ShouldEqual, 0)
			})
		})

		Convey("When an unknown profile is deleted", func() {
			w := f.do(http.MethodDelete, "/profiles/missing", "", "")

			Convey("Then it should be not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

package profilestore_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/okian/padmap/internal/adapters/profilestore"
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

func (e *fakeEngine) last() []mapping.Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.loads) == 0 {
		return nil
	}
	return e.loads[len(e.loads)-1]
}

func newStore(t *testing.T, dir string, opts ...profilestore.Option) (*profilestore.Store, *fakeEngine) {
	t.Helper()
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		t.Fatalf("logger init: %v", err)
	}
	eng := &fakeEngine{}
	s, err := profilestore.New(dir, eng, append([]profilestore.Option{profilestore.WithLogger(logger.Get())}, opts...)...)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s, eng
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func racingProfile() mapping.Profile {
	return mapping.Profile{Name: "racing", Rules: []mapping.Rule{
		mapping.NewRule(mapping.OnButton(3), mapping.SetVirtualButton{Button: mapping.XboxA, PressedOverride: true}),
		mapping.NewRule(mapping.OnAxis(7),
			mapping.SetVirtualAxis{Axis: mapping.XboxLeftTrigger, Value: mapping.UseSource()},
			mapping.SetVirtualAxis{Axis: mapping.XboxRightTrigger, Value: mapping.Literal(0)},
			mapping.SetVirtualAxis{Axis: mapping.XboxLeftStickX, Value: mapping.Literal(-32768)},
		),
		mapping.NewRule(mapping.OnButton(4), mapping.RunMacro{Name: "boost"}),
		mapping.NewRule(mapping.OnButton(5)),
	}}
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []string{"json", "yaml", "toml"} {
		Convey("Given a store saving "+format, t, func() {
			dir := t.TempDir()
			s, _ := newStore(t, dir, profilestore.WithFormat(format))
			p := racingProfile()

			Convey("When the profile is saved and loaded by a fresh store", func() {
				So(s.Save(p, "racing"), ShouldBeNil)
				fresh, _ := newStore(t, dir)
				got, err := fresh.Load("racing")

				Convey("Then the loaded profile should equal the original", func() {
					So(err, ShouldBeNil)
					So(got, ShouldResemble, p)
					So(fresh.Names(), ShouldResemble, []string{"racing"})
				})

				Convey("Then no temporary files should remain", func() {
					entries, err := os.ReadDir(dir)
					So(err, ShouldBeNil)
					So(entries, ShouldHaveLength, 1)
				})
			})
		})
	}
}

func TestLoadErrors(t *testing.T) {
	Convey("Given a profile directory", t, func() {
		dir := t.TempDir()
		s, _ := newStore(t, dir)

		Convey("When the identifier does not exist", func() {
			_, err := s.Load("missing")
			So(errors.Is(err, profilestore.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the identifier contains a path separator", func() {
			_, err := s.Load("../etc/passwd")
			So(errors.Is(err, profilestore.ErrInvalidName), ShouldBeTrue)
		})

		Convey("When the bytes cannot be tokenized", func() {
			writeFile(t, dir, "broken.json", `{"name": "broken", "rules": [`)
			writeFile(t, dir, "broken2.yaml", "name: [unterminated\n")
			writeFile(t, dir, "broken3.toml", "name = \n")
			writeFile(t, dir, "empty.json", "")

			Convey("Then Load should report Corrupt", func() {
				for _, id := range []string{"broken", "broken2", "broken3", "empty"} {
					_, err := s.Load(id)
					So(errors.Is(err, profilestore.ErrCorrupt), ShouldBeTrue)
				}
				So(s.Names(), ShouldBeEmpty)
			})
		})

		Convey("When the document violates the schema", func() {
			writeFile(t, dir, "unknown.json", `{"name":"u","rules":[{"condition":{"kind":"button","target_id":1},"actions":[{"type":"teleport"}]}]}`)
			writeFile(t, dir, "noname.json", `{"rules":[]}`)
			writeFile(t, dir, "nocond.yaml", "name: n\nrules:\n  - actions: []\n")
			writeFile(t, dir, "extra.yaml", "name: e\ncolour: red\n")
			writeFile(t, dir, "badkind.toml", "name = \"k\"\n[[rules]]\n[rules.condition]\nkind = \"hat\"\ntarget_id = 1\n")
			writeFile(t, dir, "both.json", `{"name":"b","rules":[{"condition":{"kind":"axis","target_id":1},"actions":[{"type":"set_virtual_axis","axis":"XBOX_LEFT_TRIGGER","value":3,"source":true}]}]}`)
			writeFile(t, dir, "typed.json", `{"name": 5}`)
			writeFile(t, dir, "typedname.toml", "name = 5\n")
			writeFile(t, dir, "typedid.toml", "name = \"t\"\n[[rules]]\n[rules.condition]\nkind = \"button\"\ntarget_id = \"one\"\n")

			Convey("Then Load should report MalformedData", func() {
				for _, id := range []string{"unknown", "noname", "nocond", "extra", "badkind", "both", "typed", "typedname", "typedid"} {
					_, err := s.Load(id)
					So(errors.Is(err, profilestore.ErrMalformedData), ShouldBeTrue)
				}
				So(s.Names(), ShouldBeEmpty)
			})
		})
	})
}

func TestLoadAllFromDirectory(t *testing.T) {
	Convey("Given a directory with one good and one schema-violating profile", t, func() {
		dir := t.TempDir()
		writeFile(t, dir, "good.json", `{"name":"good","rules":[{"condition":{"kind":"button","target_id":3},"actions":[{"type":"set_virtual_button","button":"XBOX_A","pressed":true}]}]}`)
		writeFile(t, dir, "bad.json", `{"name":"bad","rules":[{"condition":{"kind":"button","target_id":3},"actions":[{"type":"warp"}]}]}`)
		writeFile(t, dir, "notes.txt", "ignored")
		writeFile(t, dir, ".good.json.123.tmp", "ignored")
		s, _ := newStore(t, dir)

		Convey("When loading the directory", func() {
			loaded, failures, err := s.LoadAllFromDirectory(dir)

			Convey("Then exactly one profile should load and one failure be reported", func() {
				So(err, ShouldBeNil)
				So(loaded, ShouldHaveLength, 1)
				So(loaded[0].Name, ShouldEqual, "good")
				So(failures, ShouldHaveLength, 1)
				So(failures[0].Path, ShouldEqual, filepath.Join(dir, "bad.json"))
				So(errors.Is(failures[0], profilestore.ErrMalformedData), ShouldBeTrue)
				So(s.Names(), ShouldResemble, []string{"good"})
			})
		})

		Convey("When two files hold the same profile name", func() {
			writeFile(t, dir, "good2.yaml", "name: good\nrules: []\n")
			_, failures, err := s.LoadAllFromDirectory(dir)

			Convey("Then the second should fail as a duplicate", func() {
				So(err, ShouldBeNil)
				So(failures, ShouldHaveLength, 2)
				So(errors.Is(failures[1], profilestore.ErrDuplicateName), ShouldBeTrue)
			})
		})

		Convey("When the directory does not exist", func() {
			_, _, err := s.LoadAllFromDirectory(filepath.Join(dir, "nope"))
			So(errors.Is(err, profilestore.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestActivate(t *testing.T) {
	Convey("Given a store with a saved profile", t, func() {
		dir := t.TempDir()
		s, eng := newStore(t, dir)
		p := racingProfile()
		So(s.Save(p, "racing"), ShouldBeNil)

		Convey("When activating by name", func() {
			So(s.ActivateByName("racing"), ShouldBeNil)

			Convey("Then the engine should receive the rules", func() {
				So(eng.last(), ShouldResemble, p.Rules)
				active, ok := s.Active()
				So(ok, ShouldBeTrue)
				So(active.Name, ShouldEqual, "racing")
				name, activation := s.ActiveName()
				So(name, ShouldEqual, "racing")
				So(activation, ShouldNotBeEmpty)
			})

			Convey("And a later activation fails validation", func() {
				bad := mapping.Profile{Name: "bad", Rules: []mapping.Rule{{}}}
				err := s.Activate(bad)

				Convey("Then the previous rule set should remain active", func() {
					So(errors.Is(err, profilestore.ErrInvalidProfile), ShouldBeTrue)
					So(eng.loads, ShouldHaveLength, 1)
					active, _ := s.Active()
					So(active.Name, ShouldEqual, "racing")
				})
			})
		})

		Convey("When activating an unknown name", func() {
			err := s.ActivateByName("nope")
			So(errors.Is(err, profilestore.ErrNotFound), ShouldBeTrue)
			So(eng.loads, ShouldBeEmpty)
		})

		Convey("When a profile referencing an unknown macro is activated", func() {
			err := s.Activate(mapping.Profile{Name: "m", Rules: []mapping.Rule{
				mapping.NewRule(mapping.OnButton(1), mapping.RunMacro{Name: "never-defined"}),
			}})
			So(err, ShouldBeNil)
		})
	})
}

func TestSaveAndDelete(t *testing.T) {
	Convey("Given a store", t, func() {
		dir := t.TempDir()
		s, _ := newStore(t, dir, profilestore.WithFormat("yaml"))

		Convey("When saving under an existing identifier with another format", func() {
			writeFile(t, dir, "pad.toml", "name = \"pad\"\n")
			So(s.Save(mapping.Profile{Name: "pad"}, "pad"), ShouldBeNil)

			Convey("Then the existing file should be rewritten in place", func() {
				_, err := os.Stat(filepath.Join(dir, "pad.toml"))
				So(err, ShouldBeNil)
				_, err = os.Stat(filepath.Join(dir, "pad.yaml"))
				So(os.IsNotExist(err), ShouldBeTrue)
			})
		})

		Convey("When a second identifier saves a taken name", func() {
			So(s.Save(mapping.Profile{Name: "pad"}, "one"), ShouldBeNil)
			err := s.Save(mapping.Profile{Name: "pad"}, "two")
			So(errors.Is(err, profilestore.ErrDuplicateName), ShouldBeTrue)
		})

		Convey("When saving an invalid profile", func() {
			err := s.Save(mapping.Profile{}, "x")
			So(errors.Is(err, profilestore.ErrInvalidProfile), ShouldBeTrue)
			So(errors.Is(s.Save(mapping.Profile{Name: "x"}, "a/b"), profilestore.ErrInvalidName), ShouldBeTrue)
		})

		Convey("When deleting a saved profile", func() {
			So(s.Save(mapping.Profile{Name: "gone"}, "gone"), ShouldBeNil)
			So(s.Delete("gone"), ShouldBeNil)

			Convey("Then it should be forgotten", func() {
				_, err := s.Get("gone")
				So(errors.Is(err, profilestore.ErrNotFound), ShouldBeTrue)
				So(errors.Is(s.Delete("gone"), profilestore.ErrNotFound), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unknown format option", t, func() {
		_, err := profilestore.New(t.TempDir(), &fakeEngine{}, profilestore.WithFormat("xml"))
		So(errors.Is(err, profilestore.ErrUnsupportedFormat), ShouldBeTrue)
	})
}

func TestLoadMacros(t *testing.T) {
	Convey("Given a macro document", t, func() {
		dir := t.TempDir()
		s, _ := newStore(t, dir)
		path := writeFile(t, dir, "macros.yaml", `macros:
  - name: boost
    actions:
      - type: set_virtual_button
        button: XBOX_B
        pressed: true
      - type: set_virtual_axis
        axis: XBOX_RIGHT_TRIGGER
        value: 255
`)

		Convey("When it is loaded", func() {
			macros, err := s.LoadMacros(path)

			Convey("Then its steps should use the profile action schema", func() {
				So(err, ShouldBeNil)
				So(macros, ShouldHaveLength, 1)
				So(macros[0].Name, ShouldEqual, "boost")
				So(macros[0].Actions, ShouldResemble, []mapping.Action{
					mapping.SetVirtualButton{Button: mapping.XboxB, PressedOverride: true},
					mapping.SetVirtualAxis{Axis: mapping.XboxRightTrigger, Value: mapping.Literal(255)},
				})
			})
		})

		Convey("When the document is missing", func() {
			_, err := s.LoadMacros(filepath.Join(dir, "none.json"))
			So(errors.Is(err, profilestore.ErrNotFound), ShouldBeTrue)
		})
	})
}

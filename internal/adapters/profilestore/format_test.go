package profilestore_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/okian/padmap/internal/adapters/profilestore"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEncodeDecode(t *testing.T) {
	Convey("Given a profile", t, func() {
		p := racingProfile()

		Convey("When it is encoded as json", func() {
			data, err := profilestore.Encode(".json", p)
			So(err, ShouldBeNil)

			Convey("Then the action records should carry their type tags", func() {
				s := string(data)
				So(s, ShouldContainSubstring, `"type": "set_virtual_button"`)
				So(s, ShouldContainSubstring, `"source": true`)
				So(s, ShouldContainSubstring, `"value": -32768`)
				So(s, ShouldContainSubstring, `"macro": "boost"`)
				So(strings.Index(s, `"target_id": 3`), ShouldBeLessThan, strings.Index(s, `"target_id": 7`))
			})

			Convey("Then decoding should give the profile back", func() {
				got, err := profilestore.Decode(".json", data)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, p)
			})
		})

		Convey("When an unsupported extension is used", func() {
			_, err := profilestore.Encode(".xml", p)
			So(errors.Is(err, profilestore.ErrUnsupportedFormat), ShouldBeTrue)
			_, err = profilestore.Decode(".ini", nil)
			So(errors.Is(err, profilestore.ErrUnsupportedFormat), ShouldBeTrue)
		})
	})
}

func TestDecodeTOMLErrors(t *testing.T) {
	Convey("Given toml documents", t, func() {
		Convey("When a field holds a value of the wrong type", func() {
			_, nameErr := profilestore.Decode(".toml", []byte("name = 5\n"))
			_, idErr := profilestore.Decode(".toml", []byte("name = \"t\"\n[[rules]]\n[rules.condition]\nkind = \"button\"\ntarget_id = \"one\"\n"))

			Convey("Then the error should be MalformedData, not Corrupt", func() {
				for _, err := range []error{nameErr, idErr} {
					So(errors.Is(err, profilestore.ErrMalformedData), ShouldBeTrue)
					So(errors.Is(err, profilestore.ErrCorrupt), ShouldBeFalse)
				}
			})
		})

		Convey("When the document cannot be tokenized", func() {
			_, err := profilestore.Decode(".toml", []byte("name = \"unterminated\n"))

			Convey("Then the error should be Corrupt", func() {
				So(errors.Is(err, profilestore.ErrCorrupt), ShouldBeTrue)
				So(errors.Is(err, profilestore.ErrMalformedData), ShouldBeFalse)
			})
		})
	})
}

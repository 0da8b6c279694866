package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "Acme Corporation", "Acme Corporation"},
		{"script tag with body", `hello <script>alert("x")</script> world`, "hello  world"},
		{"script tag mixed case", `<ScRiPt src="evil.js"></sCrIpT>`, ""},
		{"iframe tag", `<iframe src="https://evil.example"></iframe>`, ""},
		{"object and embed", `<object data="a"></object><embed src="b">`, ""},
		{"link and meta", `<link rel="stylesheet" href="x"><meta charset="utf-8">`, ""},
		{"javascript scheme", `<a href="javascript:alert(1)">x</a>`, `<a href="alert(1)">x</a>`},
		{"vbscript scheme", "vbscript:msgbox(1)", "msgbox(1)"},
		{"data scheme", "data:text/html;base64,xyz", "text/html;base64,xyz"},
		{"event handler attribute", `<img src="x" onerror=alert(1)>`, `<img src="x" alert(1)>`},
		{"event handler with spaces", `<div onclick = "go()">`, `<div  "go()">`},
		{"reassembled script tag", `<scr<script>ipt>alert(1)</script>`, "<scr"},
		{"scheme removal reassembles tag", `<scrjavascript:ipt>alert(1)</scrjavascript:ipt>`, ""},
		{"angle brackets alone survive", "a < b > c", "a < b > c"},
		{"empty string", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeString(tc.in))
		})
	}
}

func TestSanitizeStringIdempotent(t *testing.T) {
	inputs := []string{
		`<script>alert(1)</script>`,
		`<scr<script>ipt>alert(1)</scr</script>ipt>`,
		`<scrjavascript:ipt>alert(1)</scrjavascript:ipt>`,
		`javascript:javascript:alert(1)`,
		`plain`,
		`<img onload=<script>x</script>go()>`,
	}
	for _, in := range inputs {
		once := SanitizeString(in)
		twice := SanitizeString(once)
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestSanitizeMap(t *testing.T) {
	in := map[string]any{
		"name":  `<script>steal()</script>Acme`,
		"count": 3,
		"ok":    true,
		"tags":  []any{"clean", `<iframe src="x"></iframe>dirty`},
		"nested": map[string]any{
			"note": `click javascript:here`,
		},
		"labels": []string{`<meta charset="utf-8">a`},
	}

	out := SanitizeMap(in)

	assert.Equal(t, "Acme", out["name"])
	assert.Equal(t, 3, out["count"])
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, []any{"clean", "dirty"}, out["tags"])
	assert.Equal(t, "click here", out["nested"].(map[string]any)["note"])
	assert.Equal(t, []string{"a"}, out["labels"])

	// Original payload must not be mutated.
	assert.Equal(t, `<script>steal()</script>Acme`, in["name"])
}

func TestSanitizeMapNil(t *testing.T) {
	assert.Nil(t, SanitizeMap(nil))
}

func TestSanitizeValuePassthrough(t *testing.T) {
	assert.Equal(t, 42, SanitizeValue(42))
	assert.Equal(t, 1.5, SanitizeValue(1.5))
	assert.Nil(t, SanitizeValue(nil))
}

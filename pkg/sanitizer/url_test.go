package sanitizer

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_Rules(t *testing.T) {
	cases := map[string]string{
		"":                                  "",
		"http://i.ibb.co.com/x":             "https://i.ibb.co/x",
		"https://i.ibb.co/abc/img.jpg#2":    "https://i.ibb.co/abc/img.jpg",
		"  https://example.com/a.png  ":     "https://example.com/a.png",
		"https://example.com.com/a.png":     "https://example.com/a.png",
		"https://example.com.com.com/a.png": "https://example.com/a.png",
		"https://example.com//a///b.png":    "https://example.com/a/b.png",
		"//cdn.example.com/a.png":           "https://cdn.example.com/a.png",
		"http://example.com/a.png":          "https://example.com/a.png",
		"https:///example.com/a.png":        "https://example.com/a.png",
		"https://x.com/r?u=http://y.com/z":  "https://x.com/r?u=http://y.com/z",
		"i.ibb.co.com.com/a":                "i.ibb.co/a",
		"#only-fragment":                    "",
		"/images/a.png":                     "/images/a.png",
		"/ x":                               "/ x",
		"/images//a.png":                    "/images/a.png",
		"https://a.com/x:////y":             "https://a.com/x:/y",
		"https://a.com//p?u=//b":            "https://a.com/p?u=//b",
	}
	for in, want := range cases {
		assert.Equal(t, want, Sanitize(in), "input %q", in)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	f := func(s string) bool {
		once := Sanitize(s)
		return Sanitize(once) == once
	}
	assert.NoError(t, quick.Check(f, &quick.Config{MaxCount: 5000}))

	for _, s := range []string{
		"http://i.ibb.co.com.com//a//b#c",
		"i.ibb.i.ibb.co.com.co.com",
		"////x",
		" http:// ",
		"http:/x//y",
		".com.com.com.com",
		"/ x",
		"/\ta.png",
		"/ 000000",
		"/images/a.png",
		"https:/// x",
		"a?u=http://b//c",
		"https://a.com/x:////y",
	} {
		once := Sanitize(s)
		assert.Equal(t, once, Sanitize(once), "input %q", s)
	}
}

func FuzzSanitize(f *testing.F) {
	f.Add("http://i.ibb.co.com/x")
	f.Add("//a//b#c")
	f.Add("/ 000000")
	f.Fuzz(func(t *testing.T, s string) {
		once := Sanitize(s)
		if again := Sanitize(once); again != once {
			t.Fatalf("not idempotent: %q -> %q -> %q", s, once, again)
		}
	})
}

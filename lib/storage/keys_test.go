package storage

import "testing"

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"key":                "key",
		"a:b:c":              "a:b:c",
		"a/b\\c":             "a:b:c",
		":a:":                "a",
		"//a//b//":           "a:b",
		"a::b":               "a:b",
		"users/1?version=2":  "users:1",
		"ü/中文":               "ü:中文",
		"key with spaces/ok": "key with spaces:ok",
	}
	for in, want := range cases {
		if got := NormalizeKey(in); got != want {
			t.Errorf("NormalizeKey(%q) = %q, expected %q", in, got, want)
		}
	}
}

func TestNormalizeBaseKey(t *testing.T) {
	cases := map[string]string{
		"":       "",
		"users":  "users:",
		"users:": "users:",
		"/a/b/":  "a:b:",
	}
	for in, want := range cases {
		if got := NormalizeBaseKey(in); got != want {
			t.Errorf("NormalizeBaseKey(%q) = %q, expected %q", in, got, want)
		}
	}
}

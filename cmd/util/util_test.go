package util

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line longer than %d characters: %q", Wrap, line)
		}
	}

	if got := WrapString("  short   text "); got != "short text" {
		t.Errorf("expected %q, got %q", "short text", got)
	}
}

func TestClientConfigFromEnv(t *testing.T) {
	t.Setenv("QKV_TRANSPORT_ENDPOINTS", "http://a:1,http://b:2")
	t.Setenv("QKV_TRANSPORT_RETRIES", "5")
	InitConfig()
	defer viper.Reset()

	conf := GetClientConfig()
	if len(conf.Endpoints) != 2 || conf.Endpoints[1] != "http://b:2" {
		t.Errorf("unexpected endpoints %v", conf.Endpoints)
	}
	if conf.RetryCount != 5 {
		t.Errorf("expected 5 retries, got %d", conf.RetryCount)
	}
}

func TestGetSerializer(t *testing.T) {
	defer viper.Reset()

	viper.Set("serializer", "gob")
	if s, err := GetSerializer(); err != nil || s.Name() != "gob" {
		t.Errorf("expected gob serializer, got %v (err=%v)", s, err)
	}

	viper.Set("serializer", "xml")
	if _, err := GetSerializer(); err == nil {
		t.Errorf("expected error for unknown serializer")
	}
}

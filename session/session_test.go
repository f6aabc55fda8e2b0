package session

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/ysmood/gson"
)

func TestFilterSetCookie_DropsOnlyResetLine(t *testing.T) {
	value := "osess=valid-token; Path=/; HttpOnly\n" +
		"osess=; Path=/; Expires=Thu, 01 Jan 1970 00:00:00 GMT\n" +
		"prefs=grid; Path=/"

	got := FilterSetCookie(value, "osess")
	assert.Equal(t, "osess=valid-token; Path=/; HttpOnly\nprefs=grid; Path=/", got)
}

func TestFilterSetCookie_TrackedNameCaseInsensitive(t *testing.T) {
	got := FilterSetCookie("OSESS=; Path=/\nother=1", "osess")
	assert.Equal(t, "other=1", got)
}

func TestFilterSetCookie_NoTrackedNameKeepsEverything(t *testing.T) {
	value := "a=; Path=/\nb=2"
	assert.Equal(t, value, FilterSetCookie(value, ""))
}

func TestFilterSetCookie_BlankLinesRemoved(t *testing.T) {
	got := FilterSetCookie("a=1\n\n  \nb=2", "osess")
	assert.Equal(t, "a=1\nb=2", got)
}

func TestFilterSetCookie_AllLinesReset(t *testing.T) {
	got := FilterSetCookie("osess=\nosess=; Path=/", "osess")
	assert.Equal(t, "", got)
}

func TestResetsToEmpty(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"osess=", true},
		{"osess=; Path=/", true},
		{"osess=   ; HttpOnly", true},
		{"osess=tok", false},
		{"osess=tok; Path=/", false},
		{"other=", false},
		{"garbage-without-equals", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resetsToEmpty(tt.line, "osess"), tt.line)
	}
}

func TestHeaderValue_CaseInsensitive(t *testing.T) {
	headers := proto.NetworkHeaders{
		"Set-Cookie": gson.New("osess=abc"),
	}
	assert.Equal(t, "osess=abc", headerValue(headers, "set-cookie"))
	assert.Equal(t, "", headerValue(headers, "location"))
}

func TestSameEndpoint(t *testing.T) {
	assert.True(t, sameEndpoint(
		"https://auth.example.org/login?state=xyz",
		"https://auth.example.org/login",
	))
	assert.True(t, sameEndpoint(
		"https://AUTH.example.org/login",
		"https://auth.example.org/login",
	))
	assert.False(t, sameEndpoint(
		"https://auth.example.org/other",
		"https://auth.example.org/login",
	))
	assert.False(t, sameEndpoint(
		"https://elsewhere.example.org/login",
		"https://auth.example.org/login",
	))
}

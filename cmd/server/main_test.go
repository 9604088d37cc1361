package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurlHostForListenAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		listenAddr string
		want       string
	}{
		{name: "default port", listenAddr: ":8080", want: "localhost:8080"},
		{name: "explicit host", listenAddr: "127.0.0.1:9000", want: "127.0.0.1:9000"},
		{name: "all interfaces", listenAddr: "0.0.0.0:8080", want: "localhost:8080"},
		{name: "all interfaces ipv6", listenAddr: "[::]:8081", want: "localhost:8081"},
		{name: "ipv6 loopback", listenAddr: "[::1]:8080", want: "[::1]:8080"},
		{name: "surrounding spaces", listenAddr: "  :7070 ", want: "localhost:7070"},
		{name: "unset", listenAddr: "", want: "localhost:8080"},
		{name: "no port", listenAddr: "analytics.internal", want: "analytics.internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, curlHostForListenAddr(tt.listenAddr))
		})
	}
}

func TestExampleQuery(t *testing.T) {
	t.Parallel()

	got := exampleQuery("0.0.0.0:8080", "merge_requests")
	assert.Equal(t,
		`curl -s -X POST http://localhost:8080/schemas/merge_requests/query -d '{"metrics":[{"identifier":"count"}]}'`,
		got)
}

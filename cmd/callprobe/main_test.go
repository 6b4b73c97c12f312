package main

import (
	"reflect"
	"testing"
)

func TestWSURLFor(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
		wantErr bool
	}{
		{name: "http", baseURL: "http://127.0.0.1:8080", want: "ws://127.0.0.1:8080/demo-calls/ws"},
		{name: "https", baseURL: "https://demo.example.com", want: "wss://demo.example.com/demo-calls/ws"},
		{name: "path prefix", baseURL: "http://127.0.0.1:8080/api/", want: "ws://127.0.0.1:8080/api/demo-calls/ws"},
		{name: "bad scheme", baseURL: "ftp://127.0.0.1", wantErr: true},
		{name: "missing host", baseURL: "http://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := wsURLFor(tt.baseURL)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("wsURLFor(%q) error = nil, want error", tt.baseURL)
				}
				return
			}
			if err != nil {
				t.Fatalf("wsURLFor(%q) error = %v", tt.baseURL, err)
			}
			if got != tt.want {
				t.Fatalf("wsURLFor(%q) = %q, want %q", tt.baseURL, got, tt.want)
			}
		})
	}
}

func TestSplitUtterances(t *testing.T) {
	got := splitUtterances(" hello | | how are you |bye")
	want := []string{"hello", "how are you", "bye"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitUtterances() = %v, want %v", got, want)
	}
	if out := splitUtterances(" | "); out != nil {
		t.Fatalf("splitUtterances(blank) = %v, want nil", out)
	}
}

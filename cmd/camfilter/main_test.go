package main

import (
	"context"
	"testing"

	"github.com/teslashibe/go-camfilter/pkg/capture"
)

func TestCameraURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws/camera", false},
		{"https://cam.local/", "wss://cam.local/ws/camera", false},
		{"ws://10.0.0.2:9000/preview", "ws://10.0.0.2:9000/preview/ws/camera", false},
		{"ftp://host", "", true},
		{"localhost:8080", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := cameraURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("cameraURL(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("cameraURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

type fixedAuthorizer struct {
	status  capture.Status
	granted bool
}

func (a fixedAuthorizer) Status() capture.Status { return a.status }

func (a fixedAuthorizer) RequestAccess(context.Context) (bool, error) {
	return a.granted, nil
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name    string
		auth    capture.Authorizer
		wantErr bool
	}{
		{"authorized", capture.StaticAuthorizer(capture.StatusAuthorized), false},
		{"denied", capture.StaticAuthorizer(capture.StatusDenied), true},
		{"restricted", capture.StaticAuthorizer(capture.StatusRestricted), true},
		{"prompt granted", fixedAuthorizer{capture.StatusNotDetermined, true}, false},
		{"prompt refused", fixedAuthorizer{capture.StatusNotDetermined, false}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authorize(context.Background(), tt.auth)
			if (err != nil) != tt.wantErr {
				t.Errorf("authorize() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

package gpm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStartParsesNestedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/v3/profiles/start/") {
			t.Errorf("path = %q, want start endpoint", r.URL.Path)
		}
		w.Write([]byte(`{"success":true,"data":{"remote_debugging_address":"127.0.0.1:9222"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	addr, err := c.Start(context.Background(), "p1", nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if addr != "127.0.0.1:9222" {
		t.Errorf("addr = %q, want 127.0.0.1:9222", addr)
	}
}

func TestStartParsesTopLevelResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"remote_debugging_address":"127.0.0.1:9333"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	addr, err := c.Start(context.Background(), "p1", nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if addr != "127.0.0.1:9333" {
		t.Errorf("addr = %q, want 127.0.0.1:9333", addr)
	}
}

func TestStartFailsWithoutEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"profile is running"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Start(context.Background(), "p1", nil)
	if !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("err = %v, want ErrNoEndpoint", err)
	}
}

func TestStartSendsWindowGeometry(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"data":{"remote_debugging_address":"127.0.0.1:9222"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Start(context.Background(), "p1", &WindowOptions{
		Width: 800, Height: 600, X: 810, Y: 0, HasPos: true, Scale: 0.8,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, want := range []string{"win_size=800%2C600", "win_pos=810%2C0", "win_scale=0.8"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestStartCachesAndStopClears(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/v3/profiles/close/") {
			w.Write([]byte(`{"success":true}`))
			return
		}
		w.Write([]byte(`{"data":{"remote_debugging_address":"127.0.0.1:9222"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	if _, err := c.Start(context.Background(), "p1", nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if addr, ok := c.CachedAddress("p1"); !ok || addr != "127.0.0.1:9222" {
		t.Errorf("cache = %q,%v after start, want address cached", addr, ok)
	}

	c.Stop(context.Background(), "p1")
	if _, ok := c.CachedAddress("p1"); ok {
		t.Error("cache entry survived Stop")
	}
}

func TestReconnectWithoutCacheFails(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil)
	_, _, err := c.Reconnect(context.Background(), "unknown")
	if !errors.Is(err, ErrNotCached) {
		t.Errorf("err = %v, want ErrNotCached", err)
	}
}

func TestHealthyFalseWhenUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil)
	if c.Healthy(context.Background()) {
		t.Error("Healthy() = true against unreachable service")
	}
}

func TestHealthyTrueOnOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	if !c.Healthy(context.Background()) {
		t.Error("Healthy() = false against healthy service")
	}
}

func TestProfilesLists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"a","name":"Depin010"},{"id":"b","name":"Depin011"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	profiles, err := c.Profiles(context.Background())
	if err != nil {
		t.Fatalf("Profiles failed: %v", err)
	}
	if len(profiles) != 2 || profiles[0].Name != "Depin010" {
		t.Errorf("profiles = %+v, want two entries starting with Depin010", profiles)
	}
}

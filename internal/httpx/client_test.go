package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTimeout(t *testing.T) {
	if got := Timeout(0); got != DefaultTimeout {
		t.Fatalf("Timeout(0) = %s, want %s", got, DefaultTimeout)
	}
	if got := Timeout(-3); got != DefaultTimeout {
		t.Fatalf("Timeout(-3) = %s, want %s", got, DefaultTimeout)
	}
	if got := Timeout(120); got != 120*time.Second {
		t.Fatalf("Timeout(120) = %s, want %s", got, 120*time.Second)
	}
}

func TestNewClientTimeout(t *testing.T) {
	c := NewClient(0)
	if c.Timeout != DefaultTimeout {
		t.Fatalf("client timeout = %s, want %s", c.Timeout, DefaultTimeout)
	}
	if NewClient(5).Timeout != 5*time.Second {
		t.Fatalf("client timeout = %s, want 5s", NewClient(5).Timeout)
	}
}

func TestNewClientGivesUpOnSlowServer(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := NewClient(1)
	c.Timeout = 50 * time.Millisecond
	resp, err := c.Get(server.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected timeout error")
	}
}

package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestServerRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, "127.0.0.1:0", started)
	}()

	var addr string
	select {
	case addr = <-started:
	case err := <-errCh:
		t.Fatalf("Server failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Server took too long to start")
	}

	for _, path := range []string{"/", "/play"} {
		resp, err := http.Get("http://" + addr + path)
		if err != nil {
			t.Fatalf("Failed to connect to server: %v", err)
		}
		bodyBytes, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("Failed to read body: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: expected status OK, got %v", path, resp.Status)
		}
		if body := string(bodyBytes); !strings.Contains(body, "XEMK") {
			t.Errorf("GET %s: expected body to contain 'XEMK', got body: %s", path, body)
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Server shut down with error: %v", err)
		}
	case <-time.After(6 * time.Second):
		t.Errorf("Server took too long to shut down")
	}
}

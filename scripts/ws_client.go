// Package main runs a demo WebSocket client for the live submission feed.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Connect to the live feed first so the event is not missed.
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/events/ws", RawQuery: "tenant_id=default"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m map[string]any
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			out, _ := json.Marshal(m)
			log.Printf("WS <- %s", out)
		}
	}()

	// Trigger a submission (HMAC must be disabled for this demo).
	body := []byte(`{"name":"Demo","email":"demo@example.com","message":"hello from ws_client"}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/submissions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	_ = resp.Body.Close()
	log.Printf("submit status: %d", resp.StatusCode)

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}

package server

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/aalan294/campus-life-admin/pkg/engine"
)

// startRouter listens on a random local port and returns its address.
func startRouter(t *testing.T, store Store) (*Router, string) {
	t.Helper()
	router := NewRouter(store)
	go router.Listen("127.0.0.1:0")

	// Wait a bit for listener to be set
	var addr string
	for i := 0; i < 20; i++ {
		time.Sleep(25 * time.Millisecond)
		router.mu.Lock()
		if router.listener != nil {
			addr = router.listener.Addr().String()
			router.mu.Unlock()
			break
		}
		router.mu.Unlock()
	}
	if addr == "" {
		t.Fatalf("Server did not start in time")
	}
	t.Cleanup(func() { router.Stop() })
	return router, addr
}

func send(t *testing.T, conn net.Conn, reader *bufio.Reader, line string) string {
	t.Helper()
	fmt.Fprintf(conn, "%s\n", line)
	resp, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read reply to %q: %v", line, err)
	}
	return strings.TrimSuffix(resp, "\n")
}

func TestRouter_TCP_Commands(t *testing.T) {
	_, addr := startRouter(t, engine.NewMemStore(nil, nil))

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	if line := send(t, conn, reader, "PING"); line != "PONG" {
		t.Errorf("Expected PONG, got %q", line)
	}

	// Insert keeps spacing inside JSON strings intact
	line := send(t, conn, reader, `INSERT events {"title":"Fall  Fest"}`)
	if !strings.HasPrefix(line, `OK "`) {
		t.Fatalf("Expected OK \"<id>\", got %q", line)
	}
	id := strings.Trim(strings.TrimPrefix(line, "OK "), `"`)

	line = send(t, conn, reader, "LIST events")
	want := fmt.Sprintf(`OK [{"id":"%s","fields":{"title":"Fall  Fest"}}]`, id)
	if line != want {
		t.Errorf("Expected %s, got %q", want, line)
	}

	if line := send(t, conn, reader, fmt.Sprintf(`PATCH events %s {"fee":10}`, id)); line != "OK" {
		t.Errorf("Expected OK, got %q", line)
	}

	if line := send(t, conn, reader, "COLLECTIONS"); line != `OK ["events"]` {
		t.Errorf("Expected events collection, got %q", line)
	}

	if line := send(t, conn, reader, "REMOVE events "+id); line != "OK" {
		t.Errorf("Expected OK, got %q", line)
	}

	// Remove after remove
	line = send(t, conn, reader, "REMOVE events "+id)
	if !strings.HasPrefix(line, "ERR NOT_FOUND") {
		t.Errorf("Expected ERR NOT_FOUND, got %q", line)
	}

	line = send(t, conn, reader, "LIST events")
	if line != "OK []" {
		t.Errorf("Expected empty list, got %q", line)
	}
}

func TestRouter_Put(t *testing.T) {
	store := engine.NewMemStore(nil, nil)
	_, addr := startRouter(t, store)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	if line := send(t, conn, reader, `PUT recruitments r1 {"title":"ACM"}`); line != "OK" {
		t.Fatalf("Expected OK, got %q", line)
	}
	if line := send(t, conn, reader, "LIST recruitments"); line != `OK [{"id":"r1","fields":{"title":"ACM"}}]` {
		t.Errorf("Unexpected listing %q", line)
	}
}

func TestRouter_ConcurrentConnections(t *testing.T) {
	_, addr := startRouter(t, engine.NewMemStore(nil, nil))

	// Try to open more connections than the handler limit
	conns := make([]net.Conn, 0)
	for i := 0; i < maxConnections+10; i++ {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conns = append(conns, conn)
		}
	}

	for _, c := range conns {
		c.Close()
	}
}

func TestRouter_MalformedCommands(t *testing.T) {
	_, addr := startRouter(t, engine.NewMemStore(nil, nil))

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	cases := map[string]string{
		"INSERT events":             "ERR BAD_REQUEST missing document",
		"INSERT events {invalid}":   "ERR BAD_REQUEST invalid json value",
		"PATCH events":              "ERR BAD_REQUEST missing document",
		"REMOVE events":             "ERR BAD_REQUEST usage: REMOVE <collection> <id>",
		`INSERT a/b {"x":1}`:        `ERR BAD_REQUEST invalid collection name: "a/b"`,
		"FROBNICATE":                `ERR BAD_REQUEST unknown command "FROBNICATE"`,
		`PATCH events nope {"x":1}`: "ERR NOT_FOUND patch events/nope: document not found",
	}
	for cmd, want := range cases {
		if line := send(t, conn, reader, cmd); line != want {
			t.Errorf("%s: expected %q, got %q", cmd, want, line)
		}
	}

	// The connection survives bad input
	if line := send(t, conn, reader, "PING"); line != "PONG" {
		t.Error("Did not receive PONG")
	}
}

func TestRouter_HandleConnection_Quit(t *testing.T) {
	router := NewRouter(engine.NewMemStore(nil, nil))
	server, client := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		router.HandleConnection(server)
		close(done)
	}()

	fmt.Fprintln(client, "QUIT")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleConnection did not return after QUIT")
	}
}

func TestRouter_StopClosesConnections(t *testing.T) {
	router, addr := startRouter(t, engine.NewMemStore(nil, nil))

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)
	send(t, conn, reader, "PING")

	if err := router.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := reader.ReadString('\n'); err == nil {
		t.Error("Expected the connection to be closed by Stop")
	}
}

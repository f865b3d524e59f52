// Package sdk provides the document store used by the campus-life admin.
// It supports the embedded engine, a remote docstore daemon over TCP/TLS,
// and Redis.
package sdk

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/aalan294/campus-life-admin/pkg/engine"
	"github.com/aalan294/campus-life-admin/pkg/schema"
)

// Wire replies. A failed command answers "ERR <msg>", or
// "ERR NOT_FOUND <msg>" when the document does not exist.
const (
	ReplyOK       = "OK"
	ReplyErr      = "ERR"
	ReplyPong     = "PONG"
	CodeNotFound  = "NOT_FOUND"
	CodeBadInput  = "BAD_REQUEST"
	defaultIOWait = 30 * time.Second
)

// Client is a remote client for the docstore daemon.
// It implements the Backend interface.
type Client struct {
	addr      string
	tlsConfig *tls.Config
	conn      net.Conn
	reader    *bufio.Reader
	mu        sync.Mutex // Protects concurrent access to the connection
}

// Connect dials a docstore daemon. A nil tlsConfig uses plain TCP.
func Connect(ctx context.Context, addr string, tlsConfig *tls.Config) (*Client, error) {
	c := &Client{addr: addr, tlsConfig: tlsConfig}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.dial(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// dial MUST be called while holding c.mu.
func (c *Client) dial(ctx context.Context) error {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 60 * time.Second,
	}

	var conn net.Conn
	var err error
	if c.tlsConfig != nil {
		td := &tls.Dialer{NetDialer: dialer, Config: c.tlsConfig}
		conn, err = td.DialContext(ctx, "tcp", c.addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", c.addr)
	}
	if err != nil {
		return fmt.Errorf("dial docstore %s: %w", c.addr, err)
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// drop closes a broken connection so the next call dials again.
func (c *Client) drop() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.reader = nil
	}
}

// roundTrip sends one command line and reads one reply line. There is no
// retry: a failed exchange drops the connection and returns the error.
func (c *Client) roundTrip(ctx context.Context, cmd string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.dial(ctx); err != nil {
			return "", err
		}
	}

	deadline := time.Now().Add(defaultIOWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn := c.conn
	conn.SetDeadline(deadline)
	// Unblock the read when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	resp, err := c.exchange(cmd)
	if err != nil {
		c.drop()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("docstore %s: %w", c.addr, err)
	}
	return parseReply(resp)
}

func (c *Client) exchange(cmd string) (string, error) {
	if _, err := fmt.Fprint(c.conn, cmd+"\n"); err != nil {
		return "", err
	}
	resp, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

func parseReply(resp string) (string, error) {
	switch {
	case resp == ReplyOK || resp == ReplyPong:
		return "", nil
	case strings.HasPrefix(resp, ReplyOK+" "):
		return strings.TrimPrefix(resp, ReplyOK+" "), nil
	case strings.HasPrefix(resp, ReplyErr+" "+CodeNotFound):
		msg := strings.TrimSpace(strings.TrimPrefix(resp, ReplyErr+" "+CodeNotFound))
		return "", fmt.Errorf("%s: %w", msg, ErrNotFound)
	case strings.HasPrefix(resp, ReplyErr):
		return "", errors.New(strings.TrimSpace(strings.TrimPrefix(resp, ReplyErr)))
	}
	return "", fmt.Errorf("unexpected reply %q", resp)
}

// checkTarget keeps names that would break the line framing off the wire.
func checkTarget(collection string, ids ...string) error {
	if err := engine.ValidCollection(collection); err != nil {
		return err
	}
	for _, id := range ids {
		if id == "" || strings.ContainsAny(id, " \t\r\n") {
			return fmt.Errorf("%s: invalid document id %q: %w", collection, id, ErrNotFound)
		}
	}
	return nil
}

func (c *Client) ListAll(ctx context.Context, collection string) ([]schema.Entry, error) {
	if err := checkTarget(collection); err != nil {
		return nil, err
	}
	resp, err := c.roundTrip(ctx, "LIST "+collection)
	if err != nil {
		return nil, err
	}
	entries := []schema.Entry{}
	if err := json.Unmarshal([]byte(resp), &entries); err != nil {
		return nil, fmt.Errorf("decode LIST reply: %w", err)
	}
	return entries, nil
}

func (c *Client) Insert(ctx context.Context, collection string, doc schema.Document) (string, error) {
	if err := checkTarget(collection); err != nil {
		return "", err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	resp, err := c.roundTrip(ctx, fmt.Sprintf("INSERT %s %s", collection, body))
	if err != nil {
		return "", err
	}
	var id string
	if err := json.Unmarshal([]byte(resp), &id); err != nil {
		return "", fmt.Errorf("decode INSERT reply: %w", err)
	}
	return id, nil
}

func (c *Client) Put(ctx context.Context, collection, id string, doc schema.Document) error {
	if err := checkTarget(collection, id); err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = c.roundTrip(ctx, fmt.Sprintf("PUT %s %s %s", collection, id, body))
	return err
}

func (c *Client) Patch(ctx context.Context, collection, id string, partial schema.Document) error {
	if err := checkTarget(collection, id); err != nil {
		return err
	}
	body, err := json.Marshal(partial)
	if err != nil {
		return err
	}
	_, err = c.roundTrip(ctx, fmt.Sprintf("PATCH %s %s %s", collection, id, body))
	return err
}

func (c *Client) Remove(ctx context.Context, collection, id string) error {
	if err := checkTarget(collection, id); err != nil {
		return err
	}
	_, err := c.roundTrip(ctx, fmt.Sprintf("REMOVE %s %s", collection, id))
	return err
}

func (c *Client) Collections(ctx context.Context) ([]string, error) {
	resp, err := c.roundTrip(ctx, "COLLECTIONS")
	if err != nil {
		return nil, err
	}
	var list []string
	err = json.Unmarshal([]byte(resp), &list)
	return list, err
}

// Ping checks that the daemon answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.roundTrip(ctx, "PING")
	return err
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	fmt.Fprintln(c.conn, "QUIT")
	err := c.conn.Close()
	c.conn = nil
	return err
}

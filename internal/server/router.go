// Package server exposes a document store over the docstore line protocol.
package server

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
	"github.com/aalan294/campus-life-admin/pkg/sdk"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store is what the router serves.
type Store interface {
	sdk.DocumentStore
	sdk.CollectionEnumerator
	engine.Putter
}

const (
	maxConnections = 100
	idleTimeout    = 30 * time.Second
	opTimeout      = 15 * time.Second
)

type Router struct {
	store Store
	cert  *tls.Certificate
	log   zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

func NewRouter(s Store) *Router {
	return &Router{
		store: s,
		log:   log.With().Str("component", "docstore").Logger(),
		conns: make(map[net.Conn]struct{}),
	}
}

// SetCertificate enables TLS for the listener.
func (r *Router) SetCertificate(cert tls.Certificate) {
	r.cert = &cert
}

// Addr returns the bound address, or nil before Listen has bound.
func (r *Router) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Listen accepts connections until Stop is called. addr is host:port or a
// bare port.
func (r *Router) Listen(addr string) error {
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	var listener net.Listener
	var err error
	if r.cert != nil {
		config := &tls.Config{Certificates: []tls.Certificate{*r.cert}, MinVersion: tls.VersionTLS12}
		listener, err = tls.Listen("tcp", addr, config)
	} else {
		listener, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		listener.Close()
		return net.ErrClosed
	}
	r.listener = listener
	r.mu.Unlock()
	r.log.Info().Str("addr", listener.Addr().String()).Bool("tls", r.cert != nil).Msg("Docstore listening")

	semaphore := make(chan struct{}, maxConnections)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			r.log.Warn().Err(err).Msg("Accept failed")
			continue
		}

		if !r.track(conn) {
			conn.Close()
			return nil
		}
		go func(c net.Conn) {
			semaphore <- struct{}{}
			defer func() {
				<-semaphore
				r.untrack(c)
			}()
			r.HandleConnection(c)
		}(conn)
	}
}

func (r *Router) track(c net.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.conns[c] = struct{}{}
	r.wg.Add(1)
	return true
}

func (r *Router) untrack(c net.Conn) {
	c.Close()
	r.mu.Lock()
	delete(r.conns, c)
	r.mu.Unlock()
	r.wg.Done()
}

// Stop closes the listener and every open connection, then waits for the
// connection handlers to return.
func (r *Router) Stop() error {
	r.mu.Lock()
	r.closed = true
	var err error
	if r.listener != nil {
		err = r.listener.Close()
	}
	for c := range r.conns {
		c.Close()
	}
	r.mu.Unlock()

	r.wg.Wait()
	return err
}

// HandleConnection serves one client until it sends QUIT, goes idle, or
// the connection breaks.
func (r *Router) HandleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)

	for {
		// Set a deadline for the next command
		conn.SetReadDeadline(time.Now().Add(idleTimeout))

		line, err := reader.ReadString('\n')
		if err != nil {
			return // Connection closed or timeout
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		cmd = strings.ToUpper(cmd)

		if cmd == "QUIT" {
			return
		}
		if cmd == "PING" {
			fmt.Fprintln(conn, sdk.ReplyPong)
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(idleTimeout))
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		reply := r.dispatch(ctx, cmd, rest)
		cancel()
		fmt.Fprintln(conn, reply)
	}
}

// dispatch runs one command and renders its reply line.
func (r *Router) dispatch(ctx context.Context, cmd, args string) string {
	switch cmd {
	case "LIST":
		entries, err := r.store.ListAll(ctx, strings.TrimSpace(args))
		return r.reply(cmd, entries, err)

	case "COLLECTIONS":
		list, err := r.store.Collections(ctx)
		return r.reply(cmd, list, err)

	case "INSERT":
		// INSERT collection {json}
		name, body, ok := strings.Cut(args, " ")
		doc, err := decodeDoc(body, ok)
		if err != nil {
			return badInput(err)
		}
		id, err := r.store.Insert(ctx, name, doc)
		return r.reply(cmd, id, err)

	case "PUT", "PATCH":
		// PUT|PATCH collection id {json}
		parts := strings.SplitN(args, " ", 3)
		doc, err := decodeDoc(last(parts), len(parts) == 3)
		if err != nil {
			return badInput(err)
		}
		if cmd == "PUT" {
			err = r.store.Put(ctx, parts[0], parts[1], doc)
		} else {
			err = r.store.Patch(ctx, parts[0], parts[1], doc)
		}
		return r.reply(cmd, nil, err)

	case "REMOVE":
		parts := strings.Fields(args)
		if len(parts) != 2 {
			return badInput(errors.New("usage: REMOVE <collection> <id>"))
		}
		return r.reply(cmd, nil, r.store.Remove(ctx, parts[0], parts[1]))
	}
	return badInput(fmt.Errorf("unknown command %q", cmd))
}

func (r *Router) reply(cmd string, val any, err error) string {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return sdk.ReplyErr + " " + sdk.CodeNotFound + " " + oneLine(err.Error())
	case errors.Is(err, engine.ErrInvalidCollection):
		return badInput(err)
	case err != nil:
		r.log.Error().Err(err).Str("command", cmd).Msg("Command failed")
		return sdk.ReplyErr + " " + oneLine(err.Error())
	case val == nil:
		return sdk.ReplyOK
	}

	// Send back as JSON
	res, err := json.Marshal(val)
	if err != nil {
		return sdk.ReplyErr + " internal error"
	}
	return sdk.ReplyOK + " " + string(res)
}

func decodeDoc(body string, present bool) (schema.Document, error) {
	if !present {
		return nil, errors.New("missing document")
	}
	var doc schema.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, errors.New("invalid json value")
	}
	return doc, nil
}

func badInput(err error) string {
	return sdk.ReplyErr + " " + sdk.CodeBadInput + " " + oneLine(err.Error())
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

func last(parts []string) string {
	return parts[len(parts)-1]
}

package sdk

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/aalan294/campus-life-admin/pkg/engine"
	"github.com/rs/zerolog/log"
)

// Store drivers accepted by Open.
const (
	DriverAuto     = ""
	DriverEmbedded = "embedded"
	DriverRemote   = "remote"
	DriverRedis    = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Driver  string
	DataDir string      // embedded
	Addr    string      // remote docstore daemon
	TLS     *tls.Config // remote, nil for plain TCP
	Redis   RedisOptions
}

// Open initializes the store described by opts.
// It returns the interface, so the app doesn't care where documents live.
// With DriverAuto a configured remote address is tried first and the
// embedded engine is used when it cannot be reached.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Driver {
	case DriverRemote:
		return Connect(ctx, opts.Addr, opts.TLS)

	case DriverRedis:
		return NewRedisStore(ctx, opts.Redis)

	case DriverEmbedded:
		return OpenEmbedded(opts.DataDir)

	case DriverAuto:
		if opts.Addr != "" {
			client, err := Connect(ctx, opts.Addr, opts.TLS)
			if err == nil {
				return client, nil
			}
			log.Warn().Err(err).Str("addr", opts.Addr).Msg("Docstore unreachable, falling back to embedded store")
		}
		return OpenEmbedded(opts.DataDir)
	}
	return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
}

// OpenEmbedded loads the engine from dataDir. This uses the same engine the
// docstore daemon uses, but inside the app process.
func OpenEmbedded(dataDir string) (*Embedded, error) {
	p, err := engine.NewPersistence(dataDir)
	if err != nil {
		return nil, err
	}

	allData, err := p.LoadAll()
	if err != nil {
		return nil, err
	}

	// Create a MemStore and inject the persistence
	return &Embedded{MemStore: engine.NewMemStore(allData, p)}, nil
}

package pubsub

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/logger"
)

// EmbeddedNATSPubSub runs a nats-server in process, for development without
// external infrastructure
type EmbeddedNATSPubSub struct {
	*NATSPubSub
	server *server.Server
}

// EmbeddedNATSOptions configures the embedded NATS server
type EmbeddedNATSOptions struct {
	Port       int    // 0 or -1 picks a random free port
	Subject    string
	StreamName string
	StoreDir   string // empty keeps JetStream in memory
}

// DefaultEmbeddedNATSOptions returns sensible defaults for development
func DefaultEmbeddedNATSOptions() EmbeddedNATSOptions {
	return EmbeddedNATSOptions{
		Port:       -1,
		Subject:    "predictor.events",
		StreamName: DefaultStreamName,
	}
}

// NewEmbeddedNATSPubSub starts an embedded NATS server and connects to it
func NewEmbeddedNATSPubSub(opts EmbeddedNATSOptions) (*EmbeddedNATSPubSub, error) {
	port := opts.Port
	if port == 0 {
		port = -1
	}

	serverOpts := &server.Options{
		Host:      "127.0.0.1",
		Port:      port,
		JetStream: true,
		NoSigs:    true,
		StoreDir:  opts.StoreDir,
	}

	ns, err := server.NewServer(serverOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded NATS server: %w", err)
	}
	ns.SetLogger(&natsLogger{}, false, false)

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start within timeout")
	}

	clientURL := ns.ClientURL()
	logger.Info("Embedded NATS server started", "url", clientURL)

	nc, err := nats.Connect(clientURL, nats.Name("nba-predictor-ui-embedded"))
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("failed to connect to embedded NATS: %w", err)
	}

	streamName := opts.StreamName
	if streamName == "" {
		streamName = DefaultStreamName
	}

	inner, err := newJetStreamPubSub(nc, opts.Subject, &nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{opts.Subject},
		Storage:  nats.MemoryStorage,
		MaxAge:   time.Hour,
	})
	if err != nil {
		ns.Shutdown()
		return nil, err
	}

	return &EmbeddedNATSPubSub{NATSPubSub: inner, server: ns}, nil
}

// ServerURL returns the client URL of the embedded server
func (p *EmbeddedNATSPubSub) ServerURL() string {
	return p.server.ClientURL()
}

// Close closes the client side and shuts the embedded server down
func (p *EmbeddedNATSPubSub) Close() {
	logger.Info("Shutting down embedded NATS server")

	p.NATSPubSub.Close()

	if p.server != nil {
		p.server.Shutdown()
		p.server.WaitForShutdown()
	}
}

// natsLogger adapts our logger to the NATS server logger interface
type natsLogger struct{}

func (l *natsLogger) Noticef(format string, v ...interface{}) {
	logger.Debug(fmt.Sprintf("[NATS] "+format, v...))
}

func (l *natsLogger) Warnf(format string, v ...interface{}) {
	logger.Warn(fmt.Sprintf("[NATS] "+format, v...))
}

func (l *natsLogger) Fatalf(format string, v ...interface{}) {
	logger.Error(fmt.Sprintf("[NATS] "+format, v...))
}

func (l *natsLogger) Errorf(format string, v ...interface{}) {
	logger.Error(fmt.Sprintf("[NATS] "+format, v...))
}

func (l *natsLogger) Debugf(format string, v ...interface{}) {
	logger.Debug(fmt.Sprintf("[NATS] "+format, v...))
}

func (l *natsLogger) Tracef(format string, v ...interface{}) {
	logger.Debug(fmt.Sprintf("[NATS TRACE] "+format, v...))
}

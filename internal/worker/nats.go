package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/glizzus/recurring/internal/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"
)

// ConnectNATS dials the configured server, authenticating with the NKey
// seed when one is set.
func ConnectNATS(cfg *config.NATSConfig, logger *slog.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("server", nc.ConnectedUrl()))
		}),
	}

	if cfg.NKeySeed != "" {
		kp, err := nkeys.FromSeed([]byte(cfg.NKeySeed))
		if err != nil {
			return nil, fmt.Errorf("invalid nkey seed: %w", err)
		}
		pubKey, err := kp.PublicKey()
		if err != nil {
			return nil, fmt.Errorf("failed to get public key: %w", err)
		}
		opts = append(opts, nats.Nkey(pubKey, kp.Sign))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

// NATSJobHandler publishes each run on "<prefix>.<job id>".
type NATSJobHandler struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSJobHandler(conn *nats.Conn, prefix string) *NATSJobHandler {
	return &NATSJobHandler{conn: conn, prefix: prefix}
}

func (h *NATSJobHandler) Subject(jobID string) string {
	return h.prefix + "." + jobID
}

func (h *NATSJobHandler) HandleJobs(ctx context.Context, jobs ...RunDispatch) error {
	for _, job := range jobs {
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to encode run of job %s: %w", job.JobID, err)
		}
		if err := h.conn.Publish(h.Subject(job.JobID), data); err != nil {
			return fmt.Errorf("failed to publish run of job %s: %w", job.JobID, err)
		}
	}
	if err := h.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush nats connection: %w", err)
	}
	return nil
}

var _ JobHandler = (*NATSJobHandler)(nil)

// Package queue carries experiment requests over NATS JetStream and stores
// report files in a JetStream object store bucket.
//
// Requests are published to a work-queue stream and consumed through a
// durable pull consumer, so each request is delivered to one worker at a
// time. A request stays pending until it is committed (acked) or released
// (nak'd for redelivery).
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/nvandessel/sdrsweep/internal/logging"
	"github.com/nvandessel/sdrsweep/internal/metrics"
	"github.com/nvandessel/sdrsweep/internal/models"
)

// ErrUnknownMessage is returned when committing or releasing a request that
// was not received through this queue or was already settled.
var ErrUnknownMessage = errors.New("unknown or already settled message")

// Config configures the queue.
type Config struct {
	// URL of the NATS server.
	URL string

	// Token authenticates the connection when set.
	Token string

	// Stream and Subject carry requests.
	Stream  string
	Subject string

	// Durable is the pull consumer shared by all workers.
	Durable string

	// Bucket is the object store bucket for report files.
	Bucket string

	// FetchWait bounds how long Receive waits for a message.
	FetchWait time.Duration

	// AckWait is how long a received request may stay unsettled before the
	// server redelivers it.
	AckWait time.Duration

	// MaxDeliver caps delivery attempts per request. -1 means unlimited.
	MaxDeliver int

	// RetryDelay is applied when a request is released.
	RetryDelay time.Duration
}

// DefaultConfig returns the standard queue layout.
func DefaultConfig() Config {
	return Config{
		URL:        nats.DefaultURL,
		Stream:     "SDRSWEEP",
		Subject:    "sdrsweep.requests",
		Durable:    "worker",
		Bucket:     "sdrsweep-outputs",
		FetchWait:  time.Second,
		AckWait:    time.Hour,
		MaxDeliver: 5,
		RetryDelay: 30 * time.Second,
	}
}

// Queue is a JetStream-backed request queue and blob store.
type Queue struct {
	cfg     Config
	nc      *nats.Conn
	ownConn bool
	js      nats.JetStreamContext
	sub     *nats.Subscription
	objects nats.ObjectStore
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending map[string]*nats.Msg
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithMetrics records message outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// Connect dials cfg.URL and sets up the stream, consumer and bucket.
func Connect(cfg Config, opts ...Option) (*Queue, error) {
	natsOpts := []nats.Option{
		nats.Name("sdrsweep"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1 * time.Second),
	}
	if cfg.Token != "" {
		natsOpts = append(natsOpts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	q, err := New(nc, cfg, opts...)
	if err != nil {
		nc.Close()
		return nil, err
	}
	q.ownConn = true
	return q, nil
}

// New sets up the queue on an existing connection. The caller keeps
// ownership of nc.
func New(nc *nats.Conn, cfg Config, opts ...Option) (*Queue, error) {
	q := &Queue{
		cfg:     cfg,
		nc:      nc,
		logger:  logging.Discard(),
		pending: make(map[string]*nats.Msg),
	}
	for _, opt := range opts {
		opt(q)
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	q.js = js

	if err := q.ensureStream(); err != nil {
		return nil, err
	}

	q.sub, err = js.PullSubscribe(cfg.Subject, cfg.Durable,
		nats.BindStream(cfg.Stream),
		nats.AckWait(cfg.AckWait),
		nats.MaxDeliver(cfg.MaxDeliver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pull consumer %s: %w", cfg.Durable, err)
	}

	if q.objects, err = q.ensureBucket(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Queue) ensureStream() error {
	_, err := q.js.StreamInfo(q.cfg.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", q.cfg.Stream, err)
	}

	_, err = q.js.AddStream(&nats.StreamConfig{
		Name:      q.cfg.Stream,
		Subjects:  []string{q.cfg.Subject},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", q.cfg.Stream, err)
	}
	q.logger.Info("created request stream", "stream", q.cfg.Stream, "subject", q.cfg.Subject)
	return nil
}

// Receive fetches one request. It returns (nil, nil) when no request
// arrives within FetchWait or when the message could not be decoded; a
// malformed message is terminated so it is never redelivered.
func (q *Queue) Receive(ctx context.Context) (*models.Request, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, q.cfg.FetchWait)
	defer cancel()

	msgs, err := q.sub.Fetch(1, nats.Context(fetchCtx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch request: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	msg := msgs[0]

	var req models.Request
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		q.logger.Error("failed to decode request; dropping message", "error", err, "bytes", len(msg.Data))
		q.metrics.RecordQueueMessage(metrics.OutcomeMalformed)
		if termErr := msg.Term(); termErr != nil {
			q.logger.Warn("failed to terminate malformed message", "error", termErr)
		}
		return nil, nil
	}

	req.MessageID = messageID(msg)
	req.MessageReceipt = msg.Reply

	q.mu.Lock()
	q.pending[req.MessageID] = msg
	q.mu.Unlock()

	q.metrics.RecordQueueMessage(metrics.OutcomeReceived)
	q.logger.Debug("received request", "message_id", req.MessageID, "experiment_id", req.ExperimentID)
	return &req, nil
}

// Commit acknowledges a received request so it is removed from the stream.
func (q *Queue) Commit(ctx context.Context, req *models.Request) error {
	msg, err := q.take(req)
	if err != nil {
		return err
	}
	if err := msg.AckSync(nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", req.MessageID, err)
	}
	q.metrics.RecordQueueMessage(metrics.OutcomeCommitted)
	return nil
}

// Release hands a received request back for redelivery after RetryDelay.
func (q *Queue) Release(ctx context.Context, req *models.Request) error {
	msg, err := q.take(req)
	if err != nil {
		return err
	}
	if err := msg.NakWithDelay(q.cfg.RetryDelay, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to nak message %s: %w", req.MessageID, err)
	}
	q.metrics.RecordQueueMessage(metrics.OutcomeFailed)
	return nil
}

func (q *Queue) take(req *models.Request) (*nats.Msg, error) {
	if req == nil {
		return nil, ErrUnknownMessage
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	msg, ok := q.pending[req.MessageID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, req.MessageID)
	}
	delete(q.pending, req.MessageID)
	return msg, nil
}

// Pending returns the number of received but unsettled requests.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Submit publishes req, assigning an ExperimentID if it has none, and
// returns the ID.
func (q *Queue) Submit(ctx context.Context, req models.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if req.ExperimentID == "" {
		req.ExperimentID = uuid.NewString()
	}

	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}
	ack, err := q.js.Publish(q.cfg.Subject, data, nats.Context(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to publish request: %w", err)
	}

	q.logger.Info("submitted request", "experiment_id", req.ExperimentID, "seq", ack.Sequence)
	return req.ExperimentID, nil
}

// Depth returns the number of requests waiting in the stream.
func (q *Queue) Depth() (uint64, error) {
	info, err := q.js.StreamInfo(q.cfg.Stream)
	if err != nil {
		return 0, fmt.Errorf("failed to read stream info: %w", err)
	}
	return info.State.Msgs, nil
}

// Close closes the connection if the queue opened it. Unsettled requests are
// redelivered by the server after AckWait.
func (q *Queue) Close() error {
	if q.ownConn {
		q.nc.Close()
	}
	return nil
}

// messageID identifies a message by its stream sequence.
func messageID(msg *nats.Msg) string {
	meta, err := msg.Metadata()
	if err != nil {
		return uuid.NewString()
	}
	return strconv.FormatUint(meta.Sequence.Stream, 10)
}

package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/downfa11-org/logstream/pkg/config"
	"github.com/downfa11-org/logstream/pkg/types"
	"github.com/downfa11-org/logstream/util"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// TCPOptions tunes a TCP connector. Zero values fall back to defaults.
type TCPOptions struct {
	ClientID          string
	Compression       string
	DialTimeout       time.Duration
	RequestTimeout    time.Duration
	MaxConnectRetries int
	RetryBackoff      time.Duration
}

// TCP talks to a broker over a single persistent connection using length-prefixed frames.
// Requests are serialized on the connection; a request that fails on the transport closes
// the connection and the next request dials again and repeats the login.
type TCP struct {
	ID   string
	addr string
	opts TCPOptions

	codec byte
	sem   *semaphore.Weighted
	conn  net.Conn // guarded by sem

	username string // guarded by sem
	password string
	closed   atomic.Bool
}

var _ Connector = (*TCP)(nil)

func NewTCP(addr string, opts TCPOptions) (*TCP, error) {
	codec, err := util.CodecByName(opts.Compression)
	if err != nil {
		return nil, err
	}
	if opts.ClientID == "" {
		opts.ClientID = uuid.New().String()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	if opts.MaxConnectRetries <= 0 {
		opts.MaxConnectRetries = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 200 * time.Millisecond
	}
	return &TCP{
		ID:    opts.ClientID,
		addr:  addr,
		opts:  opts,
		codec: codec,
		sem:   semaphore.NewWeighted(1),
	}, nil
}

func (c *TCP) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.opts.DialTimeout}
	bo := newBackoff(c.opts.RetryBackoff, 5*time.Second)

	var lastErr error
	for attempt := 0; attempt < c.opts.MaxConnectRetries; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", c.addr)
		if err == nil {
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				tcpConn.SetNoDelay(true)
				tcpConn.SetKeepAlive(true)
				tcpConn.SetKeepAlivePeriod(30 * time.Second)
			}
			return conn, nil
		}
		lastErr = err
		if attempt+1 == c.opts.MaxConnectRetries {
			break
		}

		wait := bo.duration()
		util.Warn("connect to %s failed (attempt %d/%d): %v. Retrying in %v", c.addr, attempt+1, c.opts.MaxConnectRetries, err, wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, errors.Wrapf(lastErr, "dial %s after %d attempts", c.addr, c.opts.MaxConnectRetries)
}

func (c *TCP) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrConnectorDone
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	if c.conn != nil {
		return nil
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.conn = conn
	util.Info("connected to broker %s (client %s)", c.addr, c.ID)
	return nil
}

func (c *TCP) Login(ctx context.Context, username, password string) error {
	if err := config.ValidateCredential("username", username); err != nil {
		return errors.Wrap(err, "login")
	}
	if err := config.ValidateCredential("password", password); err != nil {
		return errors.Wrap(err, "login")
	}
	resp, err := c.command(ctx, fmt.Sprintf("LOGIN username=%s password=%s client=%s", username, password, c.ID))
	if err != nil {
		return err
	}
	if err := responseError(resp); err != nil {
		return errors.Wrap(err, "login")
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	c.username, c.password = username, password
	c.sem.Release(1)
	return nil
}

// roundTrip writes one frame and reads one frame back.
func (c *TCP) roundTrip(ctx context.Context, frame []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrConnectorDone
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	if c.conn == nil {
		conn, err := c.dial(ctx)
		if err != nil {
			return nil, err
		}
		c.conn = conn
		if c.username != "" {
			login := util.EncodeMessage("", fmt.Sprintf("LOGIN username=%s password=%s client=%s", c.username, c.password, c.ID))
			resp, err := c.exchange(ctx, login)
			if err != nil {
				return nil, errors.Wrap(err, "re-login after reconnect")
			}
			if err := responseError(string(resp)); err != nil {
				return nil, errors.Wrap(err, "re-login after reconnect")
			}
		}
	}
	return c.exchange(ctx, frame)
}

func (c *TCP) exchange(ctx context.Context, frame []byte) ([]byte, error) {
	conn := c.conn
	deadline := time.Now().Add(c.opts.RequestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		c.dropConn()
		return nil, errors.Wrap(err, "set deadline")
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := util.WriteWithLength(conn, frame); err != nil {
		c.dropConn()
		return nil, c.transportErr(ctx, err, "send request")
	}
	resp, err := util.ReadWithLength(conn)
	if err != nil {
		c.dropConn()
		return nil, c.transportErr(ctx, err, "read response")
	}
	return resp, nil
}

func (c *TCP) transportErr(ctx context.Context, err error, op string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return errors.Wrap(err, op)
}

func (c *TCP) dropConn() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *TCP) command(ctx context.Context, cmd string) (string, error) {
	resp, err := c.roundTrip(ctx, util.EncodeMessage("", cmd))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(resp)), nil
}

// responseError maps ERROR: replies onto the connector sentinels.
func responseError(resp string) error {
	if !util.IsErrorResponse(resp) {
		return nil
	}
	text := util.ErrorText(resp)
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "not found"):
		return fmt.Errorf("broker error: %s: %w", text, types.ErrNotFound)
	case strings.Contains(lower, "already exists"):
		return fmt.Errorf("broker error: %s: %w", text, types.ErrAlreadyExists)
	default:
		return fmt.Errorf("broker error: %s", text)
	}
}

func parseUint(args map[string]string, key string, bits int) (uint64, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("response missing %q", key)
	}
	n, err := strconv.ParseUint(v, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("response field %q: %w", key, err)
	}
	return n, nil
}

func parseStream(resp string) (*types.Stream, error) {
	_, args := util.ParseCommand(resp)
	id, err := parseUint(args, "id", 32)
	if err != nil {
		return nil, err
	}
	return &types.Stream{ID: uint32(id), Name: args["name"]}, nil
}

func parseTopic(resp string) (*types.Topic, error) {
	_, args := util.ParseCommand(resp)
	id, err := parseUint(args, "id", 32)
	if err != nil {
		return nil, err
	}
	streamID, err := parseUint(args, "stream", 32)
	if err != nil {
		return nil, err
	}
	partitions, err := parseUint(args, "partitions", 32)
	if err != nil {
		return nil, err
	}
	replication, err := parseUint(args, "replication", 8)
	if err != nil {
		return nil, err
	}
	return &types.Topic{
		ID:                uint32(id),
		StreamID:          uint32(streamID),
		Name:              args["name"],
		PartitionsCount:   uint32(partitions),
		ReplicationFactor: uint8(replication),
	}, nil
}

func (c *TCP) GetStream(ctx context.Context, name string) (*types.Stream, error) {
	resp, err := c.command(ctx, fmt.Sprintf("GET_STREAM name=%s", name))
	if err != nil {
		return nil, err
	}
	if err := responseError(resp); err != nil {
		return nil, err
	}
	return parseStream(resp)
}

func (c *TCP) CreateStream(ctx context.Context, name string, id uint32) (*types.Stream, error) {
	resp, err := c.command(ctx, fmt.Sprintf("CREATE_STREAM name=%s id=%d", name, id))
	if err != nil {
		return nil, err
	}
	if err := responseError(resp); err != nil {
		return nil, err
	}
	return parseStream(resp)
}

func (c *TCP) GetTopic(ctx context.Context, streamID uint32, name string) (*types.Topic, error) {
	resp, err := c.command(ctx, fmt.Sprintf("GET_TOPIC stream=%d name=%s", streamID, name))
	if err != nil {
		return nil, err
	}
	if err := responseError(resp); err != nil {
		return nil, err
	}
	return parseTopic(resp)
}

func (c *TCP) CreateTopic(ctx context.Context, streamID uint32, name string, partitionsCount uint32, replicationFactor uint8, id uint32) (*types.Topic, error) {
	resp, err := c.command(ctx, fmt.Sprintf("CREATE_TOPIC stream=%d name=%s partitions=%d replication=%d id=%d",
		streamID, name, partitionsCount, replicationFactor, id))
	if err != nil {
		return nil, err
	}
	if err := responseError(resp); err != nil {
		return nil, err
	}
	return parseTopic(resp)
}

func (c *TCP) Send(ctx context.Context, req types.SendRequest) (*types.AckResponse, error) {
	frame, err := util.EncodeBatchMessages(&types.Batch{
		StreamID:  req.StreamID,
		TopicID:   req.TopicID,
		Partition: req.Partition,
		Messages:  req.Messages,
	}, c.codec)
	if err != nil {
		return nil, errors.Wrap(err, "encode batch")
	}

	resp, err := c.roundTrip(ctx, frame)
	if err != nil {
		return nil, err
	}
	if err := responseError(string(resp)); err != nil {
		return nil, err
	}

	var ack types.AckResponse
	if err := json.Unmarshal(resp, &ack); err != nil {
		return nil, errors.Wrapf(err, "decode ack %q", string(resp))
	}
	if ack.ErrorMsg != "" {
		return nil, fmt.Errorf("broker error: %s", ack.ErrorMsg)
	}
	return &ack, nil
}

func (c *TCP) Poll(ctx context.Context, req types.PollRequest) (*types.PolledMessages, error) {
	cmd := fmt.Sprintf("POLL stream=%d topic=%d partition=%d consumer_kind=%d consumer=%d strategy=%s value=%d count=%d auto_commit=%t",
		req.StreamID, req.TopicID, req.Partition, int(req.Consumer.Kind), req.Consumer.ID,
		req.Strategy.Kind, req.Strategy.Value, req.Count, req.AutoCommit)

	resp, err := c.roundTrip(ctx, util.EncodeMessage("", cmd))
	if err != nil {
		return nil, err
	}
	if !util.IsBatchFrame(resp) {
		if err := responseError(string(resp)); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("unexpected poll response %q", string(resp))
	}

	batch, err := util.DecodeBatchMessages(resp)
	if err != nil {
		return nil, errors.Wrap(err, "decode poll response")
	}
	return &types.PolledMessages{
		Partition:     batch.Partition,
		CurrentOffset: batch.CurrentOffset,
		Messages:      batch.Messages,
	}, nil
}

func (c *TCP) StoreOffset(ctx context.Context, consumer types.Consumer, streamID, topicID, partition uint32, offset uint64) error {
	resp, err := c.command(ctx, fmt.Sprintf("STORE_OFFSET consumer_kind=%d consumer=%d stream=%d topic=%d partition=%d offset=%d",
		int(consumer.Kind), consumer.ID, streamID, topicID, partition, offset))
	if err != nil {
		return err
	}
	return responseError(resp)
}

func (c *TCP) GetOffset(ctx context.Context, consumer types.Consumer, streamID, topicID, partition uint32) (uint64, error) {
	resp, err := c.command(ctx, fmt.Sprintf("GET_OFFSET consumer_kind=%d consumer=%d stream=%d topic=%d partition=%d",
		int(consumer.Kind), consumer.ID, streamID, topicID, partition))
	if err != nil {
		return 0, err
	}
	if err := responseError(resp); err != nil {
		return 0, err
	}
	_, args := util.ParseCommand(resp)
	return parseUint(args, "offset", 64)
}

// Close is idempotent. It waits for an in-flight request to finish.
func (c *TCP) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer c.sem.Release(1)
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Package live manages one websocket connection to the streaming speech
// endpoint: open handshake, fire-and-forget audio sends, and in-order
// delivery of server events. A transport failure is fatal to the session;
// there is no automatic reconnect.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rhazera/lingora/pkg/codec"
	"github.com/rhazera/lingora/pkg/errorsx"
	"github.com/rhazera/lingora/pkg/logging"
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	case StateErrored:
		return "ERRORED"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	URL                 string
	APIKey              string
	Model               string
	SystemPrompt        string
	Voice               string
	InputTranscription  bool
	OutputTranscription bool
	HandshakeTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	return c
}

// Client is one streaming session connection.
type Client struct {
	cfg       Config
	sessionID string

	conn    *websocket.Conn
	state   atomic.Int32
	events  chan ServerEvent
	writeCh chan codec.Chunk

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	writeMu   sync.Mutex

	logger *slog.Logger
}

func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:       cfg,
		sessionID: uuid.NewString(),
		events:    make(chan ServerEvent, 256),
		writeCh:   make(chan codec.Chunk, 256),
		logger:    logging.NewComponentLogger(slog.Default(), "live"),
	}
	c.state.Store(int32(StateIdle))
	return c
}

func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) State() State {
	return State(c.state.Load())
}

// Events returns the inbound event channel. It is closed when the read
// loop exits, after a terminal Err event or a clean remote close.
func (c *Client) Events() <-chan ServerEvent { return c.events }

// Start dials the endpoint, sends the setup message and waits for the
// server acknowledgment before reporting open. Capture must not begin
// before Start returns.
func (c *Client) Start(ctx context.Context) error {
	if c.cfg.URL == "" {
		return errorsx.Wrap(errors.New("missing endpoint url"), errorsx.ReasonLiveConnect)
	}
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return errorsx.Wrap(errors.New("session already started"), errorsx.ReasonLiveConnect)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx, c.cancel = context.WithCancel(ctx)

	header := http.Header{}
	if c.cfg.APIKey != "" {
		header.Set("x-api-key", c.cfg.APIKey)
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(c.ctx, c.cfg.URL, header)
	if err != nil {
		c.state.Store(int32(StateErrored))
		return errorsx.Wrap(err, errorsx.ReasonLiveConnect)
	}
	c.conn = conn

	setup := setupMessage{Setup: setupBody{
		Model:               c.cfg.Model,
		SystemPrompt:        c.cfg.SystemPrompt,
		Voice:               c.cfg.Voice,
		InputTranscription:  c.cfg.InputTranscription,
		OutputTranscription: c.cfg.OutputTranscription,
	}}
	if err := c.writeJSON(setup); err != nil {
		c.fail(err)
		return errorsx.Wrap(err, errorsx.ReasonLiveConnect)
	}

	if err := c.awaitAck(); err != nil {
		c.fail(err)
		return errorsx.Wrap(err, errorsx.ReasonLiveConnect)
	}

	c.state.Store(int32(StateOpen))
	c.logger.Info("session_open",
		slog.String("session_id", c.sessionID),
		slog.String("voice", c.cfg.Voice))
	go c.readLoop()
	go c.writeLoop()
	return nil
}

func (c *Client) awaitAck() error {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	defer c.conn.SetReadDeadline(time.Time{})
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return err
	}
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	if msg.Error != "" {
		return errors.New(msg.Error)
	}
	if !msg.SetupComplete {
		return errors.New("unexpected message before setup ack")
	}
	return nil
}

// SendAudio forwards one encoded capture block. Sends while the session is
// not open are silently dropped; real-time audio tolerates the loss.
func (c *Client) SendAudio(chunk codec.Chunk) error {
	if c.State() != StateOpen {
		c.logger.Debug("send_dropped_not_open",
			slog.String("session_id", c.sessionID),
			slog.String("state", c.State().String()))
		return nil
	}
	select {
	case c.writeCh <- chunk:
	default:
		c.logger.Debug("send_dropped_buffer_full",
			slog.String("session_id", c.sessionID))
	}
	return nil
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case chunk := <-c.writeCh:
			msg := audioMessage{Audio: &audioPayload{
				MIMEType: chunk.MIMEType(),
				Data:     chunk.Data,
			}}
			if err := c.writeJSON(msg); err != nil {
				c.logger.Debug("send_failed",
					slog.String("session_id", c.sessionID),
					slog.String("error", err.Error()))
			}
		}
	}
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.State() == StateClosed || c.ctx.Err() != nil {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.state.Store(int32(StateClosed))
				c.logger.Info("session_remote_close",
					slog.String("session_id", c.sessionID))
				return
			}
			c.state.Store(int32(StateErrored))
			c.events <- ServerEvent{Err: errorsx.Wrap(err, errorsx.ReasonLiveRecv)}
			return
		}
		ev, ok := c.parse(data)
		if !ok {
			continue
		}
		// Blocking send keeps delivery in emission order.
		c.events <- ev
	}
}

func (c *Client) parse(data []byte) (ServerEvent, bool) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("unparseable_server_message",
			slog.String("session_id", c.sessionID),
			slog.String("error", err.Error()))
		return ServerEvent{}, false
	}
	if msg.SetupComplete {
		return ServerEvent{}, false
	}
	ev := ServerEvent{
		InputTranscript:  msg.InputTranscript,
		OutputTranscript: msg.OutputTranscript,
		TurnComplete:     msg.TurnComplete,
		Interrupted:      msg.Interrupted,
	}
	if msg.Audio != nil {
		ev.Audio = &codec.Chunk{
			Data:       msg.Audio.Data,
			SampleRate: rateFromMIME(msg.Audio.MIMEType),
		}
	}
	return ev, true
}

// Close requests graceful shutdown. Safe to call repeatedly and from error
// handlers; sends after close are no-ops.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.State() != StateErrored {
			c.state.Store(int32(StateClosed))
		}
		if c.cancel != nil {
			c.cancel()
		}
		if c.conn != nil {
			deadline := time.Now().Add(time.Second)
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = c.conn.Close()
		}
		c.logger.Info("session_close", slog.String("session_id", c.sessionID))
	})
	return nil
}

func (c *Client) fail(err error) {
	c.state.Store(int32(StateErrored))
	c.logger.Error("session_error",
		slog.String("session_id", c.sessionID),
		slog.String("reason_code", string(errorsx.Reason(errorsx.Wrap(err, errorsx.ReasonLiveConnect)))),
		slog.String("error", err.Error()))
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func rateFromMIME(mime string) int {
	for _, part := range strings.Split(mime, ";") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "rate="); ok {
			if rate, err := strconv.Atoi(v); err == nil {
				return rate
			}
		}
	}
	return 24000
}

package syncclient

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/goccy/go-json"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrClosed       = errors.New("client closed")
	ErrReplaced     = errors.New("connection replaced by another session")
	ErrLeft         = errors.New("left the room")
	errResync       = errors.New("resync required")
)

type Config struct {
	// URL is the rooms websocket endpoint, e.g. ws://host/api/v1/ws/rooms.
	URL           string
	RoomId        string
	ParticipantId string
	DisplayName   string
	// Player is used to skip seeks within the drift tolerance. Without it
	// every correction seeks.
	Player              Player
	PingInterval        time.Duration
	HandshakeTimeout    time.Duration
	WriteTimeout        time.Duration
	ReorderLimit        int
	ChatLimit           int
	MaxReconnectElapsed time.Duration
	Logger              *slog.Logger
}

func (cfg *Config) setDefaults() {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 5 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.ReorderLimit <= 0 {
		cfg.ReorderLimit = 200
	}
	if cfg.ChatLimit <= 0 {
		cfg.ChatLimit = 50
	}
	if cfg.MaxReconnectElapsed <= 0 {
		cfg.MaxReconnectElapsed = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

type Client struct {
	cfg        Config
	logger     *slog.Logger
	view       *View
	sequencer  *Sequencer
	latency    *LatencyEstimator
	reconciler *Reconciler
	playback   chan Event
	rejections chan RejectedPayload

	mu          sync.Mutex
	conn        *websocket.Conn
	roomId      string
	resumeToken string
	closed      bool
}

func New(cfg Config) *Client {
	cfg.setDefaults()

	return &Client{
		cfg:        cfg,
		logger:     cfg.Logger.With("participant_id", cfg.ParticipantId),
		view:       NewView(cfg.ParticipantId, cfg.ChatLimit),
		sequencer:  NewSequencer(0, cfg.ReorderLimit),
		latency:    NewLatencyEstimator(defaultSmoothing, defaultInitialLatency),
		reconciler: NewReconciler(DefaultDriftTolerance),
		playback:   make(chan Event, 1),
		rejections: make(chan RejectedPayload, 16),
		roomId:     cfg.RoomId,
	}
}

func (c *Client) View() *View {
	return c.view
}

func (c *Client) Latency() *LatencyEstimator {
	return c.latency
}

func (c *Client) RoomId() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.roomId
}

// Rejections delivers proposals the server refused. Stale proposals are never
// reported.
func (c *Client) Rejections() <-chan RejectedPayload {
	return c.rejections
}

// Corrections yields player instructions as playback events arrive. Each
// instruction is computed when it is pulled, so it reflects the player
// position at that moment.
func (c *Client) Corrections(ctx context.Context) iter.Seq[Instruction] {
	events := func(yield func(Event) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-c.playback:
				if !yield(e) {
					return
				}
			}
		}
	}

	return c.reconciler.Corrections(events, c.clock, c.cfg.Player)
}

func (c *Client) clock() (int64, time.Duration) {
	now, _ := c.latency.Now(time.Now().UnixMilli())
	return now, c.latency.OneWay()
}

// Connect joins the room, or resumes the session when a resume token is known,
// and handles the first frame before returning.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	roomId, token := c.roomId, c.resumeToken
	c.mu.Unlock()

	u, err := c.endpoint(roomId, token)
	if err != nil {
		return backoff.Permanent(err)
	}

	header := http.Header{}
	header.Set("St-Participant-Id", c.cfg.ParticipantId)
	header.Set("St-Display-Name", c.cfg.DisplayName)

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	conn, resp, err := websocket.Dial(dialCtx, u, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(fmt.Errorf("server refused connection with status %d: %w", resp.StatusCode, err))
		}
		return fmt.Errorf("failed to dial: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	var f frame
	if err := wsjson.Read(dialCtx, conn, &f); err != nil {
		conn.CloseNow()
		return fmt.Errorf("failed to read first frame: %w", err)
	}
	if err := c.handleFrame(ctx, conn, f); err != nil {
		conn.CloseNow()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return nil
}

func (c *Client) endpoint(roomId, token string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(c.cfg.URL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if roomId != "" {
		u = u.JoinPath(roomId)
	}

	if token != "" {
		query := u.Query()
		query.Set("resume-token", token)
		if next := c.view.NextSeq(); next > 0 {
			query.Set("last-seq", strconv.FormatUint(next-1, 10))
		}
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}

// Run reads from the connection until ctx is done or the session ends,
// reconnecting with exponential backoff when the transport fails.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.serve(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch websocket.CloseStatus(err) {
		case closeReplaced:
			return ErrReplaced
		case closeLeft:
			return ErrLeft
		}

		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return ErrClosed
		}

		c.logger.InfoContext(ctx, "connection lost, reconnecting", "error", err)

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 100 * time.Millisecond
		bo.MaxElapsedTime = c.cfg.MaxReconnectElapsed
		if err := backoff.RetryNotify(func() error {
			return c.Connect(ctx)
		}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
			c.logger.DebugContext(ctx, "reconnect failed", "error", err, "next", next)
		}); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}
}

func (c *Client) serve(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.pingLoop(ctx, conn)

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			conn.CloseNow()
			return err
		}

		if err := c.handleFrame(ctx, conn, f); err != nil {
			if errors.Is(err, errResync) {
				conn.Close(closeResyncRequired, "resync required")
			} else {
				conn.CloseNow()
			}
			return err
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		if err := c.write(ctx, conn, "PING", pingPayload{ClientTime: time.Now().UnixMilli()}); err != nil {
			c.logger.DebugContext(ctx, "failed to ping", "error", err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Client) handleFrame(ctx context.Context, conn *websocket.Conn, f frame) error {
	switch f.Type {
	case "JOINED":
		var p joinedPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode %s: %w", f.Type, err)
		}
		c.latency.Seed(p.RoomTime, time.Now().UnixMilli())
		c.setSession(p.Snapshot.RoomId, p.ResumeToken, p.DriftTolerance)
		c.restart(p.Snapshot, p.RecentChat)
	case "RESUMED":
		var p resumedPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode %s: %w", f.Type, err)
		}
		c.latency.Seed(p.RoomTime, time.Now().UnixMilli())
		c.setSession("", p.ResumeToken, p.DriftTolerance)
		if p.Snapshot != nil {
			c.restart(*p.Snapshot, p.RecentChat)
			return nil
		}
		c.sequencer.Reset(c.view.NextSeq())
		for _, e := range p.Events {
			if err := c.handleEvent(ctx, conn, e); err != nil {
				return err
			}
		}
	case "EVENT":
		var e Event
		if err := json.Unmarshal(f.Payload, &e); err != nil {
			return fmt.Errorf("failed to decode %s: %w", f.Type, err)
		}
		return c.handleEvent(ctx, conn, e)
	case "PONG":
		var p pongPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode %s: %w", f.Type, err)
		}
		c.latency.Observe(p.ClientTime, p.RoomTime, time.Now().UnixMilli())
	case "REJECTED":
		var p RejectedPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode %s: %w", f.Type, err)
		}
		if p.Nonce != "" {
			c.view.Discard(p.Nonce)
		}
		select {
		case c.rejections <- p:
		default:
			c.logger.DebugContext(ctx, "rejection dropped", "reason", p.Reason)
		}
	case "ERROR":
		var p errorPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode %s: %w", f.Type, err)
		}
		c.logger.InfoContext(ctx, "server error", "message", p.Message, "retryable", p.Retryable)
	default:
		c.logger.DebugContext(ctx, "unknown frame", "type", f.Type)
	}

	return nil
}

func (c *Client) setSession(roomId, token string, tolerance float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if roomId != "" {
		c.roomId = roomId
	}
	c.resumeToken = token
	c.reconciler.SetTolerance(tolerance)
}

func (c *Client) restart(snapshot Snapshot, recentChat []Event) {
	c.view.Reset(snapshot, recentChat)
	c.sequencer.Reset(snapshot.NextSeq)

	var seq uint64
	if snapshot.NextSeq > 0 {
		seq = snapshot.NextSeq - 1
	}
	playback := snapshot.Playback
	c.offerPlayback(Event{Seq: seq, Playback: &playback})
}

func (c *Client) handleEvent(ctx context.Context, conn *websocket.Conn, e Event) error {
	released, err := c.sequencer.Push(e)
	if err != nil {
		return fmt.Errorf("%w: %w", errResync, err)
	}
	if len(released) == 0 {
		return nil
	}

	for _, e := range released {
		if err := c.view.Apply(e); err != nil {
			return fmt.Errorf("%w: %w", errResync, err)
		}
		if e.Playback != nil {
			c.offerPlayback(e)
		}
	}

	last := released[len(released)-1].Seq
	if err := c.write(ctx, conn, "ACK", ackPayload{Seq: last}); err != nil {
		c.logger.DebugContext(ctx, "failed to ack", "seq", last, "error", err)
	}

	return nil
}

// offerPlayback keeps only the newest playback event; instructions are
// absolute, so older ones are obsolete.
func (c *Client) offerPlayback(e Event) {
	for {
		select {
		case c.playback <- e:
			return
		default:
		}

		select {
		case <-c.playback:
		default:
		}
	}
}

func (c *Client) write(ctx context.Context, conn *websocket.Conn, typ string, payload any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	defer cancel()

	return wsjson.Write(ctx, conn, outFrame{Type: typ, Payload: payload})
}

func (c *Client) send(ctx context.Context, typ string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	return c.write(ctx, conn, typ, payload)
}

func (c *Client) Propose(ctx context.Context, t EventType, payload Payload) error {
	return c.send(ctx, "PROPOSE", proposePayload{Type: t, Payload: payload})
}

func (c *Client) Load(ctx context.Context, videoRef string) error {
	return c.Propose(ctx, EventLoad, Payload{VideoRef: &videoRef})
}

func (c *Client) Play(ctx context.Context) error {
	return c.Propose(ctx, EventPlay, Payload{})
}

func (c *Client) Pause(ctx context.Context) error {
	return c.Propose(ctx, EventPause, Payload{})
}

func (c *Client) Seek(ctx context.Context, position float64) error {
	return c.Propose(ctx, EventSeek, Payload{Position: &position})
}

// SendChat shows the message in the view right away and proposes it. The
// tentative copy is replaced when the commit arrives.
func (c *Client) SendChat(ctx context.Context, text string) (string, error) {
	nonce := c.view.AddTentative(text)
	if err := c.Propose(ctx, EventChat, Payload{Text: text, Nonce: nonce}); err != nil {
		c.view.Discard(nonce)
		return "", err
	}

	return nonce, nil
}

func (c *Client) Promote(ctx context.Context, participantId string) error {
	return c.send(ctx, "PROMOTE", promotePayload{ParticipantId: participantId})
}

// Leave removes the participant from the room. Run returns ErrLeft once the
// server closes the connection.
func (c *Client) Leave(ctx context.Context) error {
	return c.send(ctx, "LEAVE", struct{}{})
}

// Close drops the connection without leaving; the server keeps the
// participant for its reconnect grace.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	return conn.Close(websocket.StatusNormalClosure, "client close")
}

package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"audio2subs/internal/logging"
	"audio2subs/internal/services"
)

// ErrClosed is returned for commands issued after the connection ended.
var ErrClosed = errors.New("mpv connection closed")

// CommandError is an mpv reply whose error field is not "success".
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("mpv %s: %s", e.Command, e.Message)
}

// IsUnavailable reports whether err is mpv's "property unavailable" reply,
// which mpv returns for properties that have no value yet.
func IsUnavailable(err error) bool {
	var cmdErr *CommandError
	return errors.As(err, &cmdErr) && cmdErr.Message == "property unavailable"
}

// Event is an asynchronous message from mpv.
type Event struct {
	// Name is the mpv event name, for example "property-change" or "shutdown".
	Name string
	// ID is the observer id for property-change events.
	ID       int
	Property string
	Data     json.RawMessage
	Args     []string
	Reason   string
}

// Float decodes Data as a number.
func (e Event) Float() (float64, bool) {
	var v float64
	if len(e.Data) == 0 || json.Unmarshal(e.Data, &v) != nil {
		return 0, false
	}
	return v, true
}

// Bool decodes Data as a boolean.
func (e Event) Bool() (bool, bool) {
	var v bool
	if len(e.Data) == 0 || json.Unmarshal(e.Data, &v) != nil {
		return false, false
	}
	return v, true
}

// String decodes Data as a string.
func (e Event) String() (string, bool) {
	var v string
	if len(e.Data) == 0 || json.Unmarshal(e.Data, &v) != nil {
		return "", false
	}
	return v, true
}

type message struct {
	RequestID *int64          `json:"request_id,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Event     string          `json:"event,omitempty"`
	ID        int             `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Args      []string        `json:"args,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

const maxMessageBytes = 4 << 20

// Client is one IPC connection.
type Client struct {
	conn   net.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	nextID  atomic.Int64

	mu       sync.Mutex
	pending  map[int64]chan message
	queue    []Event
	readDone bool
	readErr  error

	wake      chan struct{}
	done      chan struct{}
	stop      chan struct{}
	events    chan Event
	closeOnce sync.Once
}

// Dial connects to the socket at path.
func Dial(ctx context.Context, path string, logger *slog.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "mpv", "dial", path, err)
	}
	return newClient(conn, logger), nil
}

// DialRetry keeps dialing until the socket accepts a connection, timeout
// elapses or ctx is cancelled. mpv creates the socket shortly after start.
func DialRetry(ctx context.Context, path string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	waiting := false
	for {
		client, err := Dial(ctx, path, logger)
		if err == nil {
			return client, nil
		}
		if !waiting {
			logging.NewComponentLogger(logger, "mpv").Info("waiting for mpv socket",
				logging.String("socket", path),
				logging.Duration("timeout", timeout),
			)
			waiting = true
		}
		if time.Now().After(deadline) {
			if _, statErr := os.Stat(path); statErr != nil {
				return nil, services.Wrap(services.ErrTimeout, "mpv", "dial", "socket never appeared: "+path, statErr)
			}
			return nil, services.Wrap(services.ErrTimeout, "mpv", "dial", "socket refused connections: "+path, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func newClient(conn net.Conn, logger *slog.Logger) *Client {
	c := &Client{
		conn:    conn,
		logger:  logging.NewComponentLogger(logger, "mpv"),
		pending: make(map[int64]chan message),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
		events:  make(chan Event),
	}
	go c.readLoop()
	go c.pump()
	return c
}

// Events delivers mpv events in arrival order. The channel closes when the
// connection ends or Close is called.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed once the connection has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the read loop, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// Close tears the connection down. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		err = c.conn.Close()
	})
	return err
}

// Command sends one command and waits for its reply data.
func (c *Client) Command(ctx context.Context, args ...any) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, services.Wrap(services.ErrValidation, "mpv", "command", "empty command", nil)
	}
	id := c.nextID.Add(1)
	reply := make(chan message, 1)

	c.mu.Lock()
	if c.readDone {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	payload, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("encode mpv command: %w", err)
	}
	payload = append(payload, '\n')

	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Time{})
	}
	_, err = c.conn.Write(payload)
	c.writeMu.Unlock()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "mpv", "command", fmt.Sprint(args[0]), err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-reply:
		if !ok {
			return nil, ErrClosed
		}
		if msg.Error != "" && msg.Error != "success" {
			return nil, &CommandError{Command: fmt.Sprint(args[0]), Message: msg.Error}
		}
		return msg.Data, nil
	}
}

// GetProperty decodes the named property into out.
func (c *Client) GetProperty(ctx context.Context, name string, out any) error {
	data, err := c.Command(ctx, "get_property", name)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode mpv property %s: %w", name, err)
	}
	return nil
}

// SetProperty assigns value to the named property.
func (c *Client) SetProperty(ctx context.Context, name string, value any) error {
	_, err := c.Command(ctx, "set_property", name, value)
	return err
}

// ObserveProperty asks mpv to emit property-change events for name tagged
// with id.
func (c *Client) ObserveProperty(ctx context.Context, id int, name string) error {
	_, err := c.Command(ctx, "observe_property", id, name)
	return err
}

// ScriptMessage broadcasts a script-message to mpv scripts.
func (c *Client) ScriptMessage(ctx context.Context, args ...string) error {
	cmd := make([]any, 0, len(args)+1)
	cmd = append(cmd, "script-message")
	for _, a := range args {
		cmd = append(cmd, a)
	}
	_, err := c.Command(ctx, cmd...)
	return err
}

// ShowText displays text on the OSD for d.
func (c *Client) ShowText(ctx context.Context, text string, d time.Duration) error {
	_, err := c.Command(ctx, "show-text", text, d.Milliseconds())
	return err
}

func (c *Client) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), maxMessageBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			c.logger.Debug("ignoring malformed mpv message", logging.Error(err))
			continue
		}
		c.dispatch(msg)
	}

	c.mu.Lock()
	c.readDone = true
	c.readErr = scanner.Err()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	close(c.done)
}

func (c *Client) dispatch(msg message) {
	if msg.Event == "" {
		if msg.RequestID == nil {
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[*msg.RequestID]
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
		return
	}
	ev := Event{
		Name:     msg.Event,
		ID:       msg.ID,
		Property: msg.Name,
		Data:     msg.Data,
		Args:     msg.Args,
		Reason:   msg.Reason,
	}
	c.mu.Lock()
	c.queue = append(c.queue, ev)
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// pump moves queued events to the consumer channel.
func (c *Client) pump() {
	defer close(c.events)
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			finished := c.readDone
			c.mu.Unlock()
			if finished {
				return
			}
			select {
			case <-c.wake:
			case <-c.done:
			case <-c.stop:
				return
			}
			continue
		}
		ev := c.queue[0]
		c.queue[0] = Event{}
		c.queue = c.queue[1:]
		c.mu.Unlock()

		select {
		case c.events <- ev:
		case <-c.stop:
			return
		}
	}
}

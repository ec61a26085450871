// Package delivery pushes encoded telemetry to the remote endpoint with a
// hand-written HTTP/1.1 exchange over a plain TCP connection.
package delivery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"

	"github.com/relabs-tech/agri_node/internal/clock"
)

var (
	ErrConnect           = errors.New("connection to server failed")
	ErrNoResponse        = errors.New("no HTTP response line")
	ErrAttemptsExhausted = errors.New("delivery attempts exhausted")
)

// DefaultReadTimeout bounds every read of the response so a keep-alive
// server cannot hold the connection open.
const DefaultReadTimeout = 200 * time.Millisecond

// Mode selects the retry behaviour of Deliver.
type Mode int

const (
	// FireAndForget makes one attempt and logs whatever comes back.
	FireAndForget Mode = iota
	// UntilResponse retries until the server answers with an HTTP status line.
	UntilResponse
)

func (m Mode) String() string {
	switch m {
	case FireAndForget:
		return "fire-and-forget"
	case UntilResponse:
		return "until-response"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// Target is the static remote endpoint. PathTemplate may contain {id}.
type Target struct {
	Host         string
	Port         int
	Method       string
	PathTemplate string
}

// Path expands the template for one entity.
func (t Target) Path(entityID string) string {
	return strings.ReplaceAll(t.PathTemplate, "{id}", entityID)
}

// Addr is host:port.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Dialer opens the TCP connection. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Outcome reports what happened during one Deliver call.
type Outcome struct {
	Attempts   int
	StatusLine string
	Delivered  bool
}

// Client delivers payloads to a Target.
type Client struct {
	Dialer      Dialer
	Clock       clock.Clock
	Mode        Mode
	Policy      RetryPolicy
	Settle      time.Duration // wait between writing the request and reading the reply
	PostPause   time.Duration // pause after a successful UntilResponse delivery
	ReadTimeout time.Duration // zero means DefaultReadTimeout
	Logger      *log.Logger
}

// NewClient returns a client with the timings of the field node.
func NewClient(mode Mode, logger *log.Logger) *Client {
	return &Client{
		Dialer:      &net.Dialer{},
		Clock:       clock.Real(),
		Mode:        mode,
		Policy:      Unlimited(),
		Settle:      500 * time.Millisecond,
		PostPause:   2 * time.Second,
		ReadTimeout: DefaultReadTimeout,
		Logger:      logger,
	}
}

// Deliver sends payload for entityID to target following the client's mode.
func (c *Client) Deliver(ctx context.Context, target Target, entityID string, payload []byte) (Outcome, error) {
	if c.Mode == FireAndForget {
		out := Outcome{Attempts: 1}
		line, err := c.attempt(ctx, target, entityID, payload)
		out.StatusLine = line
		if err != nil {
			c.logger().Warn("delivery failed", "target", target.Addr(), "err", err)
			return out, err
		}
		out.Delivered = strings.HasPrefix(line, "HTTP")
		if !out.Delivered {
			return out, ErrNoResponse
		}
		return out, nil
	}

	b := c.Policy.newBackOff()
	var out Outcome
	for {
		out.Attempts++
		line, err := c.attempt(ctx, target, entityID, payload)
		if err == nil {
			out.StatusLine = line
			out.Delivered = true
			return out, c.Clock.Sleep(ctx, c.PostPause)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		if errors.Is(err, ErrConnect) {
			c.logger().Warn("could not connect to server, retrying", "target", target.Addr(), "attempt", out.Attempts)
		} else {
			c.logger().Warn("no response from server, retrying", "entity", entityID, "attempt", out.Attempts)
		}

		next := b.NextBackOff()
		if next == backoff.Stop {
			return out, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, out.Attempts, err)
		}
		if err := c.Clock.Sleep(ctx, next); err != nil {
			return out, err
		}
	}
}

// attempt performs one request/response exchange and returns the first
// response line. In UntilResponse mode a line not starting with "HTTP" is an
// error. Lines after the first are drained into the debug log.
func (c *Client) attempt(ctx context.Context, target Target, entityID string, payload []byte) (string, error) {
	conn, err := c.Dialer.DialContext(ctx, "tcp", target.Addr())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConnect, err)
	}
	defer conn.Close()

	if _, err := conn.Write(Request(target, entityID, payload)); err != nil {
		return "", fmt.Errorf("%w: write request: %w", ErrConnect, err)
	}
	c.logger().Debug("request sent", "entity", entityID, "body", string(payload))

	if err := c.Clock.Sleep(ctx, c.Settle); err != nil {
		return "", err
	}

	timeout := c.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	r := bufio.NewReader(conn)
	line, err := readLine(r)
	if line == "" && err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoResponse, err)
	}
	c.logger().Info(line)
	if c.Mode == UntilResponse && !strings.HasPrefix(line, "HTTP") {
		return line, ErrNoResponse
	}

	for err == nil {
		var rest string
		rest, err = readLine(r)
		if rest != "" {
			c.logger().Debug(rest)
		}
	}
	return line, nil
}

// Request renders the raw request bytes.
func Request(target Target, entityID string, payload []byte) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s HTTP/1.1\r\n", target.Method, target.Path(entityID))
	fmt.Fprintf(&sb, "Host: %s\r\n", target.Host)
	sb.WriteString("Content-Type: application/json\r\n")
	fmt.Fprintf(&sb, "Content-Length: %d\r\n", len(payload))
	sb.WriteString("\r\n")
	sb.Write(payload)
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

func (c *Client) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

package delivery

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/agri_node/internal/clock"
)

type fakeConn struct {
	in     *strings.Reader
	out    bytes.Buffer
	closed bool
}

func (c *fakeConn) Read(p []byte) (int, error) { return c.in.Read(p) }
func (c *fakeConn) Write(p []byte) (int, error) { return c.out.Write(p) }
func (c *fakeConn) Close() error { c.closed = true; return nil }
func (c *fakeConn) LocalAddr() net.Addr { return &net.TCPAddr{} }
func (c *fakeConn) RemoteAddr() net.Addr { return &net.TCPAddr{} }
func (c *fakeConn) SetDeadline(time.Time) error { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

// scriptedDialer fails the first failures dials, then answers every
// connection with reply.
type scriptedDialer struct {
	failures int
	reply    string
	dials    int
	addrs    []string
	conns    []*fakeConn
}

func (d *scriptedDialer) DialContext(_ context.Context, _, addr string) (net.Conn, error) {
	d.dials++
	d.addrs = append(d.addrs, addr)
	if d.dials <= d.failures {
		return nil, errors.New("connection refused")
	}
	c := &fakeConn{in: strings.NewReader(d.reply)}
	d.conns = append(d.conns, c)
	return c, nil
}

var ngsiTarget = Target{Host: "192.168.1.10", Port: 1026, Method: "PATCH", PathTemplate: "/v2/entities/{id}/attrs"}

func newTestClient(mode Mode, d Dialer, clk clock.Clock) *Client {
	c := NewClient(mode, log.New(io.Discard))
	c.Dialer = d
	c.Clock = clk
	return c
}

func TestDeliverRetriesUntilResponse(t *testing.T) {
	d := &scriptedDialer{failures: 2, reply: "HTTP/1.1 204 No Content\r\nDate: today\r\n\r\n"}
	clk := clock.NewFake(time.Unix(0, 0))
	c := newTestClient(UntilResponse, d, clk)

	out, err := c.Deliver(context.Background(), ngsiTarget, "sensorLuz", []byte(`{"luz":{"type":"numeric","value":12}}`))
	require.NoError(t, err)
	assert.Equal(t, 3, out.Attempts)
	assert.True(t, out.Delivered)
	assert.Equal(t, "HTTP/1.1 204 No Content", out.StatusLine)
	assert.Equal(t, 3, d.dials)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 500 * time.Millisecond, 2 * time.Second}, clk.Sleeps())
	require.Len(t, d.conns, 1)
	assert.True(t, d.conns[0].closed)
}

func TestDeliverRetriesGarbledResponse(t *testing.T) {
	d := &scriptedDialer{reply: "garbage\r\n"}
	clk := clock.NewFake(time.Unix(0, 0))
	c := newTestClient(UntilResponse, d, clk)
	c.Policy = Capped(time.Second, 3)

	out, err := c.Deliver(context.Background(), ngsiTarget, "sensorGPS", []byte(`{}`))
	require.ErrorIs(t, err, ErrAttemptsExhausted)
	require.ErrorIs(t, err, ErrNoResponse)
	assert.Equal(t, 3, out.Attempts)
	assert.False(t, out.Delivered)
	assert.Equal(t, 3, d.dials)
}

func TestDeliverCappedPolicyConnectFailure(t *testing.T) {
	d := &scriptedDialer{failures: 100}
	c := newTestClient(UntilResponse, d, clock.NewFake(time.Unix(0, 0)))
	c.Policy = Capped(time.Second, 2)

	out, err := c.Deliver(context.Background(), ngsiTarget, "sensorLuz", []byte(`{}`))
	require.ErrorIs(t, err, ErrAttemptsExhausted)
	require.ErrorIs(t, err, ErrConnect)
	assert.Equal(t, 2, out.Attempts)
}

func TestDeliverStopsOnCancel(t *testing.T) {
	d := &scriptedDialer{failures: 100}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newTestClient(UntilResponse, d, clock.NewFake(time.Unix(0, 0)))

	_, err := c.Deliver(ctx, ngsiTarget, "sensorLuz", []byte(`{}`))
	require.ErrorIs(t, err, context.Canceled)
}

func TestDeliverFireAndForgetNoRetry(t *testing.T) {
	d := &scriptedDialer{failures: 1, reply: "HTTP/1.1 200 OK\r\n"}
	c := newTestClient(FireAndForget, d, clock.NewFake(time.Unix(0, 0)))
	target := Target{Host: "10.0.0.5", Port: 80, Method: "POST", PathTemplate: "/update_data"}

	out, err := c.Deliver(context.Background(), target, "", []byte(`{}`))
	require.ErrorIs(t, err, ErrConnect)
	assert.Equal(t, 1, out.Attempts)
	assert.False(t, out.Delivered)
	assert.Equal(t, 1, d.dials)
}

func TestDeliverFireAndForgetSuccess(t *testing.T) {
	d := &scriptedDialer{reply: "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"}
	clk := clock.NewFake(time.Unix(0, 0))
	c := newTestClient(FireAndForget, d, clk)
	target := Target{Host: "10.0.0.5", Port: 80, Method: "POST", PathTemplate: "/update_data"}

	out, err := c.Deliver(context.Background(), target, "", []byte(`{"id":"point06"}`))
	require.NoError(t, err)
	assert.True(t, out.Delivered)
	assert.Equal(t, []string{"10.0.0.5:80"}, d.addrs)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, clk.Sleeps())
}

func TestRequestWireFormat(t *testing.T) {
	body := []byte(`{"temperatura":{"type":"numeric","value":25.5}}`)
	got := string(Request(ngsiTarget, "sensorTemperatura", body))

	want := "PATCH /v2/entities/sensorTemperatura/attrs HTTP/1.1\r\n" +
		"Host: 192.168.1.10\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-Length: 47\r\n" +
		"\r\n" +
		string(body) + "\r\n"
	assert.Equal(t, want, got)
}

func TestDeliverWritesRequest(t *testing.T) {
	d := &scriptedDialer{reply: "HTTP/1.1 204 No Content\r\n"}
	c := newTestClient(UntilResponse, d, clock.NewFake(time.Unix(0, 0)))

	_, err := c.Deliver(context.Background(), ngsiTarget, "sensorHumedad", []byte(`{}`))
	require.NoError(t, err)
	require.Len(t, d.conns, 1)
	assert.True(t, strings.HasPrefix(d.conns[0].out.String(), "PATCH /v2/entities/sensorHumedad/attrs HTTP/1.1\r\n"))
	assert.Equal(t, []string{"192.168.1.10:1026"}, d.addrs)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "fire-and-forget", FireAndForget.String())
	assert.Equal(t, "until-response", UntilResponse.String())
}

type pipeDialer struct{ conn net.Conn }

func (d pipeDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	return d.conn, nil
}

func TestDeliverKeepAliveServerDoesNotBlock(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	go func() {
		buf := make([]byte, 4096)
		if _, err := server.Read(buf); err != nil {
			return
		}
		// answer, then keep the connection open like a keep-alive server
		_, _ = server.Write([]byte("HTTP/1.1 204 No Content\r\nConnection: Keep-Alive\r\n"))
	}()

	c := newTestClient(UntilResponse, pipeDialer{conn: client}, clock.NewFake(time.Unix(0, 0)))
	c.ReadTimeout = 0

	done := make(chan Outcome, 1)
	go func() {
		out, err := c.Deliver(context.Background(), ngsiTarget, "sensorLuz", []byte(`{}`))
		assert.NoError(t, err)
		done <- out
	}()

	select {
	case out := <-done:
		assert.True(t, out.Delivered)
		assert.Equal(t, "HTTP/1.1 204 No Content", out.StatusLine)
	case <-time.After(5 * time.Second):
		t.Fatal("Deliver blocked on an open connection")
	}
}

package stompy

import (
	"net"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/batchcorp/stompy/frame"
)

// testBroker is the broker half of an in-memory session. net.Pipe is
// unbuffered, so every client write blocks until the broker reads it,
// which is what lets the tests observe wire ordering.
type testBroker struct {
	conn   net.Conn
	reader *frame.Reader
	writer *frame.Writer
}

func newTestBroker(conn net.Conn) *testBroker {
	return &testBroker{
		conn:   conn,
		reader: frame.NewReader(conn),
		writer: frame.NewWriter(conn),
	}
}

func (b *testBroker) read(t *testing.T) *frame.Frame {
	t.Helper()

	f, err := b.reader.Read()
	if err != nil {
		t.Fatalf("broker read failed: %s", err)
	}

	return f
}

func (b *testBroker) write(t *testing.T, f *frame.Frame) {
	t.Helper()

	if err := b.writer.Write(f); err != nil {
		t.Fatalf("broker write failed: %s", err)
	}
}

// readAll collects frames until the peer closes the connection.
func (b *testBroker) readAll() []*frame.Frame {
	var frames []*frame.Frame
	for {
		f, err := b.reader.Read()
		if err != nil {
			return frames
		}
		if f != nil {
			frames = append(frames, f)
		}
	}
}

// expectSilence asserts no more bytes arrive from the client within d.
func (b *testBroker) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()

	_ = b.conn.SetReadDeadline(time.Now().Add(d))
	defer b.conn.SetReadDeadline(time.Time{})

	if f, err := b.reader.Read(); err == nil {
		t.Fatalf("expected no frame, broker received %s", f.Command)
	}
}

func (b *testBroker) close() {
	_ = b.conn.Close()
}

// dialTestClient establishes a client/broker pair over net.Pipe and runs
// the CONNECT handshake.
func dialTestClient(t *testing.T, opts *Options) (*Client, *testBroker) {
	t.Helper()
	g := NewGomegaWithT(t)

	clientConn, brokerConn := net.Pipe()
	broker := newTestBroker(brokerConn)

	type result struct {
		client *Client
		err    error
	}
	done := make(chan result, 1)

	go func() {
		c, err := ConnectConn(clientConn, opts)
		done <- result{client: c, err: err}
	}()

	connect := broker.read(t)
	g.Expect(connect.Command).To(Equal(frame.CONNECT))

	broker.write(t, frame.New(frame.CONNECTED,
		frame.Version, "1.2",
		frame.Session, "session-1",
		frame.Server, "test-broker/0.1",
	))

	r := <-done
	g.Expect(r.err).ToNot(HaveOccurred())
	g.Expect(r.client.State()).To(Equal(StateConnected))

	return r.client, broker
}

// messageFrame builds a broker-side MESSAGE frame for a subscription.
func messageFrame(subID, ackID, body string) *frame.Frame {
	f := frame.New(frame.MESSAGE,
		frame.Subscription, subID,
		frame.MessageId, "m-1",
		frame.Destination, "/queue/test",
	)
	if ackID != "" {
		f.Header.Add(frame.Ack, ackID)
	}
	f.Body = []byte(body)
	return f
}

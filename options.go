package stompy

import (
	"time"

	"github.com/batchcorp/stompy/frame"
	"github.com/pkg/errors"
)

// How long to wait for a single broker address to accept a TCP connection
// before moving on to the next one.
const DefaultConnectTimeout = 30 * time.Second

// Options determines how the client connects and should be passed to
// Connect or ConnectConn. Only Addresses is required (and only by
// Connect); everything else falls back to sane defaults.
type Options struct {
	// Broker addresses ("host:port"), attempted in order.
	Addresses []string

	// Virtual host name for the CONNECT frame; defaults to the host part
	// of the dialed address.
	Host string

	// Credentials; omitted from the CONNECT frame when empty.
	Login    string
	Passcode string

	// Additional CONNECT headers.
	Header *frame.Header

	// Per-address TCP connect timeout. Defaults to DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// Heart-beat intervals offered to the broker: how often the client
	// could send and how often it wants to receive. Zero disables.
	SendHeartBeat time.Duration
	RecvHeartBeat time.Duration

	// Codec buffer sizes; zero means the frame package default.
	ReadBufferSize  int
	WriteBufferSize int
}

// ValidateOptions checks the options passed to Connect and applies
// defaults.
func ValidateOptions(opts *Options) error {
	if opts == nil {
		return errors.New("options cannot be nil")
	}

	if len(opts.Addresses) == 0 {
		return ErrNoAddresses
	}

	applyDefaults(opts)
	return nil
}

func applyDefaults(opts *Options) {
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
}

// SubscribeOptions determines how a subscription is created.
type SubscribeOptions struct {
	// Required; the queue or topic to subscribe to.
	Destination string

	// Acknowledgement mode; defaults to AckAuto.
	AckMode AckMode

	// Subscription id; generated when empty.
	ID string

	// Additional SUBSCRIBE headers.
	Header *frame.Header

	// ManualAck disables the engine's automatic ACK/NACK for this
	// subscription even when AckMode is not AckAuto; the application
	// calls Ack/Nack itself.
	ManualAck bool
}

// ValidateSubscribeOptions checks the options passed to Subscribe.
func ValidateSubscribeOptions(opts *SubscribeOptions) error {
	if opts == nil {
		return errors.New("subscribe options cannot be nil")
	}

	if opts.Destination == "" {
		return errors.New("subscribe destination cannot be empty")
	}

	return nil
}

// LoopOptions determines how Loop and Receive behave. The zero value is
// an unbounded loop with no transaction association.
type LoopOptions struct {
	// Transaction id attached to automatic ACK/NACK frames.
	Transaction string

	// Per-receive deadline. Zero blocks indefinitely. When the deadline
	// elapses Loop fails with ErrReadTimeout rather than stopping
	// cleanly.
	Timeout time.Duration
}

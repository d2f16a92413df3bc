// Package stompy is a STOMP 1.0/1.1/1.2 client library that comes with:
//
// * Subscriptions with auto, client and client-individual ack modes
//
// * Transactions with strict send-before-commit ordering
//
// * Receipt correlation for receipted frames
//
// * A blocking dispatch loop with handler callbacks and timeouts
//
// The client owns a single transport and expects a single logical reader:
// exactly one of Recv, Receive, Loop or Consume may be consuming frames at
// a time. Sends are safe from other goroutines while a reader is blocked.
//
// A session is established with Connect (which dials) or ConnectConn
// (which performs the STOMP handshake over a caller-supplied transport,
// for example a TLS connection).
package stompy

import (
	"io"
	"net"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Protocol versions offered to the broker in the CONNECT frame.
const acceptedVersions = "1.0,1.1,1.2"

// Connect dials the broker addresses in opts in order and performs the
// STOMP connect sequence on the first address that accepts a TCP
// connection. A transport-level failure moves on to the next address; a
// broker that answers the handshake with an ERROR frame fails the connect
// immediately with a *BrokerError. When every address has failed the
// returned error wraps ErrConnect.
func Connect(opts *Options) (*Client, error) {
	if err := ValidateOptions(opts); err != nil {
		return nil, errors.Wrap(err, "unable to validate options")
	}

	log := logrus.WithField("pkg", "stompy")

	var lastErr error

	for _, addr := range opts.Addresses {
		conn, err := net.DialTimeout("tcp", addr, opts.ConnectTimeout)
		if err != nil {
			log.Warnf("Unable to dial '%s': %s", addr, err)
			lastErr = err
			continue
		}

		host := opts.Host
		if host == "" {
			if host, _, err = net.SplitHostPort(addr); err != nil {
				host = addr
			}
		}

		c := newClient(conn, opts, log)

		if err := c.handshake(host); err != nil {
			_ = conn.Close()

			// The broker spoke STOMP and refused us; trying the next
			// address would only repeat the refusal.
			var brokerErr *BrokerError
			if errors.As(err, &brokerErr) {
				return nil, err
			}

			log.Warnf("Handshake with '%s' failed: %s", addr, err)
			lastErr = err
			continue
		}

		log.Debugf("Connected to '%s' (session '%s')", addr, c.Session())

		return c, nil
	}

	if lastErr != nil {
		return nil, errors.Wrap(ErrConnect, lastErr.Error())
	}

	return nil, ErrConnect
}

// ConnectConn performs the STOMP connect sequence over a transport the
// caller has already established. The client borrows the transport for
// the life of the session and closes it on disconnect or failure.
//
// Receive timeouts require the transport to implement SetReadDeadline
// (net.Conn and net.Pipe both do).
func ConnectConn(conn io.ReadWriteCloser, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}
	applyDefaults(opts)

	host := opts.Host
	if host == "" {
		host = "default"
	}

	c := newClient(conn, opts, logrus.WithField("pkg", "stompy"))

	if err := c.handshake(host); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return c, nil
}

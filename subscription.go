package stompy

import (
	"github.com/batchcorp/stompy/frame"
	"github.com/pkg/errors"
)

// Subscription is a registered interest in a destination. Incoming
// MESSAGE frames carry the subscription id, which the receive path uses
// to decide whether (and how) to acknowledge automatically.
type Subscription struct {
	ID          string
	Destination string
	AckMode     AckMode
	ManualAck   bool

	client *Client
}

// Subscribe registers a subscription and sends the SUBSCRIBE frame. An id
// is generated when opts.ID is empty. Subscribing to the same destination
// twice creates two independent subscriptions.
func (c *Client) Subscribe(opts *SubscribeOptions) (*Subscription, error) {
	if err := ValidateSubscribeOptions(opts); err != nil {
		return nil, errors.Wrap(err, "unable to validate subscribe options")
	}

	id := opts.ID
	if id == "" {
		id = newID("s")
	}

	f := frame.New(frame.SUBSCRIBE,
		frame.Id, id,
		frame.Destination, opts.Destination,
		frame.Ack, opts.AckMode.String(),
	)
	f.Header.AddHeader(opts.Header)

	sub := &Subscription{
		ID:          id,
		Destination: opts.Destination,
		AckMode:     opts.AckMode,
		ManualAck:   opts.ManualAck,
		client:      c,
	}

	// Register before sending: the broker may start delivering the
	// moment the SUBSCRIBE frame lands.
	c.mu.Lock()
	c.subscriptions[id] = sub
	c.mu.Unlock()

	if err := c.sendFrame(f); err != nil {
		c.mu.Lock()
		delete(c.subscriptions, id)
		c.mu.Unlock()
		return nil, err
	}

	c.log.Debugf("Subscribed to '%s' (id '%s', ack '%s')", opts.Destination, id, opts.AckMode)

	return sub, nil
}

// Unsubscribe removes a subscription and sends the UNSUBSCRIBE frame. An
// unknown id is a no-op, so tearing down an already-closed session is not
// an error.
func (c *Client) Unsubscribe(id string) error {
	c.mu.Lock()
	_, ok := c.subscriptions[id]
	delete(c.subscriptions, id)
	c.mu.Unlock()

	if !ok {
		return nil
	}

	f := frame.New(frame.UNSUBSCRIBE, frame.Id, id)
	if _, err := c.SendWithReceipt(f); err != nil {
		return errors.Wrap(err, "unable to send UNSUBSCRIBE frame")
	}

	return nil
}

// Unsubscribe cancels the subscription on its client.
func (s *Subscription) Unsubscribe() error {
	return s.client.Unsubscribe(s.ID)
}

// resolveSubscription looks up the subscription a MESSAGE frame belongs
// to. The frame is still delivered to the application when the lookup
// fails; only the automatic acknowledgement is skipped.
func (c *Client) resolveSubscription(f *frame.Frame) (*Subscription, error) {
	id, ok := f.Header.Contains(frame.Subscription)
	if !ok {
		return nil, errors.Wrap(ErrUnknownSubscription, "frame has no subscription header")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subscriptions[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSubscription, "id %q", id)
	}

	return sub, nil
}

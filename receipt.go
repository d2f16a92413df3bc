package stompy

import (
	"time"

	"github.com/batchcorp/stompy/frame"
)

// Receipt correlation. An outbound frame that requests a receipt gets a
// generated receipt id and a pending entry; the receive path pops the
// entry when the matching RECEIPT frame arrives. Nothing is retried: a
// receipt that never arrives is observed by the caller as a loop timeout
// or a closed session.

// requestReceipt tags the frame with a fresh receipt header and records
// it as pending. Returns the receipt id.
func (c *Client) requestReceipt(f *frame.Frame) string {
	receiptID := newID("r")
	f.Header.Set(frame.Receipt, receiptID)

	c.mu.Lock()
	c.receipts[receiptID] = time.Now().UTC()
	c.mu.Unlock()

	return receiptID
}

// handleReceipt removes the pending entry for an inbound RECEIPT frame.
// Receipts the client is not tracking are tolerated; brokers may answer
// after the client has stopped caring.
func (c *Client) handleReceipt(f *frame.Frame) {
	receiptID, ok := f.Header.Contains(frame.ReceiptId)
	if !ok {
		c.log.Warn("RECEIPT frame without receipt-id header")
		return
	}

	c.mu.Lock()
	_, tracked := c.receipts[receiptID]
	delete(c.receipts, receiptID)
	c.mu.Unlock()

	if !tracked {
		c.log.Debugf("Untracked receipt '%s'", receiptID)
	}
}

// forgetReceipt drops a pending entry after a failed send.
func (c *Client) forgetReceipt(receiptID string) {
	c.mu.Lock()
	delete(c.receipts, receiptID)
	c.mu.Unlock()
}

// ReceiptPending reports whether the client is still waiting on a
// receipt.
func (c *Client) ReceiptPending(receiptID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.receipts[receiptID]
	return ok
}

// WaitForReceipt returns a Handler that stops the loop with a true result
// once the RECEIPT frame for receiptID arrives:
//
//	receiptID, err := c.MessageWithReceipt("/queue/orders", body)
//	...
//	got, err := c.Loop(stompy.WaitForReceipt(receiptID), nil)
//
// A nil result with a nil error means the session closed before the
// receipt arrived.
func WaitForReceipt(receiptID string) Handler {
	return func(_ *Client, f *frame.Frame, _ ...interface{}) (interface{}, error) {
		if f.Command == frame.RECEIPT && f.Header.Get(frame.ReceiptId) == receiptID {
			return true, nil
		}
		return nil, nil
	}
}

package stompy

import (
	"testing"

	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/batchcorp/stompy/frame"
)

func TestTransaction_commitOrderedAfterSends(t *testing.T) {
	g := NewGomegaWithT(t)

	c, broker := dialTestClient(t, &Options{})

	framesCh := make(chan []*frame.Frame, 1)
	go func() {
		framesCh <- broker.readAll()
	}()

	tx, err := c.Begin()
	g.Expect(err).ToNot(HaveOccurred())

	g.Expect(tx.Message("/queue/test", []byte("one"))).To(Succeed())
	g.Expect(tx.Message("/queue/test", []byte("two"))).To(Succeed())
	g.Expect(tx.Commit()).To(Succeed())
	g.Expect(tx.State()).To(Equal(TransactionCommitted))

	g.Expect(c.Disconnect()).To(Succeed())

	frames := <-framesCh
	g.Expect(frames).To(HaveLen(5))

	g.Expect(frames[0].Command).To(Equal(frame.BEGIN))
	g.Expect(frames[0].Header.Get(frame.Transaction)).To(Equal(tx.ID()))

	g.Expect(frames[1].Command).To(Equal(frame.SEND))
	g.Expect(string(frames[1].Body)).To(Equal("one"))
	g.Expect(frames[1].Header.Get(frame.Transaction)).To(Equal(tx.ID()))

	g.Expect(frames[2].Command).To(Equal(frame.SEND))
	g.Expect(string(frames[2].Body)).To(Equal("two"))
	g.Expect(frames[2].Header.Get(frame.Transaction)).To(Equal(tx.ID()))

	g.Expect(frames[3].Command).To(Equal(frame.COMMIT))
	g.Expect(frames[3].Header.Get(frame.Transaction)).To(Equal(tx.ID()))

	g.Expect(frames[4].Command).To(Equal(frame.DISCONNECT))
}

func TestTransaction_terminalStateRejectsReuse(t *testing.T) {
	g := NewGomegaWithT(t)

	c, broker := dialTestClient(t, &Options{})
	go broker.readAll()

	tx, err := c.Begin()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(tx.State()).To(Equal(TransactionOpen))

	g.Expect(tx.Abort()).To(Succeed())
	g.Expect(tx.State()).To(Equal(TransactionAborted))

	err = tx.Commit()
	g.Expect(err).To(HaveOccurred())
	g.Expect(errors.Cause(err)).To(Equal(ErrCompletedTransaction))

	err = tx.Message("/queue/test", []byte("late"))
	g.Expect(err).To(HaveOccurred())
	g.Expect(errors.Cause(err)).To(Equal(ErrCompletedTransaction))

	err = tx.Ack("ack-1")
	g.Expect(err).To(HaveOccurred())
	g.Expect(errors.Cause(err)).To(Equal(ErrCompletedTransaction))

	_, err = tx.Recv()
	g.Expect(err).To(HaveOccurred())
	g.Expect(errors.Cause(err)).To(Equal(ErrCompletedTransaction))

	broker.close()
}

func TestTransaction_recvTagsAckWithTransaction(t *testing.T) {
	g := NewGomegaWithT(t)

	c, broker := dialTestClient(t, &Options{})
	sub := subscribeForTest(t, c, broker, &SubscribeOptions{
		Destination: "/queue/test",
		AckMode:     AckClient,
	})

	acked := make(chan *frame.Frame, 1)
	go func() {
		begin := broker.read(t)
		g.Expect(begin.Command).To(Equal(frame.BEGIN))

		broker.write(t, messageFrame(sub.ID, "ack-3", "hello"))
		acked <- broker.read(t)
	}()

	tx, err := c.Begin()
	g.Expect(err).ToNot(HaveOccurred())

	f, err := tx.Recv()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(f.Text()).To(Equal("hello"))

	ack := <-acked
	g.Expect(ack.Command).To(Equal(frame.ACK))
	g.Expect(ack.Header.Get(frame.Id)).To(Equal("ack-3"))
	g.Expect(ack.Header.Get(frame.Transaction)).To(Equal(tx.ID()))

	broker.close()
}

func TestTransaction_callerSuppliedID(t *testing.T) {
	g := NewGomegaWithT(t)

	c, broker := dialTestClient(t, &Options{})

	framesCh := make(chan []*frame.Frame, 1)
	go func() {
		framesCh <- broker.readAll()
	}()

	tx, err := c.BeginWithID("txn-orders")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(tx.ID()).To(Equal("txn-orders"))
	g.Expect(tx.Commit()).To(Succeed())

	_, err = c.BeginWithID("")
	g.Expect(err).To(HaveOccurred())

	broker.close()

	frames := <-framesCh
	g.Expect(frames[0].Command).To(Equal(frame.BEGIN))
	g.Expect(frames[0].Header.Get(frame.Transaction)).To(Equal("txn-orders"))
}

func TestTransaction_ackCarriesTransactionID(t *testing.T) {
	g := NewGomegaWithT(t)

	c, broker := dialTestClient(t, &Options{})

	framesCh := make(chan []*frame.Frame, 1)
	go func() {
		framesCh <- broker.readAll()
	}()

	tx, err := c.Begin()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(tx.Ack("ack-7")).To(Succeed())
	g.Expect(tx.Nack("ack-8")).To(Succeed())
	g.Expect(tx.Commit()).To(Succeed())

	broker.close()

	frames := <-framesCh
	g.Expect(frames).To(HaveLen(4))

	g.Expect(frames[1].Command).To(Equal(frame.ACK))
	g.Expect(frames[1].Header.Get(frame.Id)).To(Equal("ack-7"))
	g.Expect(frames[1].Header.Get(frame.Transaction)).To(Equal(tx.ID()))

	g.Expect(frames[2].Command).To(Equal(frame.NACK))
	g.Expect(frames[2].Header.Get(frame.Id)).To(Equal("ack-8"))
	g.Expect(frames[2].Header.Get(frame.Transaction)).To(Equal(tx.ID()))
}

func TestTransaction_commitWithReceipt(t *testing.T) {
	g := NewGomegaWithT(t)

	c, broker := dialTestClient(t, &Options{})

	go func() {
		begin := broker.read(t)
		g.Expect(begin.Command).To(Equal(frame.BEGIN))

		commit := broker.read(t)
		g.Expect(commit.Command).To(Equal(frame.COMMIT))

		receiptID := commit.Header.Get(frame.Receipt)
		g.Expect(receiptID).ToNot(BeEmpty())

		broker.write(t, frame.New(frame.RECEIPT, frame.ReceiptId, receiptID))
	}()

	tx, err := c.Begin()
	g.Expect(err).ToNot(HaveOccurred())

	receiptID, err := tx.CommitWithReceipt()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(receiptID).ToNot(BeEmpty())
	g.Expect(c.ReceiptPending(receiptID)).To(BeTrue())

	result, err := c.Loop(WaitForReceipt(receiptID), nil)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(result).To(Equal(true))
	g.Expect(c.ReceiptPending(receiptID)).To(BeFalse())

	broker.close()
}

func TestLoop_autoAckCarriesLoopTransaction(t *testing.T) {
	g := NewGomegaWithT(t)

	c, broker := dialTestClient(t, &Options{})
	sub := subscribeForTest(t, c, broker, &SubscribeOptions{
		Destination: "/queue/test",
		AckMode:     AckClient,
	})

	acked := make(chan *frame.Frame, 1)
	go func() {
		begin := broker.read(t)
		g.Expect(begin.Command).To(Equal(frame.BEGIN))

		broker.write(t, messageFrame(sub.ID, "ack-1", "hello"))
		acked <- broker.read(t)
	}()

	tx, err := c.Begin()
	g.Expect(err).ToNot(HaveOccurred())

	result, err := c.Loop(func(_ *Client, f *frame.Frame, _ ...interface{}) (interface{}, error) {
		return true, nil
	}, &LoopOptions{Transaction: tx.ID()})

	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(result).To(Equal(true))

	ack := <-acked
	g.Expect(ack.Command).To(Equal(frame.ACK))
	g.Expect(ack.Header.Get(frame.Id)).To(Equal("ack-1"))
	g.Expect(ack.Header.Get(frame.Transaction)).To(Equal(tx.ID()))

	broker.close()
}

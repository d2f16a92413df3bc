package frame

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestHeader_firstEntryWins(t *testing.T) {
	g := NewGomegaWithT(t)

	h := NewHeader("k", "1", "k", "2")

	g.Expect(h.Get("k")).To(Equal("1"))
	g.Expect(h.GetAll("k")).To(Equal([]string{"1", "2"}))
	g.Expect(h.Len()).To(Equal(2))
}

func TestHeader_setReplacesFirstEntry(t *testing.T) {
	g := NewGomegaWithT(t)

	h := NewHeader("k", "1", "k", "2")
	h.Set("k", "3")

	g.Expect(h.Get("k")).To(Equal("3"))
	g.Expect(h.GetAll("k")).To(Equal([]string{"3", "2"}))
}

func TestHeader_del(t *testing.T) {
	g := NewGomegaWithT(t)

	h := NewHeader("a", "1", "k", "2", "k", "3", "z", "4")
	h.Del("k")

	g.Expect(h.Len()).To(Equal(2))
	_, ok := h.Contains("k")
	g.Expect(ok).To(BeFalse())
	g.Expect(h.Get("a")).To(Equal("1"))
	g.Expect(h.Get("z")).To(Equal("4"))
}

func TestHeader_preservesOrder(t *testing.T) {
	g := NewGomegaWithT(t)

	h := NewHeader()
	h.Add("one", "1")
	h.Add("two", "2")
	h.Add("three", "3")

	k, v := h.GetAt(1)
	g.Expect(k).To(Equal("two"))
	g.Expect(v).To(Equal("2"))
}

func TestHeader_oddPairCountGetsEmptyValue(t *testing.T) {
	g := NewGomegaWithT(t)

	h := NewHeader("k")

	g.Expect(h.Len()).To(Equal(1))
	g.Expect(h.Get("k")).To(Equal(""))
}

func TestHeader_contentLength(t *testing.T) {
	g := NewGomegaWithT(t)

	h := NewHeader(ContentLength, "42")
	n, ok, err := h.ContentLength()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(ok).To(BeTrue())
	g.Expect(n).To(Equal(42))

	h = NewHeader()
	_, ok, err = h.ContentLength()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(ok).To(BeFalse())

	h = NewHeader(ContentLength, "banana")
	_, ok, err = h.ContentLength()
	g.Expect(ok).To(BeTrue())
	g.Expect(err).To(HaveOccurred())
}

func TestHeader_clone(t *testing.T) {
	g := NewGomegaWithT(t)

	h := NewHeader("k", "1")
	c := h.Clone()
	c.Set("k", "2")

	g.Expect(h.Get("k")).To(Equal("1"))
	g.Expect(c.Get("k")).To(Equal("2"))
}

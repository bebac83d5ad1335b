package protocol_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/exar/protocol"
)

var _ = Describe("Event stream", func() {
	Describe("DecodeStreamItem()", func() {
		It("recognises the sentinel", func() {
			item, ok := protocol.DecodeStreamItem([]byte("EndOfEventStream"))
			Expect(ok).To(BeTrue())
			Expect(item).To(Equal(protocol.StreamItem{End: true}))
		})

		It("checks for the sentinel before decoding an event", func() {
			item, ok := protocol.DecodeStreamItem([]byte("EndOfEventStream\r\n"))
			Expect(ok).To(BeTrue())
			Expect(item.End).To(BeTrue())
			Expect(item.Err).To(Succeed())
		})

		It("skips empty lines", func() {
			_, ok := protocol.DecodeStreamItem([]byte("\r\n"))
			Expect(ok).To(BeFalse())
		})

		It("decodes an event", func() {
			item, ok := protocol.DecodeStreamItem([]byte("Event\t1\t100\tdata\ttag1\n"))
			Expect(ok).To(BeTrue())
			Expect(item).To(Equal(protocol.StreamItem{
				Event: &protocol.Event{ID: 1, Timestamp: 100, Data: "data", Tags: []string{"tag1"}},
			}))
		})

		It("rejects other messages", func() {
			item, ok := protocol.DecodeStreamItem([]byte("Published\t1"))
			Expect(ok).To(BeTrue())
			Expect(item.Event).To(BeNil())
			Expect(errors.Is(item.Err, protocol.ErrMalformedMessage)).To(BeTrue())
		})
	})

	Describe("DecodeEventBatch()", func() {
		It("decodes k events followed by the sentinel in order", func() {
			items := protocol.DecodeEventBatch([]byte(
				"Event\t1\t10\tfirst\tsensor\n" +
					"Event\t2\t20\tsecond\tsensor\n" +
					"Event\t3\t30\tthird\n" +
					"EndOfEventStream\n"))

			Expect(items).To(HaveLen(4))
			Expect(items[0].Event.Data).To(Equal("first"))
			Expect(items[1].Event.Data).To(Equal("second"))
			Expect(items[2].Event.Data).To(Equal("third"))
			Expect(items[3]).To(Equal(protocol.StreamItem{End: true}))
		})

		It("keeps decoding after a malformed line", func() {
			items := protocol.DecodeEventBatch([]byte(
				"Event\t1\t10\tfirst\n" +
					"garbage\n" +
					"Event\t2\t20\tsecond\n" +
					"EndOfEventStream"))

			Expect(items).To(HaveLen(4))
			Expect(items[0].Event.ID).To(Equal(uint64(1)))
			Expect(errors.Is(items[1].Err, protocol.ErrMalformedMessage)).To(BeTrue())
			Expect(items[2].Event.ID).To(Equal(uint64(2)))
			Expect(items[3].End).To(BeTrue())
		})

		It("skips empty lines", func() {
			Expect(protocol.DecodeEventBatch([]byte("\n\n"))).To(BeEmpty())
		})
	})

	Describe("Query.Matches()", func() {
		event := protocol.NewEvent("data", "sensor")

		It("skips events before the offset", func() {
			q := protocol.Query{Offset: 2}
			Expect(q.Matches(&event, 1, 0)).To(BeFalse())
			Expect(q.Matches(&event, 2, 0)).To(BeTrue())
		})

		It("stops at the limit", func() {
			q := protocol.Query{Limit: 2}
			Expect(q.Matches(&event, 0, 1)).To(BeTrue())
			Expect(q.Matches(&event, 0, 2)).To(BeFalse())
		})

		It("filters on the tag", func() {
			Expect(protocol.Query{Tag: "sensor"}.Matches(&event, 0, 0)).To(BeTrue())
			Expect(protocol.Query{Tag: "room1"}.Matches(&event, 0, 0)).To(BeFalse())
			Expect(protocol.Query{}.Matches(&event, 0, 0)).To(BeTrue())
		})
	})
})

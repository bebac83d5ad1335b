package transport

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Options", func() {
	It("bounds writes by default", func() {
		Expect(Options{}.withDefaults().WriteTimeout).To(Equal(DefaultWriteTimeout))
	})

	It("keeps a write timeout that is set", func() {
		Expect(Options{WriteTimeout: time.Second}.withDefaults().WriteTimeout).To(Equal(time.Second))
	})

	It("disables the write deadline when negative", func() {
		Expect(Options{WriteTimeout: -1}.withDefaults().WriteTimeout).To(BeZero())
	})
})

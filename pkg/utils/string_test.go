package utils

import (
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Truncate", func() {
	It("returns the string unchanged when within the limit", func() {
		Expect(Truncate("short", 10)).To(Equal("short"))
	})

	It("returns the string unchanged when exactly at the limit", func() {
		Expect(Truncate("12345", 5)).To(Equal("12345"))
	})

	It("truncates with ellipsis when over the limit", func() {
		Expect(Truncate("this is a long string", 10)).To(Equal("this is a ..."))
	})

	It("backs off to a rune boundary", func() {
		// "é" is two bytes; a three byte limit lands inside the second one.
		result := Truncate("éééé", 3)
		Expect(result).To(Equal("é..."))
		Expect(utf8.ValidString(result)).To(BeTrue())
	})

	It("keeps whole emoji", func() {
		Expect(Truncate("🎓 engineering", 2)).To(Equal("..."))
	})
})

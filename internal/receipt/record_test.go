package receipt

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Record", func() {
	Describe("Header", func() {
		It("lists the fields in row order", func() {
			Expect(Header()).To(Equal([]string{"登録番号", "購入店", "総支払額", "消費税額", "ファイル名"}))
		})
	})

	Describe("FromFields", func() {
		var (
			fields map[string]any
			record Record
		)

		JustBeforeEach(func() {
			record = FromFields(fields, "a.jpg")
		})

		When("every field is present", func() {
			BeforeEach(func() {
				fields = map[string]any{
					"登録番号": "T123",
					"購入店":  " 店A ",
					"総支払額": "¥1,000",
					"消費税額": json.Number("90"),
				}
			})

			It("copies the values in row order", func() {
				Expect(record.Row()).To(Equal([]string{"T123", "店A", "¥1,000", "90", "a.jpg"}))
			})
		})

		When("fields are missing, null or blank", func() {
			BeforeEach(func() {
				fields = map[string]any{
					"購入店":  nil,
					"総支払額": "   ",
				}
			})

			It("uses the unknown marker", func() {
				Expect(record.RegistrationNumber).To(Equal(Unknown))
				Expect(record.Merchant).To(Equal(Unknown))
				Expect(record.Total).To(Equal(Unknown))
				Expect(record.Tax).To(Equal(Unknown))
			})

			It("still records the file name", func() {
				Expect(record.FileName).To(Equal("a.jpg"))
			})
		})

		When("the model uses an alternative key", func() {
			BeforeEach(func() {
				fields = map[string]any{"購入店名": "店B", "事業者登録番号": "T999"}
			})

			It("reads the alias", func() {
				Expect(record.Merchant).To(Equal("店B"))
				Expect(record.RegistrationNumber).To(Equal("T999"))
			})
		})
	})

	Describe("Normalized", func() {
		It("normalizes only the monetary fields", func() {
			r := Record{RegistrationNumber: "T-1,2", Merchant: "¥Shop", Total: "¥1,000", Tax: "90", FileName: "1.jpg"}.Normalized()
			Expect(r).To(Equal(Record{RegistrationNumber: "T-1,2", Merchant: "¥Shop", Total: "1000円", Tax: "90円", FileName: "1.jpg"}))
		})

		It("leaves unknown amounts alone", func() {
			r := Record{Total: Unknown, Tax: Unknown}.Normalized()
			Expect(r.Total).To(Equal(Unknown))
			Expect(r.Tax).To(Equal(Unknown))
		})
	})
})

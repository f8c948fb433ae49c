package receipt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field names as requested from the model and written as the header row
const (
	FieldRegistrationNumber = "登録番号"
	FieldMerchant           = "購入店"
	FieldTotal              = "総支払額"
	FieldTax                = "消費税額"
	FieldFileName           = "ファイル名"
)

// Unknown marks a field the model could not read
const Unknown = "不明"

// fieldAliases are alternative keys models use for the same field
var fieldAliases = map[string][]string{
	FieldRegistrationNumber: {"事業者登録番号", "登録番号（事業者登録番号）"},
	FieldMerchant:           {"購入店名", "店名"},
}

// Record is one extracted receipt
type Record struct {
	RegistrationNumber string `json:"登録番号"`
	Merchant           string `json:"購入店"`
	Total              string `json:"総支払額"`
	Tax                string `json:"消費税額"`
	FileName           string `json:"ファイル名"`
}

// Header returns the column names in row order
func Header() []string {
	return []string{FieldRegistrationNumber, FieldMerchant, FieldTotal, FieldTax, FieldFileName}
}

// Row returns the record's values in Header order
func (r Record) Row() []string {
	return []string{r.RegistrationNumber, r.Merchant, r.Total, r.Tax, r.FileName}
}

// FromFields builds a record from a recovered JSON object. Missing, null or
// blank fields become Unknown.
func FromFields(fields map[string]any, fileName string) Record {
	return Record{
		RegistrationNumber: lookup(fields, FieldRegistrationNumber),
		Merchant:           lookup(fields, FieldMerchant),
		Total:              lookup(fields, FieldTotal),
		Tax:                lookup(fields, FieldTax),
		FileName:           fileName,
	}
}

// Normalized returns a copy with the monetary fields in canonical form
func (r Record) Normalized() Record {
	r.Total = NormalizeAmount(r.Total)
	r.Tax = NormalizeAmount(r.Tax)
	return r
}

func lookup(fields map[string]any, name string) string {
	if v := fieldString(fields[name]); v != Unknown {
		return v
	}
	for _, alias := range fieldAliases[name] {
		if v := fieldString(fields[alias]); v != Unknown {
			return v
		}
	}
	return Unknown
}

func fieldString(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return Unknown
	case string:
		s = val
	case json.Number:
		s = val.String()
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return Unknown
		}
		s = string(b)
	default:
		s = fmt.Sprint(val)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	return s
}

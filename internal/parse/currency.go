package parse

import "strings"

// ReferenceCurrency is the currency every revenue figure is normalized to.
const ReferenceCurrency = "USD"

// currencyMarkers maps symbols and codes to ISO codes. Longer markers come
// first so "CA$" wins over "A$" and "$".
var currencyMarkers = []struct {
	marker string
	code   string
}{
	{"COP$", "COP"},
	{"CLP$", "CLP"},
	{"ARS$", "ARS"},
	{"PEN$", "PEN"},
	{"MX$", "MXN"},
	{"CA$", "CAD"},
	{"US$", "USD"},
	{"R$", "BRL"},
	{"C$", "CAD"},
	{"A$", "AUD"},
	{"S/", "PEN"},
	{"USD", "USD"},
	{"BRL", "BRL"},
	{"MXN", "MXN"},
	{"CAD", "CAD"},
	{"AUD", "AUD"},
	{"GBP", "GBP"},
	{"EUR", "EUR"},
	{"COP", "COP"},
	{"CLP", "CLP"},
	{"ARS", "ARS"},
	{"PEN", "PEN"},
	{"£", "GBP"},
	{"€", "EUR"},
	{"$", "USD"},
}

// DetectCurrency returns the ISO code marked on a money cell. Cells without a
// recognizable prefix or suffix marker are treated as the reference currency.
func DetectCurrency(text string) string {
	s := strings.ToUpper(strings.Join(strings.Fields(text), ""))
	if s == "" {
		return ReferenceCurrency
	}
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "(")
	for _, m := range currencyMarkers {
		if strings.HasPrefix(s, m.marker) || strings.HasSuffix(s, m.marker) {
			return m.code
		}
	}
	return ReferenceCurrency
}

// Currency parses a money cell into its amount (nil when unparseable) and the
// detected currency code.
func Currency(text string) (*float64, string) {
	return NumericPtr(text), DetectCurrency(text)
}

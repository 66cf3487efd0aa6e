package dumper

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer renders counters with thousands separators.
var printer = message.NewPrinter(language.English)

// count formats an integer counter, e.g. 1234567 as "1,234,567".
func count[T ~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64](v T) string {
	return printer.Sprintf("%d", v)
}

// seconds formats a duration in seconds with two decimals.
func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// kib converts a byte count to KiB.
func kib(v uint64) uint64 {
	return v / 1024
}

// deref returns the pointed value or zero.
func deref(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}

package store

import "strconv"

// FormatDecimal renders v with exactly two fractional digits, the scale of the
// numeric score columns. 72.5 becomes "72.50".
func FormatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

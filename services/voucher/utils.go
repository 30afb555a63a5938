package voucher

import (
	"strings"

	"github.com/gosimple/slug"
)

// maskCode keeps the prefix and the last three characters for logs.
func maskCode(code string) string {
	if len(code) < 8 {
		return "***"
	}
	return code[:5] + "****" + code[len(code)-3:]
}

// codePrefix is the first four characters of the tenant slug, uppercased.
func codePrefix(tenantSlug string) string {
	s := []rune(slug.Make(tenantSlug))
	if len(s) == 0 {
		return "PRMO"
	}
	if len(s) > 4 {
		s = s[:4]
	}
	return strings.ToUpper(string(s))
}

package rediskey

import "fmt"

// Key namespaces shared by every process.
const (
	SessionPrefix         = "session"
	VoucherSequencePrefix = "voucher:seq"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildSessionKey returns "session:{tokenHash}"
func BuildSessionKey(tokenHash string) string {
	return NamespaceKey(SessionPrefix, tokenHash)
}

// BuildVoucherSequenceKey returns "voucher:seq:{prefix}"
func BuildVoucherSequenceKey(prefix string) string {
	return NamespaceKey(VoucherSequencePrefix, prefix)
}

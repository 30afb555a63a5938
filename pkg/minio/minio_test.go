package minio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectURL(t *testing.T) {
	u := &uploader{bucket: "vouchers", endpoint: "minio:9000"}
	require.Equal(t, "http://minio:9000/vouchers/qr/ACME-1.png", u.objectURL("qr/ACME-1.png"))

	u.secure = true
	require.Equal(t, "https://minio:9000/vouchers/qr/ACME-1.png", u.objectURL("qr/ACME-1.png"))

	u.publicURL = "https://cdn.example.com/vouchers"
	require.Equal(t, "https://cdn.example.com/vouchers/qr/ACME-1.png", u.objectURL("qr/ACME-1.png"))
}

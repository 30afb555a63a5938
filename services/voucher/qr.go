package voucher

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"promowheel/pkg/minio"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

const qrSize = 256

// QRGenerator renders a voucher code as a QR image and returns where it is
// served from.
type QRGenerator interface {
	Generate(ctx context.Context, tenantID, code string) (string, error)
}

type qrGenerator struct {
	uploader minio.Uploader
}

func NewQRGenerator(uploader minio.Uploader) QRGenerator {
	return &qrGenerator{uploader: uploader}
}

func (g *qrGenerator) Generate(ctx context.Context, tenantID, code string) (string, error) {
	img, err := RenderQR(code)
	if err != nil {
		return "", err
	}
	return g.uploader.Upload(ctx, fmt.Sprintf("vouchers/%s/%s.png", tenantID, code), "image/png", img)
}

// RenderQR encodes content as a PNG QR code.
func RenderQR(content string) ([]byte, error) {
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return nil, err
	}
	code, err = barcode.Scale(code, qrSize, qrSize)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

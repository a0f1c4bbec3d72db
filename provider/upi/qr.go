package upi

import (
	"context"
	"encoding/base64"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/mstgnz/upipay/provider"
	"github.com/skip2/go-qrcode"
)

// QR builds the link for p and renders it through r. The rendered payload is
// returned as-is.
func QR(ctx context.Context, r provider.Renderer, p LinkParams, opts provider.QROptions) ([]byte, string, error) {
	link, err := Build(p)
	if err != nil {
		return nil, "", err
	}
	if r == nil {
		return nil, link, provider.NewConfigurationError("no QR renderer configured", nil)
	}

	img, err := r.Render(ctx, link, withDefaults(opts))
	if err != nil {
		return nil, link, fmt.Errorf("upi: render QR: %w", err)
	}
	return img, link, nil
}

// DataURI wraps PNG bytes as a data:image/png;base64 URI
func DataURI(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

func withDefaults(opts provider.QROptions) provider.QROptions {
	def := provider.DefaultQROptions()
	if opts.Size <= 0 {
		opts.Size = def.Size
	}
	if opts.Margin < 0 {
		opts.Margin = def.Margin
	}
	if opts.DarkColor == "" {
		opts.DarkColor = def.DarkColor
	}
	if opts.LightColor == "" {
		opts.LightColor = def.LightColor
	}
	return opts
}

// QRCodeRenderer renders PNG QR codes with skip2/go-qrcode
type QRCodeRenderer struct {
	Level qrcode.RecoveryLevel
}

// NewQRCodeRenderer returns a renderer using medium error correction
func NewQRCodeRenderer() *QRCodeRenderer {
	return &QRCodeRenderer{Level: qrcode.Medium}
}

// Render encodes uri as a PNG of opts.Size pixels
func (q *QRCodeRenderer) Render(ctx context.Context, uri string, opts provider.QROptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts = withDefaults(opts)

	code, err := qrcode.New(uri, q.Level)
	if err != nil {
		return nil, fmt.Errorf("qrcode: %w", err)
	}

	dark, err := parseHexColor(opts.DarkColor)
	if err != nil {
		return nil, err
	}
	light, err := parseHexColor(opts.LightColor)
	if err != nil {
		return nil, err
	}
	code.ForegroundColor = dark
	code.BackgroundColor = light
	// go-qrcode only knows "standard quiet zone" or none
	code.DisableBorder = opts.Margin == 0

	return code.PNG(opts.Size)
}

// parseHexColor accepts #RGB and #RRGGBB
func parseHexColor(s string) (color.Color, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return nil, provider.NewValidationError(fmt.Sprintf("invalid color %q", s), map[string]any{"color": s})
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, provider.NewValidationError(fmt.Sprintf("invalid color %q", s), map[string]any{"color": s})
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

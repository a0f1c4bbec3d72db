package upi

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"strings"
	"testing"

	"github.com/mstgnz/upipay/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	link, err := Build(LinkParams{
		PayeeAddress: "shop@okaxis",
		PayeeName:    "Demo Store",
		Amount:       decimal.NewFromInt(100),
		Note:         "Order #42",
		Reference:    "ORD_1",
		MerchantCode: "5411",
		CallbackURL:  "https://shop.example/cb?x=1",
	})

	require.NoError(t, err)
	assert.Equal(t,
		"upi://pay?pa=shop%40okaxis&pn=Demo%20Store&am=100&cu=INR&tn=Order%20%2342&tr=ORD_1&mc=5411&url=https%3A%2F%2Fshop.example%2Fcb%3Fx%3D1",
		link,
	)
}

func TestBuild_OptionalFieldsOmitted(t *testing.T) {
	link, err := Build(LinkParams{PayeeAddress: "shop@upi", PayeeName: "Shop", Amount: decimal.RequireFromString("49.50")})

	require.NoError(t, err)
	assert.Equal(t, "upi://pay?pa=shop%40upi&pn=Shop&am=49.5&cu=INR", link)
}

func TestBuild_Deterministic(t *testing.T) {
	p := LinkParams{PayeeAddress: "a.b-c_d@ybl", PayeeName: "Café & Co", Amount: decimal.RequireFromString("1.25"), Note: "tea"}

	first, err := Build(p)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Build(p)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestBuild_Validation(t *testing.T) {
	tests := []struct {
		name  string
		p     LinkParams
		field string
	}{
		{"bad vpa", LinkParams{PayeeAddress: "shop", PayeeName: "S", Amount: decimal.NewFromInt(1)}, "pa"},
		{"empty name", LinkParams{PayeeAddress: "shop@upi", Amount: decimal.NewFromInt(1)}, "pn"},
		{"zero amount", LinkParams{PayeeAddress: "shop@upi", PayeeName: "S"}, "am"},
		{"negative amount", LinkParams{PayeeAddress: "shop@upi", PayeeName: "S", Amount: decimal.NewFromInt(-1)}, "am"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.p)
			require.ErrorIs(t, err, provider.ErrValidation)
			gwErr, _ := provider.AsError(err)
			assert.Contains(t, gwErr.Details, tt.field)
		})
	}
}

func TestIsValidVPA(t *testing.T) {
	assert.True(t, IsValidVPA("user.name@paytm"))
	assert.False(t, IsValidVPA("user@pay tm"))
	assert.False(t, IsValidVPA("userpaytm"))
}

type fakeRenderer struct {
	uri  string
	opts provider.QROptions
	out  []byte
	err  error
}

func (f *fakeRenderer) Render(_ context.Context, uri string, opts provider.QROptions) ([]byte, error) {
	f.uri = uri
	f.opts = opts
	return f.out, f.err
}

func TestQR_PassesPayloadThrough(t *testing.T) {
	r := &fakeRenderer{out: []byte("opaque")}
	p := LinkParams{PayeeAddress: "shop@upi", PayeeName: "Shop", Amount: decimal.NewFromInt(10)}

	img, link, err := QR(context.Background(), r, p, provider.QROptions{})

	require.NoError(t, err)
	assert.Equal(t, []byte("opaque"), img)
	assert.Equal(t, link, r.uri)
	assert.Equal(t, 256, r.opts.Size)
	assert.Equal(t, "#000000", r.opts.DarkColor)
}

func TestQR_Errors(t *testing.T) {
	p := LinkParams{PayeeAddress: "shop@upi", PayeeName: "Shop", Amount: decimal.NewFromInt(10)}

	_, _, err := QR(context.Background(), nil, p, provider.DefaultQROptions())
	assert.ErrorIs(t, err, provider.ErrConfiguration)

	boom := errors.New("boom")
	_, _, err = QR(context.Background(), &fakeRenderer{err: boom}, p, provider.DefaultQROptions())
	assert.ErrorIs(t, err, boom)

	_, _, err = QR(context.Background(), &fakeRenderer{}, LinkParams{}, provider.DefaultQROptions())
	assert.ErrorIs(t, err, provider.ErrValidation)
}

func TestQRCodeRenderer_Render(t *testing.T) {
	data, err := NewQRCodeRenderer().Render(context.Background(), "upi://pay?pa=shop%40upi&pn=Shop&am=1&cu=INR", provider.DefaultQROptions())
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())

	uri := DataURI(data)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,iVBORw0KGgo"))
}

func TestQRCodeRenderer_BadColor(t *testing.T) {
	opts := provider.DefaultQROptions()
	opts.DarkColor = "#zzzzzz"

	_, err := NewQRCodeRenderer().Render(context.Background(), "upi://pay", opts)
	assert.ErrorIs(t, err, provider.ErrValidation)
}

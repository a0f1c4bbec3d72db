package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidVPA(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"simple", "merchant@upi", true},
		{"dots and dashes", "shop.name-01@okaxis", true},
		{"underscore", "my_shop@ybl", true},
		{"no handle", "merchant", false},
		{"empty", "", false},
		{"two ats", "a@b@c", false},
		{"dot in bank", "merchant@ok.axis", false},
		{"space", "mer chant@upi", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidVPA(tt.input))
		})
	}
}

func TestIsValidPhone(t *testing.T) {
	assert.True(t, IsValidPhone("9876543210"))
	assert.True(t, IsValidPhone("6000000000"))
	assert.False(t, IsValidPhone("5876543210"))
	assert.False(t, IsValidPhone("987654321"))
	assert.False(t, IsValidPhone("919876543210"))
}

type payer struct {
	Email string `json:"email" validate:"omitempty,email"`
	UPI   string `json:"upiId" validate:"omitempty,vpa"`
	Phone string `json:"contact" validate:"omitempty,inphone"`
}

type order struct {
	Receipt string `json:"receipt" validate:"omitempty,max=5"`
	Payer   payer  `json:"customer"`
}

func TestStruct(t *testing.T) {
	errs, err := Struct(order{Receipt: "r1", Payer: payer{Email: "a@b.com", UPI: "x@upi", Phone: "9876543210"}})
	require.NoError(t, err)
	assert.Nil(t, errs)

	errs, err = Struct(order{Receipt: "toolong", Payer: payer{Email: "nope", UPI: "bad", Phone: "123"}})
	require.NoError(t, err)
	fields := make([]string, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t,
		[]string{"receipt", "customer.email", "customer.upiId", "customer.contact"},
		fields,
	)
}

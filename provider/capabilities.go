package provider

// Capability tags a provider advertises
const (
	CapabilityUPI           = "upi"
	CapabilityCards         = "cards"
	CapabilityNetbanking    = "netbanking"
	CapabilityWallets       = "wallets"
	CapabilityEMI           = "emi"
	CapabilityInternational = "international"
	CapabilityPayLater      = "paylater"
	CapabilityPaytmWallet   = "paytm_wallet"
	CapabilityQRCode        = "qr_code"
)

var capabilities = map[Name][]string{
	Razorpay:  {CapabilityUPI, CapabilityCards, CapabilityNetbanking, CapabilityWallets, CapabilityEMI, CapabilityInternational},
	Cashfree:  {CapabilityUPI, CapabilityCards, CapabilityNetbanking, CapabilityWallets, CapabilityPayLater},
	PhonePe:   {CapabilityUPI, CapabilityCards, CapabilityWallets},
	Paytm:     {CapabilityUPI, CapabilityCards, CapabilityNetbanking, CapabilityWallets, CapabilityPaytmWallet},
	GooglePay: {CapabilityUPI},
	BharatPe:  {CapabilityUPI, CapabilityQRCode},
	PayU:      {CapabilityUPI, CapabilityCards, CapabilityNetbanking, CapabilityWallets, CapabilityEMI},
}

// Capabilities returns a copy of the static capability set of a provider
func Capabilities(name Name) []string {
	caps := capabilities[name]
	out := make([]string, len(caps))
	copy(out, caps)
	return out
}

// IsSupported reports whether name is one of the known providers
func IsSupported(name Name) bool {
	_, ok := capabilities[name]
	return ok
}

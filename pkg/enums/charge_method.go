package enums

import "slices"

// ChargeMethod selects how a premium upgrade is paid for.
type ChargeMethod string

const (
	ChargeMethodWallet  ChargeMethod = "wallet"
	ChargeMethodGateway ChargeMethod = "gateway"
)

var validChargeMethods = []ChargeMethod{
	ChargeMethodWallet,
	ChargeMethodGateway,
}

// IsValid reports whether the value matches a known charge method.
func (c ChargeMethod) IsValid() bool {
	return slices.Contains(validChargeMethods, c)
}

// ParseChargeMethod converts raw input into ChargeMethod.
func ParseChargeMethod(value string) (ChargeMethod, error) {
	return parseEnum(value, validChargeMethods, "charge method")
}

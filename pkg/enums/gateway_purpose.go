package enums

// GatewayPurpose records what a verified gateway payment was spent on.
type GatewayPurpose string

const (
	GatewayPurposeWalletFunding GatewayPurpose = "wallet_funding"
	GatewayPurposePremium       GatewayPurpose = "premium"
)

func (p GatewayPurpose) IsValid() bool {
	return p == GatewayPurposeWalletFunding || p == GatewayPurposePremium
}

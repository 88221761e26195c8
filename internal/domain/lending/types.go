package lending

import (
	"math/big"
)

type VerificationLevel string

const (
	LevelDevice   VerificationLevel = "DEVICE"
	LevelPassport VerificationLevel = "PASSPORT"
	LevelOrb      VerificationLevel = "ORB"
)

func (l VerificationLevel) Valid() bool {
	switch l {
	case LevelDevice, LevelPassport, LevelOrb:
		return true
	}
	return false
}

// VerificationStatus describes what a tier's credential attests to. Known is
// false when the tier id had no mapping and the device baseline was assumed.
type VerificationStatus struct {
	Level       VerificationLevel `json:"level"`
	Description string            `json:"description"`
	Message     string            `json:"message"`
	Known       bool              `json:"known"`
}

var verificationStatuses = map[VerificationLevel]VerificationStatus{
	LevelOrb: {
		Level:       LevelOrb,
		Description: "World ID ORB Verified",
		Message:     "You're fully verified and eligible for maximum loan amounts!",
		Known:       true,
	},
	LevelPassport: {
		Level:       LevelPassport,
		Description: "World ID Passport Verified",
		Message:     "Get ORB verified to unlock $10 loans!",
		Known:       true,
	},
	LevelDevice: {
		Level:       LevelDevice,
		Description: "Device-Verified with World ID",
		Message:     "Get World ID verified to unlock higher loan amounts! Verify with Passport for $5 loans or get ORB verified for $10 loans.",
		Known:       true,
	},
}

// StatusForTier maps an on-chain tier id to its verification status. Ids
// outside 1..3 fall back to the device baseline with Known=false.
func StatusForTier(tierID *big.Int) VerificationStatus {
	if tierID != nil && tierID.IsInt64() {
		switch tierID.Int64() {
		case 1:
			return verificationStatuses[LevelDevice]
		case 2:
			return verificationStatuses[LevelPassport]
		case 3:
			return verificationStatuses[LevelOrb]
		}
	}
	out := verificationStatuses[LevelDevice]
	out.Known = false
	return out
}

func StatusForLevel(level VerificationLevel) (VerificationStatus, bool) {
	s, ok := verificationStatuses[level]
	return s, ok
}

type Tier struct {
	LoanAmount         *big.Int           `json:"loanAmount"`
	InterestRate       *big.Int           `json:"interestRate"`
	LoanPeriod         *big.Int           `json:"loanPeriod"`
	TierID             *big.Int           `json:"tierId"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
}

type NFTInfo struct {
	TokenID *big.Int `json:"tokenId"`
	Tier    *Tier    `json:"tier"`
}

func (n NFTInfo) Verified() bool {
	return n.TokenID != nil && n.TokenID.Sign() != 0
}

type Loan struct {
	Amount       *big.Int `json:"amount"`
	StartTime    *big.Int `json:"startTime"`
	IsActive     bool     `json:"isActive"`
	InterestRate *big.Int `json:"interestRate"`
	LoanPeriod   *big.Int `json:"loanPeriod"`
}

// ContractData is one wallet's aggregated view of the lending contract.
type ContractData struct {
	LoanToken string          `json:"loanToken"`
	TierCount int64           `json:"tierCount"`
	NFTInfo   NFTInfo         `json:"nftInfo"`
	Loans     []Loan          `json:"loans"`
	AllTiers  map[int64]*Tier `json:"allTiers"`
}

func (d *ContractData) ActiveLoan() (Loan, bool) {
	if d == nil {
		return Loan{}, false
	}
	for _, l := range d.Loans {
		if l.IsActive {
			return l, true
		}
	}
	return Loan{}, false
}

func (d *ContractData) HasActiveLoan() bool {
	_, ok := d.ActiveLoan()
	return ok
}

// ClaimKind is the credential a wallet asks to mint.
type ClaimKind string

const (
	ClaimDevice ClaimKind = "device"
	ClaimOrb    ClaimKind = "orb"
)

func ParseClaimKind(raw string) (ClaimKind, bool) {
	switch ClaimKind(raw) {
	case ClaimDevice:
		return ClaimDevice, true
	case ClaimOrb:
		return ClaimOrb, true
	}
	return "", false
}

func (k ClaimKind) Action() string {
	switch k {
	case ClaimOrb:
		return "mint-orb-verified-nft"
	default:
		return "mint-device-verified-nft"
	}
}

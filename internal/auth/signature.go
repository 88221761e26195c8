package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

var ErrInvalidSignature = errors.New("invalid signature")

// isValidSignature(bytes32,bytes) selector and its success return value.
var (
	erc1271Selector = []byte{0x16, 0x26, 0xba, 0x7e}
	erc1271Magic    = erc1271Selector
)

// PersonalMessageHash is the EIP-191 hash wallets sign for personal_sign.
func PersonalMessageHash(message string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("\x19Ethereum Signed Message:\n" + strconv.Itoa(len(message)) + message))
	return h.Sum(nil)
}

type SignatureVerifier interface {
	Verify(ctx context.Context, address, message, signature string) error
}

// WalletSignatureVerifier accepts EOA signatures recovered with ecrecover and,
// when a caller is set, smart-contract wallets answering EIP-1271.
type WalletSignatureVerifier struct {
	caller ethereum.ContractCaller
}

func NewWalletSignatureVerifier(caller ethereum.ContractCaller) *WalletSignatureVerifier {
	return &WalletSignatureVerifier{caller: caller}
}

func (v *WalletSignatureVerifier) Verify(ctx context.Context, address, message, signature string) error {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	want := common.HexToAddress(address)
	hash := PersonalMessageHash(message)

	if len(sig) == crypto.SignatureLength {
		if recovered, err := recoverAddress(hash, sig); err == nil && recovered == want {
			return nil
		}
	}
	if v.caller == nil {
		return ErrInvalidSignature
	}
	return v.verifyContractWallet(ctx, want, hash, sig)
}

func recoverAddress(hash, sig []byte) (common.Address, error) {
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func (v *WalletSignatureVerifier) verifyContractWallet(ctx context.Context, wallet common.Address, hash, sig []byte) error {
	data := make([]byte, 0, 4+32*4+len(sig)+32)
	data = append(data, erc1271Selector...)
	data = append(data, common.LeftPadBytes(hash, 32)...)
	data = append(data, common.LeftPadBytes([]byte{0x40}, 32)...)
	data = append(data, common.LeftPadBytes(bigEndian(len(sig)), 32)...)
	data = append(data, common.RightPadBytes(sig, (len(sig)+31)/32*32)...)

	out, err := v.caller.CallContract(ctx, ethereum.CallMsg{To: &wallet, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("%w: isValidSignature: %v", ErrInvalidSignature, err)
	}
	if len(out) < 4 || !bytes.Equal(out[:4], erc1271Magic) {
		return ErrInvalidSignature
	}
	return nil
}

func bigEndian(n int) []byte {
	return []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
}

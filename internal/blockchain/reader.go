package blockchain

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func IsAddress(v string) bool {
	return addressPattern.MatchString(strings.TrimSpace(v))
}

// NormalizeAddress lower-cases a hex address so it can be used as a map or
// cache key regardless of checksum casing.
func NormalizeAddress(v string) (string, error) {
	clean := strings.TrimSpace(v)
	if !IsAddress(clean) {
		return "", fmt.Errorf("invalid address %q", v)
	}
	return strings.ToLower(clean), nil
}

// Reader performs view calls against one contract and returns the decoded outputs.
type Reader interface {
	Call(ctx context.Context, method string, args ...any) ([]any, error)
}

type ContractReader struct {
	caller   ethereum.ContractCaller
	contract common.Address
	abi      abi.ABI
}

func NewContractReader(caller ethereum.ContractCaller, contractAddr string, contractABI abi.ABI) (*ContractReader, error) {
	if caller == nil {
		return nil, fmt.Errorf("missing contract caller")
	}
	if !IsAddress(contractAddr) {
		return nil, fmt.Errorf("invalid contract address %q", contractAddr)
	}
	return &ContractReader{
		caller:   caller,
		contract: common.HexToAddress(contractAddr),
		abi:      contractABI,
	}, nil
}

func (r *ContractReader) Address() common.Address {
	return r.contract
}

func (r *ContractReader) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	to := r.contract
	raw, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := r.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

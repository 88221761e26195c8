package blockchain

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

type fakeCaller struct {
	calls   [][]byte
	results map[string][]byte
	err     error
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls = append(f.calls, msg.Data)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[string(msg.Data[:4])], nil
}

func TestContractReaderPacksAndUnpacks(t *testing.T) {
	lending, err := LendingABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	tierOut, err := lending.Methods["tiers"].Outputs.Pack(big.NewInt(1_000_000), big.NewInt(500), big.NewInt(2_592_000))
	if err != nil {
		t.Fatalf("pack outputs: %v", err)
	}
	caller := &fakeCaller{results: map[string][]byte{string(lending.Methods["tiers"].ID): tierOut}}

	r, err := NewContractReader(caller, "0x2222222222222222222222222222222222222222", lending)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	out, err := r.Call(context.Background(), "tiers", big.NewInt(2))
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if len(out) != 3 || out[1].(*big.Int).Int64() != 500 {
		t.Fatalf("unexpected outputs: %#v", out)
	}

	wantInput, _ := lending.Pack("tiers", big.NewInt(2))
	if !bytes.Equal(caller.calls[0], wantInput) {
		t.Fatalf("unexpected calldata %x", caller.calls[0])
	}
}

func TestContractReaderWrapsTransportError(t *testing.T) {
	lending, _ := LendingABI()
	caller := &fakeCaller{err: errors.New("connection refused")}
	r, _ := NewContractReader(caller, "0x2222222222222222222222222222222222222222", lending)

	_, err := r.Call(context.Background(), "userNFT", common.HexToAddress("0x1111111111111111111111111111111111111111"))
	if err == nil || !errors.Is(err, caller.err) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestContractReaderRejectsBadAddress(t *testing.T) {
	lending, _ := LendingABI()
	if _, err := NewContractReader(&fakeCaller{}, "0x1234", lending); err == nil {
		t.Fatalf("expected invalid address error")
	}
}

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress(" 0xAbCdEf0000000000000000000000000000000001 ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "0xabcdef0000000000000000000000000000000001" {
		t.Fatalf("unexpected normalized address %s", got)
	}
	if _, err := NormalizeAddress("abcdef"); err == nil {
		t.Fatalf("expected error for malformed address")
	}
}

package contracts

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"Vestify-Chain/internal/config"
	xerrors "Vestify-Chain/internal/errors"
)

func TestNewFactoryValidatesAddresses(t *testing.T) {
	_, err := NewFactory(config.ContractAddresses{
		Token:   "not-an-address",
		Vesting: "0x2000000000000000000000000000000000000002",
	})
	if xerrors.CodeOf(err) != CodeInvalidAddress {
		t.Fatalf("expected %s, got %v", CodeInvalidAddress, err)
	}

	_, err = NewFactory(config.ContractAddresses{
		Token:   "0x1000000000000000000000000000000000000001",
		Vesting: "",
	})
	if xerrors.CodeOf(err) != CodeInvalidAddress {
		t.Fatalf("expected %s, got %v", CodeInvalidAddress, err)
	}
}

func TestNewFactoryParsesABIs(t *testing.T) {
	factory, err := NewFactory(config.ContractAddresses{
		Token:   " 0x1000000000000000000000000000000000000001 ",
		Vesting: "0x2000000000000000000000000000000000000002",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if factory.TokenAddress() != common.HexToAddress("0x1000000000000000000000000000000000000001") {
		t.Fatalf("unexpected token address: %s", factory.TokenAddress().Hex())
	}
	if factory.VestingAddress() != common.HexToAddress("0x2000000000000000000000000000000000000002") {
		t.Fatalf("unexpected vesting address: %s", factory.VestingAddress().Hex())
	}
}

func TestFactoryRejectsNilBackend(t *testing.T) {
	factory, err := NewFactory(config.ContractAddresses{
		Token:   "0x1000000000000000000000000000000000000001",
		Vesting: "0x2000000000000000000000000000000000000002",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := factory.Token(nil); err == nil {
		t.Fatalf("expected error for nil backend")
	}
	if _, err := factory.Vesting(nil); err == nil {
		t.Fatalf("expected error for nil backend")
	}
	var coded *xerrors.Error
	_, err = factory.Token(nil)
	if !errors.As(err, &coded) || coded.Code() != xerrors.CodeInvalidArgument {
		t.Fatalf("unexpected error: %v", err)
	}
}

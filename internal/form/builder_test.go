package form

import (
	"strings"
	"testing"
	"time"

	xerrors "Vestify-Chain/internal/errors"
	"Vestify-Chain/internal/workflow"
)

func validVestingFields() VestingFields {
	return VestingFields{
		Amount:           "50",
		Beneficiary:      "0x3000000000000000000000000000000000000003",
		StakeholderType:  "Investor",
		ReleaseTime:      "2030-01-01T00:00",
		OrganisationName: "Acme Labs",
		Description:      "investor allocation",
	}
}

func TestBuildVestingSchedule(t *testing.T) {
	builder := NewBuilder(time.UTC)

	req, err := builder.BuildVestingSchedule(validVestingFields())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Amount.Int64() != 50 {
		t.Fatalf("unexpected amount: %s", req.Amount)
	}
	if req.StakeholderType != workflow.StakeholderInvestor {
		t.Fatalf("unexpected stakeholder type: %s", req.StakeholderType)
	}
	// 2030-01-01T00:00 UTC
	if req.ReleaseTime != 1893456000 {
		t.Fatalf("unexpected release time: %d", req.ReleaseTime)
	}
}

func TestBuildVestingScheduleListsAllMissingFields(t *testing.T) {
	builder := NewBuilder(time.UTC)

	_, err := builder.BuildVestingSchedule(VestingFields{
		Amount:      "50",
		Beneficiary: "0x3000000000000000000000000000000000000003",
	})
	if xerrors.CodeOf(err) != workflow.CodeIncompleteRequest {
		t.Fatalf("expected %s, got %v", workflow.CodeIncompleteRequest, err)
	}
	msg := err.Error()
	for _, field := range []string{"stakeholderType", "releaseTime", "organisationName", "description"} {
		if !strings.Contains(msg, field) {
			t.Fatalf("missing field %q not reported in %q", field, msg)
		}
	}
}

func TestBuildVestingScheduleStakeholderByIndex(t *testing.T) {
	builder := NewBuilder(time.UTC)

	fields := validVestingFields()
	fields.StakeholderType = "3"
	req, err := builder.BuildVestingSchedule(fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.StakeholderType != workflow.StakeholderCommunity {
		t.Fatalf("unexpected stakeholder type: %s", req.StakeholderType)
	}
}

func TestBuildVestingScheduleRejectsBadAddress(t *testing.T) {
	builder := NewBuilder(time.UTC)

	fields := validVestingFields()
	fields.Beneficiary = "not-an-address"
	_, err := builder.BuildVestingSchedule(fields)
	if xerrors.CodeOf(err) != workflow.CodeIncompleteRequest {
		t.Fatalf("expected %s, got %v", workflow.CodeIncompleteRequest, err)
	}
}

func TestBuildVestingScheduleRejectsBadReleaseTime(t *testing.T) {
	builder := NewBuilder(time.UTC)

	fields := validVestingFields()
	fields.ReleaseTime = "01/01/2030"
	_, err := builder.BuildVestingSchedule(fields)
	if xerrors.CodeOf(err) != workflow.CodeIncompleteRequest {
		t.Fatalf("expected %s, got %v", workflow.CodeIncompleteRequest, err)
	}
}

func TestBuildVestingScheduleAcceptsSeconds(t *testing.T) {
	builder := NewBuilder(time.UTC)

	fields := validVestingFields()
	fields.ReleaseTime = "2030-01-01T00:00:30"
	req, err := builder.BuildVestingSchedule(fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.ReleaseTime != 1893456030 {
		t.Fatalf("unexpected release time: %d", req.ReleaseTime)
	}
}

func TestBuildMint(t *testing.T) {
	builder := NewBuilder(time.UTC)

	req, err := builder.BuildMint(MintFields{
		Recipient: "0x3000000000000000000000000000000000000003",
		Amount:    "300",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Amount != 300 {
		t.Fatalf("unexpected amount: %d", req.Amount)
	}

	_, err = builder.BuildMint(MintFields{
		Recipient: "0x3000000000000000000000000000000000000003",
		Amount:    "301",
	})
	if xerrors.CodeOf(err) != workflow.CodeIncompleteRequest {
		t.Fatalf("expected %s for over-limit amount, got %v", workflow.CodeIncompleteRequest, err)
	}
}

func TestBuildWhitelist(t *testing.T) {
	builder := NewBuilder(nil)

	req, err := builder.BuildWhitelist(WhitelistFields{
		Address: "  0x3000000000000000000000000000000000000003  ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Address.Hex() != "0x3000000000000000000000000000000000000003" {
		t.Fatalf("unexpected address: %s", req.Address.Hex())
	}

	_, err = builder.BuildWhitelist(WhitelistFields{})
	if xerrors.CodeOf(err) != workflow.CodeIncompleteRequest {
		t.Fatalf("expected %s, got %v", workflow.CodeIncompleteRequest, err)
	}
}

package message_test

import (
	"testing"

	"github.com/finswitch/finswitch/domain/message"
)

func TestNewCatalog_RejectsDuplicates(t *testing.T) {
	_, err := message.NewCatalog([]message.Entry{
		{Code: "01", Meaning: "refer to card issuer"},
		{Code: "01", Meaning: "refer to card issuer, special conditions"},
	})
	if err == nil {
		t.Fatal("duplicate code must be rejected, not last-wins")
	}
}

func TestCatalog_Describe(t *testing.T) {
	c := message.DefaultCatalog()

	if got := c.Describe(message.CodeApproved); got != "approved" {
		t.Errorf("Describe(00) = %q", got)
	}
	if !c.Known(message.CodeDoNotHonor) {
		t.Error("05 should be a known code")
	}
	// Unknown codes fall back to the code itself.
	if got := c.Describe("ZZ"); got != "ZZ" {
		t.Errorf("Describe(ZZ) = %q", got)
	}
	if c.Known("ZZ") {
		t.Error("ZZ should not be known")
	}
}

func TestIsApproval(t *testing.T) {
	if !message.IsApproval("00") {
		t.Error("00 is an approval")
	}
	for _, code := range []string{"01", "05", "96", ""} {
		if message.IsApproval(code) {
			t.Errorf("%q must not be an approval", code)
		}
	}
}

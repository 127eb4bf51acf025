package validate_test

import (
	"testing"

	"github.com/siertrichain/siertrichain/business/sys/validate"
	"github.com/siertrichain/siertrichain/business/web/errs"
)

type request struct {
	Account string `json:"account" validate:"required,account"`
	Memo    string `json:"memo" validate:"max=8"`
}

func TestCheck(t *testing.T) {
	if err := validate.Check(request{Account: "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32"}); err != nil {
		t.Fatalf("Should accept a valid request: %s", err)
	}

	err := validate.Check(request{Account: "bob", Memo: "far too long"})
	if !errs.IsFieldErrors(err) {
		t.Fatalf("Should get field errors: %v", err)
	}

	fields := errs.GetFieldErrors(err).Fields()
	if _, exists := fields["account"]; !exists {
		t.Fatalf("Should report the account field by its json name: %v", fields)
	}
	if _, exists := fields["memo"]; !exists {
		t.Fatalf("Should report the memo field by its json name: %v", fields)
	}
}

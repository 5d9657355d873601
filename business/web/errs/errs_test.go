package errs_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/stretchr/testify/require"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var errUnknownAccount = errors.New("account not found")

func Test_Trusted(t *testing.T) {
	t.Log("Given the need to carry a status with an expected error.")
	{
		err := fmt.Errorf("querying: %w", errs.NewTrusted(errUnknownAccount, http.StatusNotFound))

		require.True(t, errs.IsTrusted(err), "\t%s\tShould find the trusted error in the chain.", failed)
		t.Logf("\t%s\tShould find the trusted error in the chain.", success)

		te := errs.GetTrusted(err)
		require.NotNil(t, te)
		require.Equal(t, http.StatusNotFound, te.Status, "\t%s\tShould keep the status.", failed)
		t.Logf("\t%s\tShould keep the status.", success)

		require.ErrorIs(t, err, errUnknownAccount, "\t%s\tShould unwrap to the sentinel.", failed)
		t.Logf("\t%s\tShould unwrap to the sentinel.", success)

		err = errs.Newf(http.StatusBadRequest, "height %d is invalid", 7)
		require.EqualError(t, err, "height 7 is invalid", "\t%s\tShould format the message.", failed)
		t.Logf("\t%s\tShould format the message.", success)

		require.False(t, errs.IsTrusted(errUnknownAccount), "\t%s\tShould not treat plain errors as trusted.", failed)
		require.Nil(t, errs.GetTrusted(errUnknownAccount))
		t.Logf("\t%s\tShould not treat plain errors as trusted.", success)
	}
}

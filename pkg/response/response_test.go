package response

import (
	"fmt"
	"net/http"
	"testing"

	"SafeWalk/pkg/errors"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errors.JourneyNotFound, http.StatusNotFound},
		{errors.ContactsRequired, http.StatusBadRequest},
		{errors.ConfirmationRequired, http.StatusBadRequest},
		{errors.JourneyNotActive, http.StatusConflict},
		{fmt.Errorf("load journey: %w", errors.JourneyNotFound), http.StatusNotFound},
		{fmt.Errorf("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

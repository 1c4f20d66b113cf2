package ftptransport

import (
	"net/http"
	"testing"
)

func FuzzCredentialsFromHeader(f *testing.F) {
	f.Add("Basic dXNlcjpwYXNz")
	f.Add("Basic")
	f.Add("Digest abc")
	f.Add("Basic !!!")

	f.Fuzz(func(t *testing.T, value string) {
		h := make(http.Header)
		h.Set("Authorization", value)
		creds, err := credentialsFromHeader(h)
		if err != nil && creds != nil {
			t.Errorf("got credentials %+v with error %v", creds, err)
		}
	})
}

func FuzzParseStatusCode(f *testing.F) {
	f.Add("226 Transfer complete.")
	f.Add("226-multi\n226 end")
	f.Add("")

	f.Fuzz(func(t *testing.T, reply string) {
		code, err := parseStatusCode(reply)
		if err == nil && (code < 100 || code > 999) {
			t.Errorf("parseStatusCode(%q) = %d", reply, code)
		}
	})
}

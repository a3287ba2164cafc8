// acme.go - pass ACME HTTP-01 challenges through the redirect listener.
//
// To the extent possible under law, Ivan Markin waived all copyright
// and related or neighboring rights to this module of httpstest, using the creative
// commons "cc0" public domain dedication. See LICENSE or
// <http://creativecommons.org/publicdomain/zero/1.0/> for full details.

package httpstest

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/nogoegst/fileserver"
)

const acmeChallengePrefix = "/.well-known/acme-challenge/"

func isACMEChallenge(req *http.Request) bool {
	return strings.HasPrefix(req.URL.Path, acmeChallengePrefix)
}

// ACMEHandler serves files from webroot/.well-known the way
// certbot's webroot plugin lays them out. Directories are not listed.
func ACMEHandler(webroot string, debug bool) (http.Handler, error) {
	// fileserver splits pathspecs on these.
	if strings.ContainsAny(webroot, ":;") {
		return nil, fmt.Errorf("ACME webroot %q must not contain ':' or ';'", webroot)
	}
	wellKnown := filepath.Join(webroot, ".well-known")
	fi, err := os.Stat(wellKnown)
	if err != nil {
		return nil, fmt.Errorf("unable to open ACME webroot: %v", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", wellKnown)
	}
	h, err := fileserver.New(wellKnown+":.well-known", false, debug)
	if err != nil {
		return nil, fmt.Errorf("unable to create ACME file server: %v", err)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasSuffix(req.URL.Path, "/") {
			http.NotFound(w, req)
			return
		}
		h.ServeHTTP(w, req)
	}), nil
}

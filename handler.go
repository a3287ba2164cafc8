// handler.go - the two request shapes answered by httpstest.
//
// To the extent possible under law, Ivan Markin waived all copyright
// and related or neighboring rights to this module of httpstest, using the creative
// commons "cc0" public domain dedication. See LICENSE or
// <http://creativecommons.org/publicdomain/zero/1.0/> for full details.

package httpstest

import (
	"io"
	"net/http"

	"github.com/go-logr/logr"
)

// SuccessMessage is the body served on HTTPS root for domain.
// domain is not escaped.
func SuccessMessage(domain string) string {
	return "<h1>You have successfully configured HTTPS for " + domain + "</h1>"
}

// SuccessHandler answers "/" with SuccessMessage and everything
// else with 404.
func SuccessHandler(domain string, log logr.Logger) http.Handler {
	body := SuccessMessage(domain)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		log.Info("received HTTPS request")
		log.V(1).Info("request", "method", req.Method, "host", req.Host, "uri", req.RequestURI, "remote", req.RemoteAddr)
		if req.URL.Path != "/" {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, body)
	})
	return mux
}

// RedirectTarget builds the HTTPS location for req. Host header
// is taken as is.
func RedirectTarget(req *http.Request) string {
	return "https://" + req.Host + req.URL.RequestURI()
}

// RedirectHandler redirects every request to its HTTPS equivalent.
// If acme is not nil, ACME HTTP-01 challenges are passed to it
// instead.
func RedirectHandler(acme http.Handler, log logr.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if acme != nil && isACMEChallenge(req) {
			log.Info("HTTP request: serving ACME challenge", "path", req.URL.Path)
			acme.ServeHTTP(w, req)
			return
		}
		log.Info("HTTP request: redirect to HTTPS")
		target := RedirectTarget(req)
		log.V(1).Info("redirect", "method", req.Method, "host", req.Host, "location", target)
		w.Header().Set("Location", target)
		w.WriteHeader(http.StatusMovedPermanently)
	})
}

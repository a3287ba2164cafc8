// selfcheck.go - check a running test server from the inside.
//
// To the extent possible under law, Ivan Markin waived all copyright
// and related or neighboring rights to this module of httpstest, using the creative
// commons "cc0" public domain dedication. See LICENSE or
// <http://creativecommons.org/publicdomain/zero/1.0/> for full details.

package httpstest

import (
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"time"

	tlspinhttp "github.com/nogoegst/tlspin/http"
)

const selfCheckTimeout = 10 * time.Second

// loopback rewrites wildcard listen address to loopback one.
func loopback(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	ip := net.ParseIP(host)
	if host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}

// SelfCheck requests HTTPS root of the server at addrs pinning the
// key to pin and expects the success message for domain. Then it
// checks that plain HTTP redirects back to HTTPS.
func SelfCheck(addrs Addrs, domain, pin string) error {
	t, err := tlspinhttp.NewTransport(pin)
	if err != nil {
		return fmt.Errorf("unable to create pinned transport: %v", err)
	}
	client := &http.Client{
		Transport: t,
		Timeout:   selfCheckTimeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequest("GET", "https://"+loopback(addrs.HTTPS)+"/", nil)
	if err != nil {
		return err
	}
	req.Host = domain
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPS request failed: %v", err)
	}
	body, err := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("unable to read HTTPS response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTPS: unexpected status %s", resp.Status)
	}
	if string(body) != SuccessMessage(domain) {
		return fmt.Errorf("HTTPS: unexpected body %q", body)
	}

	req, err = http.NewRequest("GET", "http://"+loopback(addrs.HTTP)+"/", nil)
	if err != nil {
		return err
	}
	req.Host = domain
	resp, err = client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMovedPermanently {
		return fmt.Errorf("HTTP: unexpected status %s", resp.Status)
	}
	if loc, want := resp.Header.Get("Location"), "https://"+domain+"/"; loc != want {
		return fmt.Errorf("HTTP: redirect to %q, want %q", loc, want)
	}
	return nil
}

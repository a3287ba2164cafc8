// httpstest.go - serve a certificate for manual checking.
//
// To the extent possible under law, Ivan Markin waived all copyright
// and related or neighboring rights to this module of httpstest, using the creative
// commons "cc0" public domain dedication. See LICENSE or
// <http://creativecommons.org/publicdomain/zero/1.0/> for full details.

// Package httpstest runs a throwaway HTTPS server for a certificate
// together with an HTTP listener redirecting to it.
package httpstest

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

const (
	DefaultHTTPSAddr = ":443"
	DefaultHTTPAddr  = ":80"
)

type Parameters struct {
	Certificate tls.Certificate
	Domain      string
	HTTPSAddr   string
	HTTPAddr    string
	// ACMEWebroot, if set, is served for ACME HTTP-01 challenges
	// on the HTTP listener.
	ACMEWebroot string
	Debug       bool
	// Log defaults to a logger discarding everything.
	Log logr.Logger
}

// Addrs are the addresses the listeners got bound to.
type Addrs struct {
	HTTPS net.Addr
	HTTP  net.Addr
}

// Serve binds both listeners, sends their addresses to addrChan and
// serves until ctx is done or one of the servers fails.
func Serve(ctx context.Context, p Parameters, addrChan chan<- Addrs) error {
	if p.HTTPSAddr == "" {
		p.HTTPSAddr = DefaultHTTPSAddr
	}
	if p.HTTPAddr == "" {
		p.HTTPAddr = DefaultHTTPAddr
	}
	if p.Log == nil {
		p.Log = zapr.NewLogger(zap.NewNop())
	}
	log := p.Log

	var acme http.Handler
	if p.ACMEWebroot != "" {
		var err error
		acme, err = ACMEHandler(p.ACMEWebroot, p.Debug)
		if err != nil {
			return err
		}
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{p.Certificate},
	}
	httpsServer := &http.Server{
		Handler:   SuccessHandler(p.Domain, log.WithName("https")),
		TLSConfig: tlsConfig,
	}
	httpServer := &http.Server{
		Handler: RedirectHandler(acme, log.WithName("http")),
	}

	httpsListener, err := net.Listen("tcp", p.HTTPSAddr)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %v", p.HTTPSAddr, err)
	}
	httpListener, err := net.Listen("tcp", p.HTTPAddr)
	if err != nil {
		httpsListener.Close()
		return fmt.Errorf("unable to listen on %s: %v", p.HTTPAddr, err)
	}
	log.Info("test server started", "https", httpsListener.Addr().String(), "http", httpListener.Addr().String())

	errChan := make(chan error, 2)
	go func() {
		// Certificates are already in TLSConfig.
		errChan <- httpsServer.ServeTLS(httpsListener, "", "")
	}()
	go func() {
		errChan <- httpServer.Serve(httpListener)
	}()

	addrs := Addrs{
		HTTPS: httpsListener.Addr(),
		HTTP:  httpListener.Addr(),
	}
	if addrChan != nil {
		select {
		case addrChan <- addrs:
		case <-ctx.Done():
		}
	}

	select {
	case <-ctx.Done():
		httpsServer.Close()
		httpServer.Close()
		return nil
	case err := <-errChan:
		httpsServer.Close()
		httpServer.Close()
		return fmt.Errorf("cannot serve HTTP: %v", err)
	}
}

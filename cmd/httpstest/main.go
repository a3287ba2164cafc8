package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/nogoegst/byteqr"
	"github.com/nogoegst/httpstest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"rsc.io/qr"
)

const (
	exitOK = iota
	exitError
	exitUsage
)

const defaultLiveDir = "/etc/letsencrypt/live"

// serve is replaced in tests.
var serve = httpstest.Serve

type options struct {
	httpsAddr   string
	httpAddr    string
	acmeWebroot string
	selfCheck   bool
	qr          bool
	debug       bool
}

// newLogger returns a logger writing to w. Standard library log
// output (used by fileserver) is redirected into it until the
// returned function is called.
func newLogger(w io.Writer, debug bool) (logr.Logger, func()) {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(level),
	)
	zlog := zap.New(core)
	undo := zap.RedirectStdLog(zlog)
	return zapr.NewLogger(zlog), undo
}

func newRootCmd(stdin io.Reader, stdout io.Writer, code *int) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "httpstest <path/to/privateKey.pem> <path/to/cert.pem> <domain>",
		Short: "Serve a certificate over HTTPS for manual checking",
		Long: `httpstest starts an HTTPS server with the given private key and certificate
and an HTTP server redirecting everything to it. Check that the domain works
in a browser, then press any key to stop.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Arguments are fine, anything failing from here is not a usage error.
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			*code = run(args[0], args[1], args[2], opts, stdin, stdout)
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stdout)
	f := cmd.PersistentFlags()
	f.StringVar(&opts.httpsAddr, "https-addr", httpstest.DefaultHTTPSAddr, "Address for HTTPS listener")
	f.StringVar(&opts.httpAddr, "http-addr", httpstest.DefaultHTTPAddr, "Address for HTTP redirect listener")
	f.StringVar(&opts.acmeWebroot, "acme-webroot", "", "Serve ACME HTTP-01 challenges from this webroot instead of redirecting them")
	f.BoolVar(&opts.selfCheck, "self-check", false, "Request the servers ourselves once they are up")
	f.BoolVar(&opts.qr, "qr", false, "Print link in QR code to stdout")
	f.BoolVar(&opts.debug, "debug", false, "Show what's happening")

	var liveDir string
	le := &cobra.Command{
		Use:   "letsencrypt <domain>",
		Short: "Serve the certificate certbot keeps for domain",
		Long: `letsencrypt serves privkey.pem and cert.pem from the certbot live
directory of domain.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			domain := args[0]
			dir := filepath.Join(liveDir, domain)
			*code = run(filepath.Join(dir, "privkey.pem"), filepath.Join(dir, "cert.pem"), domain, opts, stdin, stdout)
			return nil
		},
	}
	le.Flags().StringVar(&liveDir, "live-dir", defaultLiveDir, "certbot live directory")
	cmd.AddCommand(le)
	return cmd
}

// link returns the URL the operator should check. Port is added
// when HTTPS listener is not on the default one.
func link(domain string, addr net.Addr) string {
	if addr != nil {
		if _, port, err := net.SplitHostPort(addr.String()); err == nil && port != "443" {
			return "https://" + net.JoinHostPort(domain, port) + "/"
		}
	}
	return "https://" + domain + "/"
}

func run(keyPath, certPath, domain string, opts options, stdin io.Reader, stdout io.Writer) int {
	log, undo := newLogger(stdout, opts.debug)
	defer undo()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cert, err := httpstest.LoadKeyPair(keyPath, certPath)
	if err != nil {
		log.Error(err, "unable to load certificate")
		return exitError
	}
	p := httpstest.Parameters{
		Certificate: cert,
		Domain:      domain,
		HTTPSAddr:   opts.httpsAddr,
		HTTPAddr:    opts.httpAddr,
		ACMEWebroot: opts.acmeWebroot,
		Debug:       opts.debug,
		Log:         log,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addrChan := make(chan httpstest.Addrs)
	errChan := make(chan error, 1)
	go func() {
		errChan <- serve(ctx, p, addrChan)
	}()

	var addrs httpstest.Addrs
	select {
	case addrs = <-addrChan:
	case err := <-errChan:
		log.Error(err, "unable to start test server")
		return exitError
	}

	pin, err := httpstest.Pin(cert)
	if err != nil {
		log.Error(err, "unable to compute public key pin")
	} else {
		log.Info("serving certificate", "tlspin", pin)
	}
	if opts.selfCheck && pin != "" {
		if err := httpstest.SelfCheck(addrs, domain, pin); err != nil {
			log.Error(err, "self check failed")
		} else {
			log.Info("self check passed")
		}
	}
	if opts.qr {
		if err := byteqr.Write(stdout, link(domain, addrs.HTTPS), qr.L, nil, nil); err != nil {
			log.Error(err, "unable to write QR code")
		}
	}

	restore, err := rawMode(stdin)
	if err != nil {
		log.Error(err, "unable to put terminal into raw mode")
	}
	defer restore()

	fmt.Fprintln(stdout, "Test server started!")
	fmt.Fprintf(stdout, "Please check that %s works as expected before continuing!\n", domain)
	fmt.Fprintln(stdout, "Press any key to kill test server and continue the process ...")

	keyChan := make(chan struct{})
	go func() {
		err := readKey(stdin)
		if err != nil {
			if err != io.EOF {
				log.Error(err, "unable to read from stdin")
			}
			return
		}
		close(keyChan)
	}()

	select {
	case <-keyChan:
		return exitOK
	case <-sigChan:
		return exitOK
	case err := <-errChan:
		log.Error(err, "test server failed")
		return exitError
	}
}

// execute runs the command line args and returns process exit code.
func execute(args []string, stdin io.Reader, stdout io.Writer) int {
	code := exitOK
	cmd := newRootCmd(stdin, stdout, &code)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		return exitUsage
	}
	return code
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout))
}

package httpstest

import (
	"context"
	"io/ioutil"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/matryer/is"
	tlspinhttp "github.com/nogoegst/tlspin/http"
	tlspinutil "github.com/nogoegst/tlspin/util"
)

type testServer struct {
	addrs  Addrs
	pin    string
	cancel context.CancelFunc
	done   chan error
}

func startServer(t *testing.T, domain string) *testServer {
	t.Helper()
	keyPath, certPath, sk := writeKeyPair(t, t.TempDir())
	cert, err := LoadKeyPair(keyPath, certPath)
	if err != nil {
		t.Fatal(err)
	}
	pin, err := tlspinutil.PublicKey(sk)
	if err != nil {
		t.Fatal(err)
	}
	p := Parameters{
		Certificate: cert,
		Domain:      domain,
		HTTPSAddr:   "127.0.0.1:0",
		HTTPAddr:    "127.0.0.1:0",
		Log:         testLogger{},
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &testServer{
		pin:    pin,
		cancel: cancel,
		done:   make(chan error, 1),
	}
	addrChan := make(chan Addrs)
	go func() {
		s.done <- Serve(ctx, p, addrChan)
	}()
	select {
	case s.addrs = <-addrChan:
	case err := <-s.done:
		t.Fatalf("server failed to start: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not start in time")
	}
	t.Cleanup(s.stop)
	return s
}

func (s *testServer) stop() {
	s.cancel()
	<-s.done
}

func noRedirectClient(t http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: t,
		Timeout:   10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestServeHTTPS(t *testing.T) {
	is := is.New(t)
	s := startServer(t, "example.test")

	tr, err := tlspinhttp.NewTransport(s.pin)
	is.NoErr(err)
	client := noRedirectClient(tr)

	for i := 0; i < 2; i++ {
		resp, err := client.Get("https://" + s.addrs.HTTPS.String() + "/")
		is.NoErr(err)
		body, err := ioutil.ReadAll(resp.Body)
		resp.Body.Close()
		is.NoErr(err)
		is.Equal(resp.StatusCode, http.StatusOK)
		is.Equal(resp.Header.Get("Content-Type"), "text/html")
		is.Equal(string(body), "<h1>You have successfully configured HTTPS for example.test</h1>")
	}

	resp, err := client.Get("https://" + s.addrs.HTTPS.String() + "/missing")
	is.NoErr(err)
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusNotFound)
}

func TestServeHTTPSWrongPin(t *testing.T) {
	is := is.New(t)
	s := startServer(t, "example.test")

	otherSK, err := tlspinutil.GeneratePrivateKey()
	is.NoErr(err)
	otherPin, err := tlspinutil.PublicKey(otherSK)
	is.NoErr(err)
	tr, err := tlspinhttp.NewTransport(otherPin)
	is.NoErr(err)

	_, err = noRedirectClient(tr).Get("https://" + s.addrs.HTTPS.String() + "/")
	is.True(err != nil)
}

func TestServeHTTPRedirect(t *testing.T) {
	is := is.New(t)
	s := startServer(t, "example.test")
	client := noRedirectClient(&http.Transport{})

	req, err := http.NewRequest("GET", "http://"+s.addrs.HTTP.String()+"/foo?bar=1", nil)
	is.NoErr(err)
	req.Host = "example.test"
	resp, err := client.Do(req)
	is.NoErr(err)
	body, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusMovedPermanently)
	is.Equal(resp.Header.Get("Location"), "https://example.test/foo?bar=1")
	is.Equal(len(body), 0)

	req, err = http.NewRequest("GET", "http://"+s.addrs.HTTP.String()+"/login", nil)
	is.NoErr(err)
	req.Host = "attacker.test"
	resp, err = client.Do(req)
	is.NoErr(err)
	resp.Body.Close()
	is.Equal(resp.Header.Get("Location"), "https://attacker.test/login")
}

func TestServeStops(t *testing.T) {
	is := is.New(t)
	s := startServer(t, "example.test")
	s.cancel()
	select {
	case err := <-s.done:
		is.NoErr(err)
		s.done <- err
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	_, err := net.DialTimeout("tcp", s.addrs.HTTP.String(), time.Second)
	is.True(err != nil)
}

func TestServeBindFailure(t *testing.T) {
	is := is.New(t)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	is.NoErr(err)
	defer l.Close()

	keyPath, certPath, _ := writeKeyPair(t, t.TempDir())
	cert, err := LoadKeyPair(keyPath, certPath)
	is.NoErr(err)
	p := Parameters{
		Certificate: cert,
		Domain:      "example.test",
		HTTPSAddr:   "127.0.0.1:0",
		HTTPAddr:    l.Addr().String(),
		Log:         testLogger{},
	}
	err = Serve(context.Background(), p, make(chan Addrs, 1))
	is.True(err != nil)
}

func TestServeBadWebroot(t *testing.T) {
	is := is.New(t)
	p := Parameters{
		HTTPSAddr:   "127.0.0.1:0",
		HTTPAddr:    "127.0.0.1:0",
		ACMEWebroot: "/nonexistent/webroot",
		Log:         testLogger{},
	}
	err := Serve(context.Background(), p, nil)
	is.True(err != nil)
}

func TestServeWithoutLogger(t *testing.T) {
	is := is.New(t)
	keyPath, certPath, _ := writeKeyPair(t, t.TempDir())
	cert, err := LoadKeyPair(keyPath, certPath)
	is.NoErr(err)
	p := Parameters{
		Certificate: cert,
		Domain:      "example.test",
		HTTPSAddr:   "127.0.0.1:0",
		HTTPAddr:    "127.0.0.1:0",
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addrChan := make(chan Addrs)
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, p, addrChan)
	}()
	addrs := <-addrChan

	client := noRedirectClient(&http.Transport{})
	req, err := http.NewRequest("GET", "http://"+addrs.HTTP.String()+"/", nil)
	is.NoErr(err)
	req.Host = "example.test"
	resp, err := client.Do(req)
	is.NoErr(err)
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusMovedPermanently)

	cancel()
	is.NoErr(<-done)
}

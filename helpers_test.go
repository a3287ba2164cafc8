package httpstest

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	tlspinutil "github.com/nogoegst/tlspin/util"
)

// Set up logging so that the log statements in the product code come out in the test output
type testLogger struct{}

func (t testLogger) Info(msg string, keysAndValues ...interface{}) { fmt.Printf("Info: %v \n", msg) }
func (t testLogger) Enabled() bool                                { return true }
func (t testLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fmt.Printf("Error: %v: %v\n", msg, err.Error())
}
func (t testLogger) V(level int) logr.InfoLogger                         { return t }
func (t testLogger) WithValues(keysAndValues ...interface{}) logr.Logger { return t }
func (t testLogger) WithName(name string) logr.Logger                    { return t }

// writeKeyPair generates a tlspin key pair and writes it into dir.
// It returns paths to key and certificate and the tlspin private key.
func writeKeyPair(t *testing.T, dir string) (keyPath, certPath, sk string) {
	t.Helper()
	sk, err := tlspinutil.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	certPEM, keyPEM, err := tlspinutil.GeneratePEMKeypair(sk)
	if err != nil {
		t.Fatal(err)
	}
	keyPath = filepath.Join(dir, "privkey.pem")
	certPath = filepath.Join(dir, "cert.pem")
	if err := ioutil.WriteFile(keyPath, keyPEM, 0600); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(certPath, certPEM, 0644); err != nil {
		t.Fatal(err)
	}
	return keyPath, certPath, sk
}

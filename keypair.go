// keypair.go - load the certificate under test.
//
// To the extent possible under law, Ivan Markin waived all copyright
// and related or neighboring rights to this module of httpstest, using the creative
// commons "cc0" public domain dedication. See LICENSE or
// <http://creativecommons.org/publicdomain/zero/1.0/> for full details.

package httpstest

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io/ioutil"

	tlspinutil "github.com/nogoegst/tlspin/util"
	"golang.org/x/crypto/blake2b"
)

// LoadKeyPair reads PEM encoded private key and certificate from
// keyPath and certPath. Files are read once and never re-read.
func LoadKeyPair(keyPath, certPath string) (tls.Certificate, error) {
	keyPEM, err := ioutil.ReadFile(keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("unable to read private key %q: %v", keyPath, err)
	}
	certPEM, err := ioutil.ReadFile(certPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("unable to read certificate %q: %v", certPath, err)
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("unable to load TLS keypair: %v", err)
	}
	return cert, nil
}

// Pin returns tlspin public key pin of cert. Like tlspin, it pins
// the last certificate in the chain.
func Pin(cert tls.Certificate) (string, error) {
	if len(cert.Certificate) == 0 {
		return "", errors.New("no certificates")
	}
	certs, err := x509.ParseCertificates(cert.Certificate[len(cert.Certificate)-1])
	if err != nil {
		return "", err
	}
	der, err := x509.MarshalPKIXPublicKey(certs[0].PublicKey)
	if err != nil {
		return "", err
	}
	d := blake2b.Sum256(der)
	return tlspinutil.EncodeKey(d[:]), nil
}

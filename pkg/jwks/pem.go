package jwks

import (
	"encoding/base64"
	"encoding/pem"
	"fmt"
)

const certificateBlockType = "CERTIFICATE"

// CertToPEM converts a base64 DER certificate, as found in a JWK x5c entry,
// into a PEM CERTIFICATE block wrapped at 64 columns.
func CertToPEM(cert string) (string, error) {
	if cert == "" {
		return "", fmt.Errorf("convert certificate: %w: empty input", ErrFormat)
	}

	der, err := base64.StdEncoding.DecodeString(cert)
	if err != nil {
		return "", fmt.Errorf("convert certificate: %w: %v", ErrFormat, err)
	}

	return string(pem.EncodeToMemory(&pem.Block{
		Type:  certificateBlockType,
		Bytes: der,
	})), nil
}

package config

import (
	"errors"
	"fmt"
	"os"
)

// ErrConfiguration marks startup problems that must stop the process.
var ErrConfiguration = errors.New("configuration error")

// Credentials are the raw secrets the vendor clients are built from.
type Credentials struct {
	FCMServiceAccount []byte
	APNSCertificate   []byte
	APNSKey           []byte
}

// LoadCredentials reads the credential files named in cfg. Both platforms
// must be present; there is no partial mode.
func LoadCredentials(cfg *Config) (*Credentials, error) {
	fcmJSON, err := readRequired(cfg.FCM.CredentialsFile)
	if err != nil {
		return nil, err
	}

	creds := &Credentials{FCMServiceAccount: fcmJSON}
	if cfg.APNS.CertificateFile != "" {
		creds.APNSCertificate, err = readRequired(cfg.APNS.CertificateFile)
	} else {
		creds.APNSKey, err = readRequired(cfg.APNS.KeyFile)
	}
	if err != nil {
		return nil, err
	}
	return creds, nil
}

func readRequired(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: credential path not configured", ErrConfiguration)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s does not exist or is unreadable: %v", ErrConfiguration, path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrConfiguration, path)
	}
	return data, nil
}

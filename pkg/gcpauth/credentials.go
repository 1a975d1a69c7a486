// Package gcpauth mints bearer tokens from a Google service-account
// credentials file for the cloud synthesis provider.
package gcpauth

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/morioka22/ncb-tts-r2/pkg/configutil"
)

// Credentials is the subset of a service-account JSON file needed to mint
// bearer tokens.
type Credentials struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

const defaultTokenURI = "https://oauth2.googleapis.com/token"

// LoadCredentials reads and validates a service-account credentials file.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}
	if err := configutil.RequireString(creds.ClientEmail, "credentials.client_email"); err != nil {
		return nil, err
	}
	if err := configutil.RequireString(creds.PrivateKey, "credentials.private_key"); err != nil {
		return nil, err
	}
	if creds.TokenURI == "" {
		creds.TokenURI = defaultTokenURI
	}
	return &creds, nil
}

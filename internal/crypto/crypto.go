// Package crypto encrypts the account password for storage in the
// configuration file. Tokens are Fernet, so configs written by earlier
// releases of the client decrypt unchanged.
package crypto

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fernet/fernet-go"
)

// LoadOrCreateKey reads the Fernet key stored at path, generating and
// persisting a new one (owner read/write only) if the file is missing.
func LoadOrCreateKey(path string) (*fernet.Key, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, decErr := fernet.DecodeKey(strings.TrimSpace(string(data)))
		if decErr != nil {
			return nil, fmt.Errorf("decoding key file %s: %w", path, decErr)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading key file %s: %w", path, err)
	}

	var key fernet.Key
	if err := key.Generate(); err != nil {
		return nil, fmt.Errorf("generating encryption key: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating key directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(key.Encode()), 0o600); err != nil {
		return nil, fmt.Errorf("writing key file %s: %w", path, err)
	}

	return &key, nil
}

// EncryptPassword encrypts a password into a Fernet token string.
// The empty password encrypts to the empty string.
func EncryptPassword(key *fernet.Key, password string) (string, error) {
	if password == "" {
		return "", nil
	}
	tok, err := fernet.EncryptAndSign([]byte(password), key)
	if err != nil {
		return "", fmt.Errorf("encrypting password: %w", err)
	}
	return string(tok), nil
}

// DecryptPassword decrypts a stored password token. A value that is not
// a valid token for the key is returned unchanged: older configs stored
// the password as plaintext.
func DecryptPassword(key *fernet.Key, stored string) string {
	if stored == "" {
		return ""
	}
	msg := fernet.VerifyAndDecrypt([]byte(stored), 0, []*fernet.Key{key})
	if msg == nil {
		return stored
	}
	return string(msg)
}

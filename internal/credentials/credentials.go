// Package credentials resolves object store credentials from configuration,
// a passwd file or the environment.
package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoCredentials is returned when no source yields a key pair
var ErrNoCredentials = errors.New("no credentials found")

// Credentials holds AWS credentials
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewCredentials creates a new credentials instance
func NewCredentials() *Credentials {
	return &Credentials{}
}

// LoadFromPasswdFile loads credentials from a passwd file. Lines are either
// ACCESS_KEY:SECRET_KEY or BUCKET:ACCESS_KEY:SECRET_KEY; a bucket-qualified
// line for bucket wins over an unqualified one. The file must not be
// readable by group or others.
func (c *Credentials) LoadFromPasswdFile(path, bucket string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to read passwd file: %w", err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return fmt.Errorf("passwd file %s is accessible by others (mode %v)", path, info.Mode().Perm())
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read passwd file: %w", err)
	}
	defer f.Close()

	var access, secret string
	found := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ":")
		switch len(parts) {
		case 2:
			if !found {
				access, secret = parts[0], parts[1]
				found = true
			}
		case 3:
			if parts[0] == bucket {
				access, secret = parts[1], parts[2]
				found = true
			}
		default:
			return fmt.Errorf("invalid passwd file format, expected [BUCKET:]ACCESS_KEY:SECRET_KEY")
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read passwd file: %w", err)
	}
	if !found {
		return fmt.Errorf("passwd file %s: %w", path, ErrNoCredentials)
	}

	c.AccessKeyID = strings.TrimSpace(access)
	c.SecretAccessKey = strings.TrimSpace(secret)
	return nil
}

// LoadFromEnvironment loads credentials from environment variables
func (c *Credentials) LoadFromEnvironment() error {
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")

	if accessKey == "" || secretKey == "" {
		return fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set: %w", ErrNoCredentials)
	}

	c.AccessKeyID = accessKey
	c.SecretAccessKey = secretKey
	c.SessionToken = os.Getenv("AWS_SESSION_TOKEN")
	return nil
}

// IsValid checks if credentials are valid (both access key and secret are set)
func (c *Credentials) IsValid() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// Resolve picks the first usable source: the explicit key pair, then
// passwdFile (if set), then the environment.
func Resolve(accessKey, secretKey, passwdFile, bucket string) (*Credentials, error) {
	c := NewCredentials()
	if accessKey != "" && secretKey != "" {
		c.AccessKeyID = accessKey
		c.SecretAccessKey = secretKey
		return c, nil
	}

	if passwdFile != "" {
		if err := c.LoadFromPasswdFile(passwdFile, bucket); err != nil {
			return nil, err
		}
		return c, nil
	}

	if err := c.LoadFromEnvironment(); err != nil {
		return nil, err
	}
	return c, nil
}

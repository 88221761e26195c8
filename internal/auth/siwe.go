package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/magnifycash/backend/internal/blockchain"
)

const SignInStatement = "Sign in to Magnify Cash to manage your loans."

var ErrInvalidMessage = errors.New("invalid sign-in message")

// SignInMessage is the EIP-4361 message the wallet signs during login.
type SignInMessage struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        int64
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime *time.Time
	NotBefore      *time.Time
}

func (m SignInMessage) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your Ethereum account:\n%s\n\n", m.Domain, m.Address)
	if m.Statement != "" {
		fmt.Fprintf(&b, "%s\n\n", m.Statement)
	}
	fmt.Fprintf(&b, "URI: %s\n", m.URI)
	fmt.Fprintf(&b, "Version: %s\n", m.Version)
	fmt.Fprintf(&b, "Chain ID: %d\n", m.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", m.Nonce)
	fmt.Fprintf(&b, "Issued At: %s", m.IssuedAt.UTC().Format(time.RFC3339))
	if m.ExpirationTime != nil {
		fmt.Fprintf(&b, "\nExpiration Time: %s", m.ExpirationTime.UTC().Format(time.RFC3339))
	}
	if m.NotBefore != nil {
		fmt.Fprintf(&b, "\nNot Before: %s", m.NotBefore.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// ParseSignInMessage reads the fields back out of a signed message.
func ParseSignInMessage(raw string) (SignInMessage, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return SignInMessage{}, fmt.Errorf("%w: too short", ErrInvalidMessage)
	}
	header := lines[0]
	const suffix = " wants you to sign in with your Ethereum account:"
	if !strings.HasSuffix(header, suffix) {
		return SignInMessage{}, fmt.Errorf("%w: bad header", ErrInvalidMessage)
	}
	msg := SignInMessage{Domain: strings.TrimSuffix(header, suffix)}

	addr, err := blockchain.NormalizeAddress(lines[1])
	if err != nil {
		return SignInMessage{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	msg.Address = addr

	rest := lines[2:]
	// Optional statement sits between two blank lines before the fields.
	if len(rest) >= 3 && rest[0] == "" && !strings.Contains(rest[1], ": ") && rest[2] == "" {
		msg.Statement = rest[1]
		rest = rest[3:]
	}

	for _, line := range rest {
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch key {
		case "URI":
			msg.URI = value
		case "Version":
			msg.Version = value
		case "Chain ID":
			id, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return SignInMessage{}, fmt.Errorf("%w: chain id", ErrInvalidMessage)
			}
			msg.ChainID = id
		case "Nonce":
			msg.Nonce = value
		case "Issued At":
			t, err := parseTimestamp(value)
			if err != nil {
				return SignInMessage{}, err
			}
			msg.IssuedAt = t
		case "Expiration Time":
			t, err := parseTimestamp(value)
			if err != nil {
				return SignInMessage{}, err
			}
			msg.ExpirationTime = &t
		case "Not Before":
			t, err := parseTimestamp(value)
			if err != nil {
				return SignInMessage{}, err
			}
			msg.NotBefore = &t
		}
	}
	if msg.Nonce == "" {
		return SignInMessage{}, fmt.Errorf("%w: missing nonce", ErrInvalidMessage)
	}
	return msg, nil
}

func parseTimestamp(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrInvalidMessage, v)
	}
	return t, nil
}

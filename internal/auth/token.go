// Package auth holds the request token policy that gates data-plane requests.
package auth

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

// RandomOption is the flag value that asks for a freshly generated token.
const RandomOption = "random"

const randomTokenLen = 16

var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// TokenKind selects how a request token is obtained.
type TokenKind int

const (
	TokenNone TokenKind = iota
	TokenRandom
	TokenFixed
)

func (k TokenKind) String() string {
	switch k {
	case TokenNone:
		return "none"
	case TokenRandom:
		return "random"
	case TokenFixed:
		return "fixed"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// TokenPolicy is the configured token option. Value is set only for TokenFixed.
type TokenPolicy struct {
	Kind  TokenKind
	Value Token
}

// Fixed returns a policy that always uses t.
func Fixed(t Token) TokenPolicy {
	return TokenPolicy{Kind: TokenFixed, Value: t}
}

// ParseTokenOption maps the CLI/config value to a policy: "" means no token,
// "random" a generated one, anything else a base32 encoded literal.
func ParseTokenOption(s string) (TokenPolicy, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return TokenPolicy{Kind: TokenNone}, nil
	case strings.EqualFold(s, RandomOption):
		return TokenPolicy{Kind: TokenRandom}, nil
	}
	t, err := ParseToken(s)
	if err != nil {
		return TokenPolicy{}, err
	}
	return Fixed(t), nil
}

// Resolve turns the policy into a concrete token. It returns nil for TokenNone.
func (p TokenPolicy) Resolve() (Token, error) {
	switch p.Kind {
	case TokenNone:
		return nil, nil
	case TokenRandom:
		return GenerateToken()
	case TokenFixed:
		if len(p.Value) == 0 {
			return nil, fmt.Errorf("fixed request token is empty")
		}
		return p.Value, nil
	default:
		return nil, fmt.Errorf("unknown token kind %v", p.Kind)
	}
}

func (p TokenPolicy) String() string {
	if p.Kind == TokenFixed {
		return "fixed(" + p.Value.String() + ")"
	}
	return p.Kind.String()
}

// Token is a raw request token.
type Token []byte

// GenerateToken returns a random token.
func GenerateToken() (Token, error) {
	b := make([]byte, randomTokenLen)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate request token: %w", err)
	}
	return Token(b), nil
}

// ParseToken decodes a base32 token, ignoring case.
func ParseToken(s string) (Token, error) {
	b, err := tokenEncoding.DecodeString(strings.ToUpper(s))
	if err != nil {
		return nil, fmt.Errorf("invalid request token %q: %w", s, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("invalid request token %q: empty", s)
	}
	return Token(b), nil
}

// String is the lowercase base32 form clients send.
func (t Token) String() string {
	return strings.ToLower(tokenEncoding.EncodeToString(t))
}

package portal

import (
	"regexp"
	"strings"
)

var authParamRegex = regexp.MustCompile(`(\w+)="([^"]*)"`)

// authChallenge is a parsed WWW-Authenticate header.
type authChallenge struct {
	Scheme           string
	Realm            string
	Error            string
	ErrorDescription string
}

// isBearer reports whether the challenge can be answered with an access
// token.
func (c *authChallenge) isBearer() bool {
	return c != nil && strings.EqualFold(c.Scheme, "Bearer")
}

// parseWWWAuthenticate parses a WWW-Authenticate header value such as
//
//	Bearer realm="portal", error="invalid_token", error_description="expired"
//
// It returns nil for an empty header.
func parseWWWAuthenticate(header string) *authChallenge {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	parts := strings.SplitN(header, " ", 2)
	challenge := &authChallenge{Scheme: parts[0]}
	if len(parts) == 1 {
		return challenge
	}

	for _, match := range authParamRegex.FindAllStringSubmatch(parts[1], -1) {
		switch strings.ToLower(match[1]) {
		case "realm":
			challenge.Realm = match[2]
		case "error":
			challenge.Error = match[2]
		case "error_description":
			challenge.ErrorDescription = match[2]
		}
	}
	return challenge
}

package experiment

import (
	"net/url"
	"strings"
)

const (
	// ServerMessagePrefix marks page query parameters addressed to the client.
	ServerMessagePrefix = "__"
	// PilotTokenKey flags a pilot run whose results are not recorded.
	PilotTokenKey = "__pilotToken"
)

// ServerMessage holds the page query parameters whose key starts with
// ServerMessagePrefix. It is parsed once and never modified afterwards.
type ServerMessage map[string]string

// ParseServerMessage extracts server parameters from a raw query string, with or
// without the leading '?'. Pairs are separated by '&' only, so ';' stays part of
// a value. Pairs that fail to unescape are skipped; the last value of a repeated
// key wins.
func ParseServerMessage(rawQuery string) ServerMessage {
	msg := make(ServerMessage)
	for _, pair := range strings.Split(strings.TrimPrefix(rawQuery, "?"), "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil || !strings.HasPrefix(key, ServerMessagePrefix) {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			continue
		}
		msg[key] = value
	}
	return msg
}

// ServerMessageFromURL parses the query of a full page URL.
// An unparsable URL yields an empty message.
func ServerMessageFromURL(pageURL string) ServerMessage {
	if pageURL == "" {
		return make(ServerMessage)
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return make(ServerMessage)
	}
	return ParseServerMessage(u.RawQuery)
}

// PilotToken returns the pilot token, if any.
func (m ServerMessage) PilotToken() string {
	return m[PilotTokenKey]
}

// IsPilot reports whether a non-empty pilot token is present.
func (m ServerMessage) IsPilot() bool {
	return m.PilotToken() != ""
}

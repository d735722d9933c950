package identity

import "strings"

// Server tags carried on sender identifiers. The tag decides how (and
// whether) an identifier can be resolved to a canonical address.
const (
	ServerUser       = "s.whatsapp.net"
	ServerLegacyUser = "c.us"
	ServerHidden     = "lid"
	ServerGroup      = "g.us"
	ServerBroadcast  = "broadcast"
)

// JID is a parsed sender identifier: user token plus server tag. Device
// suffixes ("5511999:12@s.whatsapp.net") are stripped from the user part.
type JID struct {
	User   string
	Server string
}

func ParseJID(raw string) (JID, bool) {
	at := strings.IndexByte(raw, '@')
	if at <= 0 || at == len(raw)-1 {
		return JID{}, false
	}
	user := raw[:at]
	if colon := strings.IndexByte(user, ':'); colon > 0 {
		user = user[:colon]
	}
	return JID{User: user, Server: raw[at+1:]}, true
}

// IsCanonical reports whether the tag denotes a directly addressable
// external identity.
func (j JID) IsCanonical() bool {
	return j.Server == ServerUser || j.Server == ServerLegacyUser
}

// IsAlias reports whether the tag denotes a linked-device pseudonymous
// address.
func (j JID) IsAlias() bool {
	return j.Server == ServerHidden
}

func (j JID) IsGroupOrBroadcast() bool {
	return j.Server == ServerGroup || j.Server == ServerBroadcast
}

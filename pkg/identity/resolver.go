package identity

import (
	"github.com/tinyland-inc/wahook/pkg/config"
	"github.com/tinyland-inc/wahook/pkg/logger"
	"github.com/tinyland-inc/wahook/pkg/transport"
)

// aliasHeuristics are the ordered fallbacks tried on a cache miss for an
// alias-tagged sender. Each tries one known field on the same message;
// the first canonical-tagged, non-empty candidate wins.
var aliasHeuristics = []struct {
	name    string
	extract func(*transport.Message) string
}{
	{"sender_pn", func(m *transport.Message) string {
		if m == nil {
			return ""
		}
		return m.Key.SenderPN
	}},
	{"participant", func(m *transport.Message) string {
		if m == nil {
			return ""
		}
		if m.Key.Participant != "" {
			return m.Key.Participant
		}
		return m.Participant
	}},
	{"quoted_participant", (*transport.Message).QuotedParticipant},
}

// Resolver turns raw sender identifiers into canonical addresses, learning
// alias mappings into the Store as it goes.
type Resolver struct {
	store  *Store
	policy string
}

// NewResolver builds a resolver. policy is one of config.PolicyForwardDegraded
// or config.PolicyDropUnresolved; anything else falls back to forward-degraded.
func NewResolver(store *Store, policy string) *Resolver {
	if policy != config.PolicyDropUnresolved {
		policy = config.PolicyForwardDegraded
	}
	return &Resolver{store: store, policy: policy}
}

// Resolve maps raw to a canonical address. ok=false means skip the message.
// Resolution never performs network I/O; all fallbacks read fields already
// carried on the message.
func (r *Resolver) Resolve(raw string, msg *transport.Message) (string, bool) {
	jid, ok := ParseJID(raw)
	if !ok {
		logger.WarnCF("identity", "Malformed sender identifier", map[string]any{"raw": raw})
		return "", false
	}

	switch {
	case jid.IsGroupOrBroadcast():
		// One-to-one verification flows only.
		logger.DebugCF("identity", "Skipping group/broadcast sender", map[string]any{"raw": raw})
		return "", false

	case jid.IsCanonical():
		r.crossLink(jid.User, msg)
		return jid.User, true

	case jid.IsAlias():
		if addr, ok := r.store.Get(jid.User); ok {
			return addr, true
		}
		for _, h := range aliasHeuristics {
			cand := h.extract(msg)
			if cand == "" {
				continue
			}
			cj, ok := ParseJID(cand)
			if !ok || !cj.IsCanonical() {
				continue
			}
			r.store.Put(jid.User, cj.User)
			logger.InfoCF("identity", "Alias resolved", map[string]any{
				"alias":     jid.User,
				"address":   cj.User,
				"heuristic": h.name,
			})
			return cj.User, true
		}

		// Every heuristic exhausted. An unresolved alias is an operational
		// anomaly worth surfacing either way; the policy decides whether the
		// message is forwarded with a degraded identity or dropped.
		logger.ErrorCF("identity", "Unresolved alias sender", map[string]any{
			"alias":  jid.User,
			"policy": r.policy,
		})
		if r.policy == config.PolicyDropUnresolved {
			return "", false
		}
		return jid.User, true

	default:
		logger.WarnCF("identity", "Unrecognized sender tag", map[string]any{
			"raw":    raw,
			"server": jid.Server,
		})
		return "", false
	}
}

// crossLink opportunistically learns an alias mapping from reply context:
// when a canonical sender quotes a message whose sender used an alias tag,
// that alias belongs to the same account.
func (r *Resolver) crossLink(canonical string, msg *transport.Message) {
	quoted := msg.QuotedParticipant()
	if quoted == "" {
		return
	}
	qj, ok := ParseJID(quoted)
	if !ok || !qj.IsAlias() {
		return
	}
	if _, ok := r.store.Get(qj.User); ok {
		return
	}
	if r.store.Put(qj.User, canonical) {
		logger.InfoCF("identity", "Alias cross-linked from reply context", map[string]any{
			"alias":   qj.User,
			"address": canonical,
		})
	}
}

package ws

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// originPolicy decides which browser origins may open a socket. An empty
// allow list, or a "*" entry, admits every origin. A list holding only
// invalid entries admits none.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string) *originPolicy {
	p := &originPolicy{allowed: map[string]struct{}{}}
	configured := false
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch {
		case o == "":
			continue
		case o == "*":
			p.allowAll = true
			continue
		}
		configured = true
		n, ok := normalizeOrigin(o)
		if !ok {
			zap.L().Warn("ws.origin_ignored", zap.String("origin", o))
			continue
		}
		p.allowed[n] = struct{}{}
	}
	if !configured {
		p.allowAll = true
	}
	return p
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

// check is used as the upgrader's CheckOrigin. Requests without an Origin
// header come from non-browser clients and are admitted.
func (p *originPolicy) check(r *http.Request) bool {
	if p.allowAll {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	n, ok := normalizeOrigin(origin)
	if ok {
		if _, found := p.allowed[n]; found {
			return true
		}
	}
	zap.L().Warn("ws.origin_blocked", zap.String("origin", origin))
	return false
}

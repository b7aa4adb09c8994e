package router

import (
	"net/url"
	"sync"

	"github.com/rs/zerolog/log"
)

// Redirector는 요청 하나 동안의 이동 요청을 모은다 (gateway.Navigator 구현).
// 처음 요청된 이동만 유지하고 이후 요청은 무시한다.
type Redirector struct {
	router *Router

	mu      sync.Mutex
	target  string
	pending bool
}

func NewRedirector(r *Router) *Redirector {
	return &Redirector{router: r}
}

func (n *Redirector) RedirectTo(route string, params url.Values) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.pending {
		log.Debug().Str("route", route).Str("pending", n.target).Msg("[Router] redirect already pending, ignoring")
		return
	}

	href, err := n.router.Href(route, params)
	if err != nil {
		log.Error().Err(err).Str("route", route).Msg("[Router] cannot redirect to unknown route")
		return
	}
	n.target = href
	n.pending = true
}

// Pending은 대기 중인 이동 URL
func (n *Redirector) Pending() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.target, n.pending
}

package bamboo

import (
	"fmt"
)

// requirement is a named identifier an operation cannot run without.
type requirement struct {
	name  string
	value string
}

// validate checks an operation's inputs before anything is sent. On failure
// the returned envelope only carries a message describing what is missing.
func (s settings) validate(op, serverURL string, reqs ...requirement) (Envelope, bool) {
	if serverURL == "" {
		return preconditionFailed(fmt.Sprintf("Error in <%s> method: No Bamboo server supplied!", op)), false
	}
	for _, r := range reqs {
		if r.value == "" {
			return preconditionFailed(fmt.Sprintf("Error in <%s> method: No Bamboo %s supplied!", op, r.name)), false
		}
	}
	return s.validateAuth(op)
}

func (s settings) validateAuth(op string) (Envelope, bool) {
	if s.authEnabled && !s.credentials.Complete() {
		return preconditionFailed(fmt.Sprintf("Error in <%s> method: No Bamboo credentials supplied! Set them or disable authentication.", op)), false
	}
	return Envelope{}, true
}

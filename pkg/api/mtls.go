package api

import (
	"net/http"

	"github.com/cuemby/ace/pkg/security"
)

// withClientRole extracts the subject CN from the request's verified
// client certificate chain (spec.md §4.8) and passes it to the wrapped
// handler as its third argument. The TLS listener already
// refuses the handshake for a missing or CA-unverified certificate
// (tls.RequireAndVerifyClientCert in security.ServerTLSConfig); this
// check only guards against a nil TLS state reaching a handler (e.g.
// a plain-HTTP request in tests).
func (s *Server) withClientRole(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			writeError(w, http.StatusUnauthorized, "mTLS required")
			return
		}
		cn, err := security.ClientCN(r.TLS.VerifiedChains)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next(w, r, cn)
	}
}

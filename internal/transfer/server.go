package transfer

import (
	"io"
	"net/http"

	"github.com/fossilgo/fossilgo/internal/errs"
	"github.com/fossilgo/fossilgo/internal/sync"
)

// Handle is the server-side processing function for one /xfer
// round-trip: given the inbound cards, produce the outbound reply.
type Handle func(r *http.Request, inbound []sync.Card) (outbound []sync.Card, err error)

// Server adapts a Handle into an http.Handler serving XferPath,
// applying the load shedder before decoding the request body so a
// session over the ceiling never pays decompression cost.
type Server struct {
	Handle  Handle
	Shedder *LoadShedder
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var release func()
	if s.Shedder != nil {
		var err error
		release, err = s.Shedder.Admit()
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write(sync.Encode([]sync.Card{sync.Err(err.Error())}))
			return
		}
		defer release()
	}

	limited := io.LimitReader(req.Body, maxResponseBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		http.Error(w, "read request body", http.StatusBadRequest)
		return
	}
	if len(raw) > maxResponseBytes {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}

	payload := raw
	if req.Header.Get("Content-Type") == ContentTypeCompressed {
		payload, err = inflateZlib(raw)
		if err != nil {
			http.Error(w, "invalid compressed payload", http.StatusBadRequest)
			return
		}
	}

	cards, err := sync.Decode(payload)
	if err != nil {
		writeError(w, req, err)
		return
	}

	outbound, err := s.Handle(req, cards)
	if err != nil {
		writeError(w, req, err)
		return
	}

	encoded := sync.Encode(outbound)
	if req.Header.Get("Content-Type") == ContentTypeCompressed {
		compressed, cerr := deflateZlib(encoded)
		if cerr != nil {
			http.Error(w, "compress response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", ContentTypeCompressed)
		_, _ = w.Write(compressed)
		return
	}
	w.Header().Set("Content-Type", ContentTypeDebug)
	_, _ = w.Write(encoded)
}

func writeError(w http.ResponseWriter, req *http.Request, err error) {
	status := http.StatusInternalServerError
	if errs.IsCategory(err, errs.CategoryAuth) {
		status = http.StatusUnauthorized
	}
	if errs.IsCategory(err, errs.CategoryProtocol) {
		status = http.StatusBadRequest
	}
	w.WriteHeader(status)
	errCard := sync.Encode([]sync.Card{sync.Err(err.Error())})
	if req.Header.Get("Content-Type") == ContentTypeCompressed {
		if compressed, cerr := deflateZlib(errCard); cerr == nil {
			_, _ = w.Write(compressed)
			return
		}
	}
	_, _ = w.Write(errCard)
}

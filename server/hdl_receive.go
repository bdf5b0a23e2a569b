/******************************************************************************
 *
 *  Description :
 *
 *  Delivery endpoint. Accepts a magic envelope addressed to a local user
 *  and feeds it to the receiving pipeline.
 *
 *****************************************************************************/

package main

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/seednode/pod/server/logs"
	"github.com/seednode/pod/server/store"
	t "github.com/seednode/pod/server/store/types"
)

// Cap on the accepted envelope size, 1MB.
const maxEnvelopeSize = 1 << 20

// serveReceive handles POST /receive/users/{handle}.
func serveReceive(wrt http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		wrt.Header().Set("Allow", http.MethodPost)
		http.Error(wrt, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	handle := strings.TrimPrefix(req.URL.Path, "/receive/users/")
	if handle == "" || strings.Contains(handle, "/") {
		http.Error(wrt, "malformed request", http.StatusBadRequest)
		return
	}

	user, err := store.Users.Get(handle)
	if err != nil {
		if errors.Is(err, t.ErrNotFound) {
			http.Error(wrt, "no such user", http.StatusNotFound)
		} else {
			logs.Error.Println("receive: user lookup failed:", err)
			http.Error(wrt, "internal error", http.StatusInternalServerError)
		}
		return
	}

	raw, err := io.ReadAll(io.LimitReader(req.Body, maxEnvelopeSize+1))
	if err != nil {
		http.Error(wrt, "failed to read request", http.StatusBadRequest)
		return
	}
	if len(raw) > maxEnvelopeSize {
		http.Error(wrt, "envelope too large", http.StatusRequestEntityTooLarge)
		return
	}

	if err := globals.rcv.Receive(req.Context(), raw, user); err != nil {
		logs.Warning.Printf("receive: rejected envelope for '%s': %s", handle, err)
		http.Error(wrt, err.Error(), receiveStatus(err))
		return
	}

	wrt.WriteHeader(http.StatusAccepted)
}

func receiveStatus(err error) int {
	switch {
	case errors.Is(err, ErrMalformedPayload):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrAuthorMismatch):
		return http.StatusForbidden
	case errors.Is(err, ErrUnknownSender), errors.Is(err, ErrUnresolvableIdentity),
		errors.Is(err, ErrOrphanObject):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

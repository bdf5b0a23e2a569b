// Debug tooling: dumps a named runtime profile in response to an HTTP
// request at http://<host-name>/<configured-path>/<profile-name>.
// See https://golang.org/pkg/runtime/pprof/#Profile for profile names.

package main

import (
	"fmt"
	"net/http"
	"path"
	"runtime/pprof"
	"strings"

	"github.com/seednode/pod/server/logs"
)

var pprofHttpRoot string

// Expose debug profiling at the given URL path.
func servePprof(mux *http.ServeMux, serveAt string) {
	if serveAt == "" || serveAt == "-" {
		return
	}

	pprofHttpRoot = path.Clean("/"+serveAt) + "/"
	mux.HandleFunc(pprofHttpRoot, profileHandler)

	logs.Info.Printf("pprof: profiling info exposed at '%s'", pprofHttpRoot)
}

func profileHandler(wrt http.ResponseWriter, req *http.Request) {
	wrt.Header().Set("X-Content-Type-Options", "nosniff")
	wrt.Header().Set("Content-Type", "text/plain; charset=utf-8")

	profile := pprof.Lookup(strings.TrimPrefix(req.URL.Path, pprofHttpRoot))
	if profile == nil {
		wrt.Header().Set("X-Go-Pprof", "1")
		wrt.WriteHeader(http.StatusNotFound)
		fmt.Fprintln(wrt, "unknown profile")
		return
	}

	profile.WriteTo(wrt, 2)
}

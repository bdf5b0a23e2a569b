// Logic related to stats reporting: expvar for live counters and a
// prometheus endpoint for scraping. The expvar updates happen in a separate
// goroutine to avoid locking on main logic routines.

package main

import (
	"errors"
	"expvar"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seednode/pod/server/logs"
)

type varUpdate struct {
	// Name of the variable to update.
	varname string
	// Integer value to publish.
	count int64
	// Treat the count as an increment as opposite to the final value.
	inc bool
}

var receivesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "pod",
		Subsystem: "receiver",
		Name:      "receives_total",
		Help:      "Receive calls by outcome.",
	},
	[]string{"outcome"},
)

// Initialize stats reporting through expvar and prometheus.
func statsInit(mux *http.ServeMux, expvarPath, metricsPath string) {
	if expvarPath != "" && expvarPath != "-" {
		mux.Handle(expvarPath, expvar.Handler())
		logs.Info.Printf("stats: variables exposed at '%s'", expvarPath)
	}
	if metricsPath != "" && metricsPath != "-" {
		prometheus.MustRegister(receivesTotal)
		mux.Handle(metricsPath, promhttp.Handler())
		logs.Info.Printf("stats: prometheus metrics exposed at '%s'", metricsPath)
	}

	globals.statsUpdate = make(chan *varUpdate, 1024)

	start := time.Now()
	expvar.Publish("Uptime", expvar.Func(func() interface{} {
		return time.Since(start).Seconds()
	}))
	expvar.Publish("NumGoroutines", expvar.Func(func() interface{} {
		return runtime.NumGoroutine()
	}))

	statsRegisterInt("TotalReceives")
	statsRegisterInt("FailedReceives")

	go statsUpdater()
}

// Register integer variable. Don't check for initialization.
func statsRegisterInt(name string) {
	expvar.Publish(name, new(expvar.Int))
}

// Async publish an increment (decrement) to int variable.
func statsInc(name string, val int) {
	if globals.statsUpdate != nil {
		select {
		case globals.statsUpdate <- &varUpdate{name, int64(val), true}:
		default:
		}
	}
}

// Stop publishing stats.
func statsShutdown() {
	if globals.statsUpdate != nil {
		globals.statsUpdate <- nil
	}
}

// The go routine which actually publishes stats updates.
func statsUpdater() {
	for upd := range globals.statsUpdate {
		if upd == nil {
			globals.statsUpdate = nil
			// Don't care to close the channel.
			break
		}

		// Handle var update
		if ev := expvar.Get(upd.varname); ev != nil {
			// Intentional panic if the ev is not *expvar.Int.
			intvar := ev.(*expvar.Int)
			if upd.inc {
				intvar.Add(upd.count)
			} else {
				intvar.Set(upd.count)
			}
		} else {
			panic("stats: update to unknown variable " + upd.varname)
		}
	}

	logs.Info.Println("stats: shutdown")
}

// statsCountReceive records the outcome of one receive call.
func statsCountReceive(err error) {
	receivesTotal.WithLabelValues(receiveOutcome(err)).Inc()
	statsInc("TotalReceives", 1)
	if err != nil {
		statsInc("FailedReceives", 1)
	}
}

func receiveOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrUnknownSender):
		return "unknown_sender"
	case errors.Is(err, ErrUnresolvableIdentity):
		return "unresolvable_identity"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrAuthorMismatch):
		return "author_mismatch"
	case errors.Is(err, ErrOrphanObject):
		return "orphan_object"
	case errors.Is(err, ErrStorageConflict):
		return "storage_conflict"
	}
	return "internal"
}

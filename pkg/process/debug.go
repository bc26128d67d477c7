// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package process

import (
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"
	"gopkg.in/spacemonkeygo/monkit.v2/present"
)

var (
	debugFlags = pflag.NewFlagSet("debug", pflag.ContinueOnError)

	debugAddr = debugFlags.String("debug.addr", "", "address to listen on for debug endpoints; disabled when empty")
)

func initDebug(log *zap.Logger, r *monkit.Registry) (err error) {
	if *debugAddr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", *debugAddr)
	if err != nil {
		return err
	}

	go func() {
		log.Debug("debug server listening", zap.Stringer("addr", ln.Addr()))
		err := (&http.Server{Handler: debugHandler(r)}).Serve(ln)
		if err != nil {
			log.Error("debug server died", zap.Error(err))
		}
	}()
	return nil
}

func debugHandler(r *monkit.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/mon/", http.StripPrefix("/mon", present.HTTP(r)))
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, req *http.Request) {
		prometheus(w, r)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, "OK")
	})
	return mux
}

func sanitize(val string) string {
	// metric names must match [a-zA-Z_:][a-zA-Z0-9_:]*
	if val == "" || ('0' <= val[0] && val[0] <= '9') {
		val = "_" + val
	}
	return strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z':
			return r
		case 'A' <= r && r <= 'Z':
			return r
		case '0' <= r && r <= '9':
			return r
		default:
			return '_'
		}
	}, val)
}

// prometheus writes the registry in the prometheus text exposition format.
func prometheus(w http.ResponseWriter, r *monkit.Registry) {
	r.Stats(func(name string, val float64) {
		metric := sanitize(name)
		_, _ = fmt.Fprintf(w, "# TYPE %s gauge\n%s %g\n", metric, metric, val)
	})
}

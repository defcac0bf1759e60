// cnode is a minimal reference implementation of a C-Node: it registers
// an alive name with the local EPMD, accepts Erlang distribution
// connections (each served in its own goroutine), and answers every
// RegSend it receives with a fixed echo reply. It exists to prove the
// etf/epmd/dist stack is wired end-to-end, not to reimplement any
// particular demo program.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"

	"github.com/openproto/ecnode/dist"
	"github.com/openproto/ecnode/epmd"
	"github.com/openproto/ecnode/etf"
	"github.com/openproto/ecnode/metrics"
)

var (
	aliveName  = flag.String("name", "cnode", "EPMD alive name to register")
	listenAddr = flag.String("listen", ":0", "address to accept the distribution connection on")
	epmdPort   = flag.Int("epmd.port", 0, "EPMD port override, 0 means the ei default (4369)")
	cookiePath = flag.String("cookie", "", "path to the shared cookie file, default $HOME/.erlang.cookie")
	promPort   = flag.String("prom", ":9090", "Prometheus metrics export address and port")

	ctx, cancel = context.WithCancel(context.Background())
)

// echoHandler answers every RegSend with a fixed UTF8Atom("pong"),
// logging the sender so the wiring can be observed end-to-end.
type echoHandler struct{}

func (echoHandler) Handle(ctx context.Context, from etf.Pid, toName string, payload *etf.Reader) ([]byte, error) {
	log.Printf("cnode: RegSend to %q from %s", toName, from.Node.String())
	var buf bytes.Buffer
	w := etf.NewWriter(&buf)
	if err := w.WriteU8(etf.VersionMagic); err != nil {
		return nil, err
	}
	if err := w.WriteTerm(etf.UTF8Atom("pong")); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment variables")
	defer cancel()

	promSrv := prometheusx.MustStartPrometheus(*promPort)
	defer promSrv.Shutdown(ctx)

	cookie, err := cookieFromFile(*cookiePath)
	rtx.Must(err, "Could not read cookie file")

	ln, err := net.Listen("tcp", *listenAddr)
	rtx.Must(err, "Could not listen on %s", *listenAddr)
	defer ln.Close()

	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	rtx.Must(err, "Could not parse listener address %s", ln.Addr())
	port, err := parsePort(portStr)
	rtx.Must(err, "Could not parse listener port %s", portStr)

	client := epmd.NewClient(*epmdPort)
	reg, err := client.Publish(ctx, *aliveName, port)
	rtx.Must(err, "Could not register %q with epmd", *aliveName)
	defer reg.Close()
	log.Printf("cnode: registered %q (creation %d), listening on %s", *aliveName, reg.Creation, ln.Addr())

	go func() {
		if err := reg.KeepAlive(ctx); err != nil && ctx.Err() == nil {
			log.Printf("cnode: epmd registration lost: %v", err)
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("cnode: accept: %v", err)
			return
		}
		go serve(conn, *aliveName, cookie)
	}
}

func serve(conn net.Conn, nodeName, cookie string) {
	defer conn.Close()
	sess, err := dist.Accept(ctx, conn, nodeName, cookie, echoHandler{})
	if err != nil {
		log.Printf("cnode: handshake: %v", err)
		return
	}
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	if err := sess.Serve(ctx); err != nil {
		log.Printf("cnode: session ended: %v", err)
	}
}

func parsePort(s string) (uint16, error) {
	var p int
	if _, err := fmt.Sscan(s, &p); err != nil {
		return 0, err
	}
	return uint16(p), nil
}

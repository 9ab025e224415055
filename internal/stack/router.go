// router.go implements the "upper router" spec.md §2 describes: the
// single consumer of the Rx engine's two bounded queues (C4's output),
// decoding each delivered packet and handing it to an external
// collaborator, then driving any reply chain back out through the Tx
// engine (C6). The video renderer, telemetry consumer and menu UI that
// would normally own packet handling are out-of-scope external
// collaborators (spec.md §1, Non-goals); this router is the wiring
// point where a cmd/ binary plugs one in via RadioStack.SetDeliver.
package stack

import (
	"sync"

	"github.com/rubyfpv/radio-link/internal/config"
	"github.com/rubyfpv/radio-link/internal/packet"
	"github.com/rubyfpv/radio-link/internal/rlog"
	"github.com/rubyfpv/radio-link/internal/rxengine"
	"github.com/rubyfpv/radio-link/internal/txengine"
)

// DeliverFunc receives one decoded, already-deduplicated packet off
// either priority queue. It may return a chain of packets to transmit
// in response (e.g. a control reply); a nil or empty result means
// nothing goes out for this packet.
type DeliverFunc func(ifaceIndex int, pkt *packet.Packet) []*packet.Packet

// router drains rxengine's HighPriority and Regular queues, always
// favoring HighPriority, and calls txengine.Engine.Send for whatever
// deliver returns.
type router struct {
	rx      *rxengine.Engine
	tx      *txengine.Engine
	targets func() []txengine.LinkTarget
	log     *rlog.Logger

	deliver DeliverFunc

	quit chan struct{}
	wg   sync.WaitGroup
}

func newRouter(rx *rxengine.Engine, tx *txengine.Engine, targets func() []txengine.LinkTarget, log *rlog.Logger) *router {
	return &router{rx: rx, tx: tx, targets: targets, log: log, quit: make(chan struct{})}
}

func (r *router) start() {
	r.wg.Add(1)
	go r.loop()
}

func (r *router) stop() {
	close(r.quit)
	r.wg.Wait()
}

func (r *router) loop() {
	defer r.wg.Done()
	buf := make([]byte, config.MaxPacketTotalSize)

	for {
		select {
		case <-r.quit:
			return
		default:
		}

		if n, ifaceIdx, _, ok := r.rx.HighPriority.TryPop(buf); ok {
			r.handle(ifaceIdx, buf[:n])
			continue
		}
		if n, ifaceIdx, _, ok := r.rx.Regular.TimedPop(buf, config.RxSelectTimeout); ok {
			r.handle(ifaceIdx, buf[:n])
		}
	}
}

func (r *router) handle(ifaceIdx int, buf []byte) {
	pkt, err := packet.Decode(buf, nil)
	if err != nil {
		r.log.Warnf("router: dropping undecodable queued packet: %v", err)
		return
	}
	if r.deliver == nil {
		return
	}
	reply := r.deliver(ifaceIdx, pkt)
	if len(reply) == 0 {
		return
	}
	r.tx.Send(reply, r.targets(), -1, false)
}

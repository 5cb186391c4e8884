// Package listener receives SSDP advertisements (NOTIFY messages) in the
// background.
//
// Start opens a socket on port 1900, joins the multicast group and runs a
// receive loop that owns the socket. Each datagram is decoded; failures are
// dropped without stopping the loop, since unrelated traffic shares the
// group. Decoded advertisements are buffered in a bounded queue and handed
// out by Next.
//
//	l, err := listener.Start(listener.Options{Version: ssdp.V11})
//	if err != nil {
//	    return err
//	}
//	defer l.Stop()
//
//	for {
//	    adv, err := l.Next(ctx)
//	    if err != nil {
//	        return err // ErrClosed after Stop
//	    }
//	    fmt.Println(adv.Kind, adv.USN)
//	}
//
// Stop may be called from any goroutine and unblocks a pending Next.
package listener

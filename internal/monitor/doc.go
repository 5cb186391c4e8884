// Package monitor keeps a live table of the SSDP devices present on the
// network.
//
// A Monitor combines the advertisement listener with a periodic search,
// both feeding one table keyed by USN. Entries expire by their max-age and
// are removed by a sweeper, or straight away on ssdp:byebye. Every change is
// published as an Event to the channels handed out by Subscribe.
//
// The monitor is a suture supervisor, so a listener that loses its socket is
// restarted with backoff:
//
//	m, err := monitor.New(monitor.Options{Search: ssdp.DefaultSearchOptions(ssdp.V11)})
//	if err != nil {
//	    return err
//	}
//	events, cancel := m.Subscribe(0)
//	defer cancel()
//	go m.Serve(ctx)
//
//	for ev := range events {
//	    fmt.Println(ev.Type, ev.Device.USN)
//	}
package monitor

// Package search implements the control point side of SSDP discovery: a
// bounded-time M-SEARCH over one or more interfaces.
//
// A search opens one socket for an explicit interface, or one per eligible
// multicast interface, sends the request once on each, and collects the
// unicast replies until MaxWait seconds have passed. It always waits the full
// window since devices answer at random points inside it. Undecodable
// replies are dropped and logged; they never fail the search. Receiving no
// replies at all is a normal, successful outcome.
//
// Basic usage:
//
//	opts := ssdp.DefaultSearchOptions(ssdp.V11)
//	opts.Target = ssdp.All()
//
//	responses, err := search.New().Search(ctx, opts)
//	if err != nil {
//	    return err
//	}
//	for _, r := range responses {
//	    fmt.Println(r.USN, r.Location)
//	}
//
// Cache keeps replies across repeated searches in memory, keyed by USN, and
// expires them by their max-age.
package search

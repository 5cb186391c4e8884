// Package httpu implements the HTTP-over-UDP message grammar used by SSDP.
//
// An HTTPU message is a single datagram carrying an HTTP/1.1 style start line
// followed by header lines and a terminating blank line. There is never a
// body. Three start lines appear on the wire:
//
//	M-SEARCH * HTTP/1.1    (search request, multicast or unicast)
//	NOTIFY * HTTP/1.1      (advertisement, multicast)
//	HTTP/1.1 200 OK        (search response, unicast)
//
// # Headers
//
// Header names are case-insensitive on lookup but their original spelling and
// order are kept, so a decoded message re-encodes to the same header block.
// Device vendors routinely append their own headers (X-User-Agent,
// OPT, 01-NLS and friends); these are never rejected.
//
//	msg, err := httpu.Decode(datagram)
//	if err != nil {
//	    var perr *httpu.ParseError
//	    if errors.As(err, &perr) {
//	        // perr.Kind, perr.Header, perr.Line
//	    }
//	}
//	location := msg.Header.Get("location")
//
// # Leniency
//
// Decode accepts bare LF line endings, trailing whitespace and a missing final
// blank line, since all three are common in embedded SSDP stacks. It only
// fails when the start line or a header line cannot be split on the grammar's
// delimiters.
package httpu

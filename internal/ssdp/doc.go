// Package ssdp models the Simple Service Discovery Protocol messages of the
// UPnP Device Architecture on top of the httpu codec.
//
// It knows which headers each protocol version requires, how search targets
// render into ST/NT values, and how to turn decoded messages into typed
// SearchResponse and Advertisement values. It performs no I/O; see the
// transport, search and listener packages for that.
//
// # Versions
//
// Three versions are supported and compare in order (V10 < V11 < V20):
//
//   - 1.0: HOST, MAN, MX, ST only.
//   - 1.1: adds USER-AGENT and CPFN.UPNP.ORG to searches, BOOTID/CONFIGID/
//     SEARCHPORT to responses and notifications, unicast search and
//     ssdp:update.
//   - 2.0: requires a control point; adds CPUUID.UPNP.ORG and TCPPORT.UPNP.ORG.
//
// # Search Targets
//
//	ssdp.All()                                   // ssdp:all
//	ssdp.RootDevices()                           // upnp:rootdevice
//	ssdp.DeviceByUUID("2fac1234-...")            // uuid:2fac1234-...
//	ssdp.DeviceByType("", "MediaServer", "1")    // urn:schemas-upnp-org:device:MediaServer:1
//	ssdp.ServiceByType("", "ContentDirectory", "1")
//
// # Building a Search
//
//	opts := ssdp.DefaultSearchOptions(ssdp.V11)
//	opts.Target = ssdp.ServiceByType("", "WANIPConnection", "1")
//	msg, err := ssdp.BuildSearchRequest(opts)
//	if err != nil {
//	    return err
//	}
//	datagram := msg.Bytes()
//
// MX values above five seconds are clamped to five and a warning is logged.
package ssdp

// Package advertise is the device side of SSDP: it announces a root device
// and its services with NOTIFY messages and, optionally, answers M-SEARCH
// requests for them.
//
// A Device expands into the NT/USN pairs UDA requires (root device, UUID,
// device type, each service). An Advertiser sends ssdp:alive, ssdp:update
// or ssdp:byebye for all of them. Serve runs the announce cycle until its
// context ends and can be added to a suture supervisor.
package advertise

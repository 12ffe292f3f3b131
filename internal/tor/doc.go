// Package tor connects the scanner to the Tor network.
//
// Client wraps the SOCKS5 proxy and hands out HTTP clients whose every
// connection leaves through Tor. Controller speaks the control-port protocol
// and asks the daemon for a new identity (SIGNAL NEWNYM), which changes the
// exit relay and therefore the address the target site sees. EmbeddedTor
// starts a private daemon through tornago when no system Tor is available.
//
//	client, err := tor.NewClient("127.0.0.1:9050", 0)
//	ctrl, err := tor.NewController("127.0.0.1:9051")
//	err = ctrl.NewIdentity(ctx)
package tor

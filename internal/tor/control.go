package tor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"time"
)

// Control port defaults.
const (
	DefaultControlAddress = "127.0.0.1:9051"
	DefaultControlTimeout = 5 * time.Second

	statusOK = 250
)

// Controller talks to a Tor control port to request new circuits.
type Controller struct {
	address    string
	password   string
	cookiePath string
	timeout    time.Duration
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithControlPassword authenticates with HASHEDPASSWORD using the given secret.
func WithControlPassword(password string) ControllerOption {
	return func(c *Controller) {
		c.password = password
	}
}

// WithCookieFile authenticates with the control cookie stored at path.
// Without it, the cookie path advertised by PROTOCOLINFO is used.
func WithCookieFile(path string) ControllerOption {
	return func(c *Controller) {
		c.cookiePath = path
	}
}

// WithControlTimeout bounds dialing and the whole exchange.
func WithControlTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewController creates a Controller for the control port at address.
func NewController(address string, opts ...ControllerOption) (*Controller, error) {
	if !isValidProxyAddress(address) {
		return nil, ErrInvalidProxyAddress
	}

	c := &Controller{
		address: address,
		timeout: DefaultControlTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Address returns the control port address.
func (c *Controller) Address() string {
	return c.address
}

// NewIdentity authenticates and sends SIGNAL NEWNYM, asking Tor to use fresh
// circuits for new connections.
func (c *Controller) NewIdentity(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("dial control port %s: %w", c.address, err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set control deadline: %w", err)
	}

	tp := textproto.NewConn(conn)
	defer tp.Close()

	info, err := protocolInfo(tp)
	if err != nil {
		// Very old daemons and some proxies do not implement PROTOCOLINFO;
		// fall through with no advertised methods.
		info = authInfo{}
	}

	auth, err := c.authenticateLine(info)
	if err != nil {
		return err
	}
	if _, _, err := command(tp, auth); err != nil {
		return fmt.Errorf("%w: %w", ErrControlAuth, err)
	}

	if _, _, err := command(tp, "SIGNAL NEWNYM"); err != nil {
		return fmt.Errorf("%w: %w", ErrControlSignal, err)
	}

	_, _, _ = command(tp, "QUIT") //nolint:errcheck // connection is closing anyway
	return nil
}

// authInfo is the parsed AUTH line of a PROTOCOLINFO reply.
type authInfo struct {
	methods    map[string]bool
	cookieFile string
}

// authenticateLine picks the AUTHENTICATE command for the advertised methods.
func (c *Controller) authenticateLine(info authInfo) (string, error) {
	switch {
	case c.password != "":
		return "AUTHENTICATE " + quoteString(c.password), nil
	case info.methods["NULL"]:
		return "AUTHENTICATE", nil
	case info.methods["COOKIE"] || c.cookiePath != "":
		path := c.cookiePath
		if path == "" {
			path = info.cookieFile
		}
		if path == "" {
			return "", fmt.Errorf("%w: cookie authentication required but no cookie file known", ErrControlAuth)
		}
		cookie, err := os.ReadFile(path) //nolint:gosec // path comes from config or the daemon itself
		if err != nil {
			return "", fmt.Errorf("%w: read cookie: %w", ErrControlAuth, err)
		}
		return "AUTHENTICATE " + hex.EncodeToString(cookie), nil
	default:
		return `AUTHENTICATE ""`, nil
	}
}

// protocolInfo asks the daemon which authentication methods it accepts.
func protocolInfo(tp *textproto.Conn) (authInfo, error) {
	_, msg, err := command(tp, "PROTOCOLINFO 1")
	if err != nil {
		return authInfo{}, err
	}
	return parseProtocolInfo(msg), nil
}

// parseProtocolInfo extracts METHODS and COOKIEFILE from a PROTOCOLINFO reply.
func parseProtocolInfo(msg string) authInfo {
	info := authInfo{methods: make(map[string]bool)}

	for line := range strings.SplitSeq(msg, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "AUTH ")
		if !ok {
			continue
		}
		for field := range strings.FieldsSeq(rest) {
			if methods, ok := strings.CutPrefix(field, "METHODS="); ok {
				for m := range strings.SplitSeq(methods, ",") {
					info.methods[strings.ToUpper(m)] = true
				}
			}
		}
		if _, quoted, ok := strings.Cut(rest, "COOKIEFILE="); ok {
			if end := closingQuote(quoted); end > 0 {
				if path, err := strconv.Unquote(quoted[:end+1]); err == nil {
					info.cookieFile = path
				}
			}
		}
	}
	return info
}

// closingQuote returns the index of the quote that closes the quoted string
// starting at s[0], or -1.
func closingQuote(s string) int {
	if s == "" || s[0] != '"' {
		return -1
	}
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

// quoteString renders s as a control-protocol QuotedString.
func quoteString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// command sends one line and reads a reply that must carry status 250.
func command(tp *textproto.Conn, line string) (int, string, error) {
	id, err := tp.Cmd("%s", line)
	if err != nil {
		return 0, "", err
	}
	tp.StartResponse(id)
	defer tp.EndResponse(id)

	code, msg, err := tp.ReadResponse(statusOK)
	if err != nil {
		var protoErr *textproto.Error
		if errors.As(err, &protoErr) {
			return protoErr.Code, protoErr.Msg, fmt.Errorf("control reply %d %s", protoErr.Code, protoErr.Msg)
		}
		return code, msg, err
	}
	return code, msg, nil
}

// Package directory is the capability-restricted client for the LDAP
// directory holding user accounts. It can bind (as the administrative
// identity or as an end user), resolve an entry by distinguished name, and
// apply a password change. Authorization lives entirely in the directory:
// a successful bind is the proof of authority, no extra checks are made
// here.
package directory

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"
)

var (
	// ErrUnreachable means the directory server could not be contacted.
	ErrUnreachable = errors.New("directory server unreachable")
	// ErrInvalidCredentials means the bind identity or credential was
	// rejected by the directory.
	ErrInvalidCredentials = errors.New("invalid directory credentials")
	// ErrEntryNotFound means the requested entry does not exist.
	ErrEntryNotFound = errors.New("directory entry not found")
)

// Entry is a resolved directory entry.
type Entry struct {
	// DN is the entry's distinguished name as returned by the directory.
	DN string
	// CommonName is the entry's cn attribute (first value).
	CommonName string
	// UID is the entry's uid attribute (first value).
	UID string
}

// Connection is an authenticated session with the directory. It must be
// closed on every exit path; connections are opened fresh per operation.
type Connection interface {
	// Resolve fetches the entry at dn, or ErrEntryNotFound if it does
	// not exist. A bind success does not guarantee the target entry
	// exists, so Resolve must be called before any mutation.
	Resolve(dn string) (*Entry, error)
	// SetPassword changes the password of the entry at dn. Failures are
	// directory-specific (policy rejection, schema violation,
	// connectivity) and surfaced opaquely.
	SetPassword(dn, newPassword string) error
	// Close releases the connection.
	Close() error
}

// Gateway opens authenticated directory connections.
type Gateway struct {
	url     string
	timeout time.Duration
}

// NewGateway creates a Gateway for the directory at url
// (ldap:// or ldaps://).
func NewGateway(url string) *Gateway {
	return &Gateway{url: url, timeout: 10 * time.Second}
}

// Bind opens a connection and authenticates as bindDN. It fails with
// ErrUnreachable if the server cannot be contacted and ErrInvalidCredentials
// if the directory rejects the credential. An empty password is rejected
// locally: LDAP treats it as an anonymous bind, which must never pass for
// proof of ownership.
func (g *Gateway) Bind(bindDN, password string) (Connection, error) {
	if password == "" {
		return nil, ErrInvalidCredentials
	}
	conn, err := ldap.DialURL(g.url, ldap.DialWithDialer(&net.Dialer{Timeout: g.timeout}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if err := conn.Bind(bindDN, password); err != nil {
		conn.Close()
		return nil, classifyBindError(err)
	}
	return &ldapConn{conn: conn}, nil
}

// classifyBindError maps an ldap bind failure onto the gateway's sentinel
// taxonomy.
func classifyBindError(err error) error {
	if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if ldap.IsErrorWithCode(err, ldap.ErrorNetwork) {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return fmt.Errorf("directory bind: %w", err)
}

type ldapConn struct {
	conn *ldap.Conn
}

func (c *ldapConn) Resolve(dn string) (*Entry, error) {
	req := ldap.NewSearchRequest(
		dn,
		ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, 0, false,
		"(objectClass=*)",
		[]string{"cn", "uid"},
		nil,
	)
	res, err := c.conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("directory search: %w", err)
	}
	if len(res.Entries) == 0 {
		return nil, ErrEntryNotFound
	}
	e := res.Entries[0]
	return &Entry{
		DN:         e.DN,
		CommonName: e.GetAttributeValue("cn"),
		UID:        e.GetAttributeValue("uid"),
	}, nil
}

func (c *ldapConn) SetPassword(dn, newPassword string) error {
	req := ldap.NewPasswordModifyRequest(dn, "", newPassword)
	if _, err := c.conn.PasswordModify(req); err != nil {
		return fmt.Errorf("directory password modify: %w", err)
	}
	return nil
}

func (c *ldapConn) Close() error {
	return c.conn.Close()
}

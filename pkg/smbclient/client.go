// Package smbclient opens authenticated SMB2 sessions for batch ingestion
// from file shares.
package smbclient

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/hirochachacha/go-smb2"
)

const defaultPort = "445"

type Session struct {
	Session *smb2.Session
	Conn    net.Conn
}

// Address appends the SMB port to host unless it already carries one.
func Address(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, defaultPort)
}

// NewSession dials host and negotiates a session. timeout bounds the TCP
// connect and the SMB negotiation together; zero means 30s.
func NewSession(ctx context.Context, host string, creds Credentials, timeout time.Duration) (s *Session, err error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	initiator, err := Initiator(creds)
	if err != nil {
		return nil, err
	}

	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", Address(host))
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in SMB dial: %v", r)
			conn.Close()
		}
	}()

	d := &smb2.Dialer{Initiator: initiator}
	session, err := d.DialContext(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Session{Session: session, Conn: conn}, nil
}

func (s *Session) ListShares() ([]string, error) {
	return s.Session.ListSharenames()
}

func (s *Session) Mount(share string) (*smb2.Share, error) {
	return s.Session.Mount(share)
}

func (s *Session) Close() {
	if s.Session != nil {
		s.Session.Logoff()
	}
	if s.Conn != nil {
		s.Conn.Close()
	}
}

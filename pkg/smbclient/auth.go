package smbclient

import (
	"encoding/hex"
	"fmt"

	"github.com/hirochachacha/go-smb2"
)

// Credentials authenticate an SMB session. Hash, when set, is the hex NT
// hash and takes precedence over Password.
type Credentials struct {
	User     string
	Password string
	Domain   string
	Hash     string
}

// Initiator builds the NTLM initiator for creds. go-smb2 only supports NTLM.
func Initiator(creds Credentials) (*smb2.NTLMInitiator, error) {
	if creds.Hash != "" {
		hashBytes, err := hex.DecodeString(creds.Hash)
		if err != nil {
			return nil, fmt.Errorf("invalid ntlm hash format: %v", err)
		}
		if len(hashBytes) != 16 {
			return nil, fmt.Errorf("invalid ntlm hash length: %d bytes, want 16", len(hashBytes))
		}
		return &smb2.NTLMInitiator{
			User:   creds.User,
			Domain: creds.Domain,
			Hash:   hashBytes,
		}, nil
	}

	return &smb2.NTLMInitiator{
		User:     creds.User,
		Password: creds.Password,
		Domain:   creds.Domain,
	}, nil
}

package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

const checksumSep = "###"

var (
	ErrChecksumMissing  = errors.New("checksum header missing")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// ChecksumService signs and verifies gateway callback bodies as
// hex(sha256(body || saltKey)) + "###" + saltIndex.
type ChecksumService interface {
	Sign(body []byte) string
	Verify(body []byte, header string) error
}

type checksumService struct {
	saltKey   []byte
	saltIndex string
}

func NewChecksumService(m *ChecksumMaterial) (ChecksumService, error) {
	if len(m.SaltKey) == 0 {
		return nil, errors.New("salt key required")
	}
	if m.SaltIndex == "" {
		return nil, errors.New("salt index required")
	}
	return &checksumService{saltKey: m.SaltKey, saltIndex: m.SaltIndex}, nil
}

func (cs *checksumService) Sign(body []byte) string {
	h := sha256.New()
	h.Write(body)
	h.Write(cs.saltKey)
	return hex.EncodeToString(h.Sum(nil)) + checksumSep + cs.saltIndex
}

func (cs *checksumService) Verify(body []byte, header string) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrChecksumMissing
	}
	want := cs.Sign(body)
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(header)), []byte(want)) != 1 {
		return ErrChecksumMismatch
	}
	return nil
}

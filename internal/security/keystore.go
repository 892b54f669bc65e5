package security

import (
	"errors"

	"github.com/aq2208/gorder-bookstore/configs"
)

type ChecksumMaterial struct {
	SaltKey   []byte
	SaltIndex string
}

func NewChecksumMaterial(c configs.Config) (*ChecksumMaterial, error) {
	cm, err := LoadChecksumMaterial(c)
	return &cm, err
}

func LoadChecksumMaterial(c configs.Config) (ChecksumMaterial, error) {
	if c.Gateway.SaltKey == "" || c.Gateway.SaltIndex == "" {
		return ChecksumMaterial{}, errors.New("missing gateway salt_key or salt_index")
	}
	return ChecksumMaterial{
		SaltKey:   []byte(c.Gateway.SaltKey),
		SaltIndex: c.Gateway.SaltIndex,
	}, nil
}

package models

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminKey guards the endpoints that change the gallery. Only the bcrypt
// hash is ever configured or stored.
type AdminKey struct {
	Hash string `json:"-"`
}

// SetKey hashes the given key and sets it on the model.
func (k *AdminKey) SetKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("admin key must not be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	k.Hash = string(hashed)
	return nil
}

// Check verifies if the given key matches the stored hash.
func (k AdminKey) Check(key string) bool {
	if k.Hash == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(k.Hash), []byte(key)) == nil
}

// Configured reports whether a hash is present. An unconfigured key leaves
// admin endpoints open.
func (k AdminKey) Configured() bool {
	return k.Hash != ""
}

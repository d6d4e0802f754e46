// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package secrets

import (
	"errors"

	"github.com/zalando/go-keyring"

	cohorterr "github.com/cohort-dev/cohort/pkg/errors"
)

// KeyringStore implements Store using the OS keyring via zalando/go-keyring.
// On macOS it uses Keychain, on Linux secret-service (D-Bus), and on Windows
// the Credential Manager.
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Store(service, key, value string) error {
	if service == "" {
		return cohorterr.New(cohorterr.CodeSecretInvalidInput, "secret store: service must not be empty")
	}
	if key == "" {
		return cohorterr.New(cohorterr.CodeSecretInvalidInput, "secret store: key must not be empty")
	}

	if err := keyring.Set(service, key, value); err != nil {
		return cohorterr.Wrapf(err, cohorterr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return nil
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if service == "" {
		return "", cohorterr.New(cohorterr.CodeSecretInvalidInput, "secret retrieve: service must not be empty")
	}
	if key == "" {
		return "", cohorterr.New(cohorterr.CodeSecretInvalidInput, "secret retrieve: key must not be empty")
	}

	val, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", cohorterr.Errorf(cohorterr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return "", cohorterr.Wrapf(err, cohorterr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if service == "" {
		return cohorterr.New(cohorterr.CodeSecretInvalidInput, "secret delete: service must not be empty")
	}
	if key == "" {
		return cohorterr.New(cohorterr.CodeSecretInvalidInput, "secret delete: key must not be empty")
	}

	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return cohorterr.Errorf(cohorterr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return cohorterr.Wrapf(err, cohorterr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cohort-dev/cohort/internal/secrets"
	cohorterr "github.com/cohort-dev/cohort/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSecretStore is an in-memory secrets.Store for testing.
type mockSecretStore struct {
	data map[string]string // key to value (service is always "cohort")
}

func newMockSecretStore(keys ...string) *mockSecretStore {
	m := &mockSecretStore{data: make(map[string]string)}
	for _, k := range keys {
		m.data[k] = "redacted"
	}
	return m
}

func (m *mockSecretStore) Store(_, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *mockSecretStore) Retrieve(_, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", cohorterr.Errorf(cohorterr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(_, key string) error {
	if _, ok := m.data[key]; !ok {
		return cohorterr.Errorf(cohorterr.CodeSecretNotFound, "not found")
	}
	delete(m.data, key)
	return nil
}

func withMockSecretStore(t *testing.T) *mockSecretStore {
	t.Helper()
	mock := newMockSecretStore()
	origFactory := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return mock }
	t.Cleanup(func() { secretStoreFactory = origFactory })
	return mock
}

func TestSecretSet(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	mock := withMockSecretStore(t)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader("sk-test-value\n"))
	cmd.SetArgs([]string{"secret", "set", "openai-api-key"})

	err := cmd.Execute()
	require.NoError(t, err)

	assert.Equal(t, "sk-test-value", mock.data["openai-api-key"])
	assert.Contains(t, buf.String(), "Stored secret: openai-api-key")
	assert.Contains(t, buf.String(), "keyring://cohort/openai-api-key")
}

func TestSecretSet_TrimsCRLF(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	mock := withMockSecretStore(t)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader("sk-windows-value\r\n"))
	cmd.SetArgs([]string{"secret", "set", "openai-api-key"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Equal(t, "sk-windows-value", mock.data["openai-api-key"])
}

func TestSecretSet_EmptyValueRejected(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	withMockSecretStore(t)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader("\n"))
	cmd.SetArgs([]string{"secret", "set", "openai-api-key"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, cohorterr.HasCode(err, cohorterr.CodeCLIInputInvalid))
}

func TestSecretDelete(t *testing.T) {
	tests := []struct {
		name       string
		keys       []string
		deleteKey  string
		wantOutput string
		wantErr    bool
		wantCode   cohorterr.Code
	}{
		{
			name:       "delete existing key",
			keys:       []string{"openai-api-key"},
			deleteKey:  "openai-api-key",
			wantOutput: "Deleted secret: openai-api-key\n",
		},
		{
			name:      "delete non-existent key",
			keys:      nil,
			deleteKey: "missing-key",
			wantErr:   true,
			wantCode:  cohorterr.CodeSecretNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			mock := newMockSecretStore(tt.keys...)
			origFactory := secretStoreFactory
			secretStoreFactory = func() secrets.Store { return mock }
			t.Cleanup(func() { secretStoreFactory = origFactory })

			cmd := NewRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs([]string{"secret", "delete", tt.deleteKey})

			err := cmd.Execute()

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, cohorterr.HasCode(err, tt.wantCode),
					"expected error code %s, got: %v", tt.wantCode, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantOutput, buf.String())
			}
		})
	}
}

package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	tests := []struct {
		name         string
		masterSecret []byte
		purpose      string
		wantErr      error
	}{
		{name: "valid derivation", masterSecret: []byte("master-secret-for-testing"), purpose: "purpose-v1"},
		{name: "empty purpose is allowed", masterSecret: []byte("master-secret-for-testing"), purpose: ""},
		{name: "empty secret", masterSecret: []byte{}, purpose: "purpose-v1", wantErr: ErrInvalidMasterSecret},
		{name: "nil secret", masterSecret: nil, purpose: "purpose-v1", wantErr: ErrInvalidMasterSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := DeriveKey(tt.masterSecret, tt.purpose)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, key)
				return
			}
			require.NoError(t, err)
			require.Len(t, key, DerivedKeyLength)
		})
	}
}

func TestDerivedKeysAreIndependent(t *testing.T) {
	secret := []byte("shared-master-secret")

	session, err := DeriveSessionKey(secret)
	require.NoError(t, err)
	csrfKey, err := DeriveCSRFKey(secret)
	require.NoError(t, err)
	again, err := DeriveSessionKey(secret)
	require.NoError(t, err)

	require.NotEqual(t, session, csrfKey)
	require.Equal(t, session, again)
}

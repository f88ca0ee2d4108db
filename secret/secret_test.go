package secret

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Ships []int  `json:"ships"`
	Note  string `json:"note"`
}

func TestEncryptDecrypt(t *testing.T) {
	in := payload{Ships: []int{1, 2, 3}, Note: "hidden"}

	env, err := Encrypt("signed-message", in)
	require.NoError(t, err)

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	require.NoError(t, err)
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	require.NoError(t, err)
	assert.Len(t, salt, saltLength)
	assert.Len(t, iv, ivLength)
	assert.NotContains(t, env.Text, "hidden")

	var out payload
	require.NoError(t, Decrypt("signed-message", env, &out))
	assert.Equal(t, in, out)
}

func TestEncrypt_FreshSaltAndIV(t *testing.T) {
	a, err := Encrypt("pw", payload{Note: "x"})
	require.NoError(t, err)
	b, err := Encrypt("pw", payload{Note: "x"})
	require.NoError(t, err)

	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.Text, b.Text)
}

func TestDecrypt_WrongPassword(t *testing.T) {
	env, err := Encrypt("right", payload{Note: "x"})
	require.NoError(t, err)

	var out payload
	assert.ErrorIs(t, Decrypt("wrong", env, &out), ErrDecrypt)
	assert.ErrorIs(t, Decrypt("right", nil, &out), ErrDecrypt)

	tampered := *env
	tampered.IV = base64.StdEncoding.EncodeToString([]byte("short"))
	assert.ErrorIs(t, Decrypt("right", &tampered, &out), ErrDecrypt)
}

func TestKeyCache_Bounded(t *testing.T) {
	for i := 0; i < 3*maxCachedKeys; i++ {
		_, err := Encrypt("sig", payload{Ships: []int{i}})
		require.NoError(t, err)
	}
	keysMu.Lock()
	n := len(keys)
	keysMu.Unlock()
	assert.LessOrEqual(t, n, maxCachedKeys)

	// the latest envelope still opens through the cache
	env, err := Encrypt("sig", payload{Ships: []int{7}})
	require.NoError(t, err)
	var out payload
	require.NoError(t, Decrypt("sig", env, &out))
	assert.Equal(t, []int{7}, out.Ships)
}

package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *KeyStore {
	t.Helper()
	return New(t.TempDir(), WithKeyBits(1024))
}

func TestParseTokenClass(t *testing.T) {
	tests := []struct {
		in      string
		want    TokenClass
		wantErr bool
	}{
		{"access", ClassAccess, false},
		{"Access", ClassAccess, false},
		{"REFRESH", ClassRefresh, false},
		{" refresh ", ClassRefresh, false},
		{"id", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTokenClass(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidTokenClass, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestGenerate_WritesNamedPEMFiles(t *testing.T) {
	ks := newTestStore(t)

	require.NoError(t, ks.Generate("blog", ClassAccess))

	for _, name := range []string{"blogPublicAccess.pem", "blogPrivateAccess.pem"} {
		_, err := os.Stat(filepath.Join(ks.Dir(), name))
		assert.NoError(t, err, name)
	}
	_, err := os.Stat(filepath.Join(ks.Dir(), "blogPublicRefresh.pem"))
	assert.True(t, os.IsNotExist(err))

	info, err := os.Stat(filepath.Join(ks.Dir(), "blogPrivateAccess.pem"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// no temp files left behind
	entries, err := os.ReadDir(ks.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestGenerate_PairMatches(t *testing.T) {
	ks := newTestStore(t)
	require.NoError(t, ks.Generate("blog", ClassRefresh))

	priv, err := ks.PrivateKey("blog", ClassRefresh)
	require.NoError(t, err)
	pub, err := ks.PublicKey("blog", ClassRefresh)
	require.NoError(t, err)

	assert.True(t, priv.PublicKey.Equal(pub))

	pemText, err := ks.PublicKeyPEM("blog", ClassRefresh)
	require.NoError(t, err)
	assert.Contains(t, string(pemText), "-----BEGIN RSA PUBLIC KEY-----")
}

func TestGenerate_ReplacesExistingPair(t *testing.T) {
	ks := newTestStore(t)
	require.NoError(t, ks.Generate("blog", ClassAccess))
	first, err := ks.PublicKey("blog", ClassAccess)
	require.NoError(t, err)

	require.NoError(t, ks.Generate("blog", ClassAccess))
	second, err := ks.PublicKey("blog", ClassAccess)
	require.NoError(t, err)

	assert.False(t, first.Equal(second))
}

func TestPublicKey_NotFound(t *testing.T) {
	ks := newTestStore(t)

	_, err := ks.PublicKeyPEM("ghost", ClassAccess)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = ks.PrivateKey("ghost", ClassRefresh)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestInvalidServiceName(t *testing.T) {
	ks := newTestStore(t)

	for _, name := range []string{"", "../etc", "a/b", "blog.pem", "-x"} {
		err := ks.Generate(name, ClassAccess)
		assert.ErrorIs(t, err, ErrInvalidServiceName, name)

		_, err = ks.PublicKeyPEM(name, ClassAccess)
		assert.ErrorIs(t, err, ErrInvalidServiceName, name)
	}
}

func TestInvalidClass(t *testing.T) {
	ks := newTestStore(t)
	err := ks.Generate("blog", TokenClass("Id"))
	assert.ErrorIs(t, err, ErrInvalidTokenClass)
}

func TestDelete_IgnoresMissingFiles(t *testing.T) {
	ks := newTestStore(t)
	assert.NoError(t, ks.Delete("nothing-here"))

	require.NoError(t, ks.Generate("blog", ClassAccess))
	require.NoError(t, ks.Delete("blog"))

	_, err := ks.PublicKeyPEM("blog", ClassAccess)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRegenerate_RotatesAllClasses(t *testing.T) {
	ks := newTestStore(t)
	require.NoError(t, ks.Generate("chat", ClassAccess))
	before, err := ks.PublicKey("chat", ClassAccess)
	require.NoError(t, err)

	require.NoError(t, ks.Regenerate("chat"))

	after, err := ks.PublicKey("chat", ClassAccess)
	require.NoError(t, err)
	assert.False(t, before.Equal(after))

	_, err = ks.PublicKey("chat", ClassRefresh)
	assert.NoError(t, err)
}

func TestParse_AcceptsPKIXAndPKCS8(t *testing.T) {
	ks := newTestStore(t)
	require.NoError(t, ks.Generate("blog", ClassAccess))
	priv, err := ks.PrivateKey("blog", ClassAccess)
	require.NoError(t, err)

	pkix := encodePKIXPublic(t, priv)
	parsedPub, err := parsePublicKey(pkix)
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(parsedPub))

	pkcs8 := encodePKCS8Private(t, priv)
	parsedPriv, err := parsePrivateKey(pkcs8)
	require.NoError(t, err)
	assert.True(t, priv.Equal(parsedPriv))

	_, err = parsePublicKey([]byte("not pem"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestJWKS(t *testing.T) {
	ks := newTestStore(t)

	_, err := ks.JWKS("blog")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, ks.Generate("blog", ClassAccess))
	set, err := ks.JWKS("blog")
	require.NoError(t, err)
	require.Len(t, set.Keys, 1)
	assert.Equal(t, "blog-access", set.Keys[0].KeyID)
	assert.Equal(t, "RS256", set.Keys[0].Algorithm)
	assert.True(t, set.Keys[0].IsPublic())

	require.NoError(t, ks.Generate("blog", ClassRefresh))
	set, err = ks.JWKS("blog")
	require.NoError(t, err)
	assert.Len(t, set.Key("blog-refresh"), 1)
}

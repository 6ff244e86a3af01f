package checksum

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sha256("hello")
const helloDigest = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestVerify(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		wantErr  bool
	}{
		{name: "exact", expected: helloDigest},
		{name: "uppercase", expected: strings.ToUpper(helloDigest)},
		{name: "trailing newline", expected: helloDigest + "\n"},
		{name: "mismatch", expected: strings.Repeat("0", 64), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify([]byte("hello"), tt.expected)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var mismatch *MismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, helloDigest, mismatch.Actual)
			assert.Equal(t, strings.Repeat("0", 64), mismatch.Expected)
		})
	}
}

func TestParseSidecar(t *testing.T) {
	digest, err := ParseSidecar([]byte(strings.ToUpper(helloDigest) + "  uv-x86_64-unknown-linux-gnu.tar.gz\n"))
	require.NoError(t, err)
	assert.Equal(t, helloDigest, digest)

	digest, err = ParseSidecar([]byte(helloDigest))
	require.NoError(t, err)
	assert.Equal(t, helloDigest, digest)

	_, err = ParseSidecar([]byte("\n"))
	assert.Error(t, err)
	_, err = ParseSidecar([]byte("not-a-digest file"))
	assert.Error(t, err)
}

func TestParseSums(t *testing.T) {
	sums, err := ParseSums([]byte(helloDigest + "  cpython-3.12.7-x86_64-unknown-linux-gnu-install_only.tar.gz\n" +
		strings.ToUpper(helloDigest) + " *cpython-3.12.7-x86_64-pc-windows-msvc-install_only.tar.gz\n\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"cpython-3.12.7-x86_64-unknown-linux-gnu-install_only.tar.gz": helloDigest,
		"cpython-3.12.7-x86_64-pc-windows-msvc-install_only.tar.gz":   helloDigest,
	}, sums)

	_, err = ParseSums([]byte("deadbeef  short.tar.gz\n"))
	assert.Error(t, err)
}

func TestIsDigest(t *testing.T) {
	assert.True(t, IsDigest(helloDigest))
	assert.False(t, IsDigest(helloDigest[:63]+"z"))
	assert.False(t, IsDigest(""))
}

package system_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keytap/keytap/pkg/system"
)

func TestNewOsRelease(t *testing.T) {
	data := []byte(`
NAME="Ubuntu"
VERSION="22.04.3 LTS (Jammy Jellyfish)"
ID=ubuntu
ID_LIKE=debian
PRETTY_NAME="Ubuntu 22.04.3 LTS"
VERSION_ID="22.04"
# trailing comment
HOME_URL="https://www.ubuntu.com/"
`)

	info, err := system.NewOsRelease(data)
	require.NoError(t, err)
	assert.Equal(t, "Ubuntu", info.Name)
	assert.Equal(t, "22.04.3 LTS (Jammy Jellyfish)", info.Version)
	assert.Equal(t, "ubuntu", info.ID)
	assert.Equal(t, "debian", info.IDLike)
	assert.Equal(t, "22.04", info.VersionID)
	assert.Equal(t, "Ubuntu 22.04.3 LTS", info.PrettyName)
}

func TestNewOsReleaseSingleQuotes(t *testing.T) {
	data := []byte("NAME='Alpine Linux'\nID=alpine\nVERSION_ID=3.19.1\n")

	info, err := system.NewOsRelease(data)
	require.NoError(t, err)
	assert.Equal(t, "Alpine Linux", info.Name)
	assert.Equal(t, "alpine", info.ID)
	assert.Equal(t, "3.19.1", info.VersionID)
}

func TestNewOsReleaseEmpty(t *testing.T) {
	_, err := system.NewOsRelease(nil)
	assert.ErrorIs(t, err, system.ErrBadOsReleaseData)
}

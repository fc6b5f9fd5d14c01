package envconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadIgnoresMissingFile(t *testing.T) {
	require.NoError(t, Load(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLoadDoesNotOverrideExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NCRP_TEST_KEEP=file\nNCRP_TEST_NEW=\"from file\"\n"), 0o600))
	t.Setenv("NCRP_TEST_KEEP", "process")
	t.Setenv("NCRP_TEST_NEW", "")
	require.NoError(t, os.Unsetenv("NCRP_TEST_NEW"))

	require.NoError(t, Load(path))
	t.Cleanup(func() { _ = os.Unsetenv("NCRP_TEST_NEW") })

	assert.Equal(t, "process", os.Getenv("NCRP_TEST_KEEP"))
	assert.Equal(t, "from file", os.Getenv("NCRP_TEST_NEW"))
}

func TestStringAndFirstOf(t *testing.T) {
	t.Setenv("NCRP_TEST_A", "  ")
	t.Setenv("NCRP_TEST_B", " value ")

	assert.Equal(t, "fallback", String("NCRP_TEST_A", "fallback"))
	assert.Equal(t, "value", String("NCRP_TEST_B", "fallback"))
	assert.Equal(t, "value", FirstOf("NCRP_TEST_A", "NCRP_TEST_B"))
	assert.Equal(t, "", FirstOf("NCRP_TEST_A"))
}

func TestTypedValues(t *testing.T) {
	t.Setenv("NCRP_TEST_INT", "42")
	t.Setenv("NCRP_TEST_DUR", "90s")
	t.Setenv("NCRP_TEST_BOOL", "false")

	n, err := Int("NCRP_TEST_INT", 1)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	d, err := Duration("NCRP_TEST_DUR", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	b, err := Bool("NCRP_TEST_BOOL", true)
	require.NoError(t, err)
	assert.False(t, b)

	d, err = Duration("NCRP_TEST_UNSET_DUR", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)
}

func TestTypedValuesRejectGarbage(t *testing.T) {
	t.Setenv("NCRP_TEST_INT", "many")
	t.Setenv("NCRP_TEST_DUR", "soon")
	t.Setenv("NCRP_TEST_BOOL", "perhaps")

	_, err := Int("NCRP_TEST_INT", 1)
	assert.Error(t, err)
	_, err = Duration("NCRP_TEST_DUR", time.Second)
	assert.Error(t, err)
	_, err = Bool("NCRP_TEST_BOOL", true)
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	t.Setenv("NCRP_TEST_LIST", "http://a, ,http://b,")
	assert.Equal(t, []string{"http://a", "http://b"}, List("NCRP_TEST_LIST"))
	assert.Equal(t, []string{}, List("NCRP_TEST_LIST_UNSET"))
}

package xpost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireEnv(t *testing.T) {
	t.Setenv("FBPUBLISHER_TEST_A", " a ")
	t.Setenv("FBPUBLISHER_TEST_B", "")
	t.Setenv("FBPUBLISHER_TEST_C", "\t")

	_, err := RequireEnv("test", "FBPUBLISHER_TEST_C", "FBPUBLISHER_TEST_A", "FBPUBLISHER_TEST_B")

	var missing MissingEnvError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "test", missing.Provider)
	assert.Equal(t, []string{"FBPUBLISHER_TEST_C", "FBPUBLISHER_TEST_B"}, missing.Variables)
	assert.Contains(t, err.Error(), "FBPUBLISHER_TEST_C, FBPUBLISHER_TEST_B")

	t.Setenv("FBPUBLISHER_TEST_B", "b")
	values, err := RequireEnv("test", "FBPUBLISHER_TEST_A", "FBPUBLISHER_TEST_B")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"FBPUBLISHER_TEST_A": "a", "FBPUBLISHER_TEST_B": "b"}, values)
}

package pool

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopHandler(task Task) ([]byte, error) {
	return nil, nil
}

func TestFromConfig_DisabledReturnsUnavailable(t *testing.T) {
	s, err := FromConfig(Config{Enabled: false, Workers: 4}, nopHandler, zerolog.Nop())

	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFromConfig_NilHandlerReturnsUnavailable(t *testing.T) {
	s, err := FromConfig(Config{Enabled: true, Workers: 4}, nil, zerolog.Nop())

	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFromConfig_ExplicitWorkerCount(t *testing.T) {
	s, err := FromConfig(Config{Enabled: true, Workers: 3}, nopHandler, zerolog.Nop())
	require.NoError(t, err)
	defer s.Shutdown()

	assert.Equal(t, 3, s.Size())
}

func TestFromConfig_NonPositiveCountUsesPlatformDefault(t *testing.T) {
	s, err := FromConfig(Config{Enabled: true, Workers: 0}, nopHandler, zerolog.Nop())
	require.NoError(t, err)
	defer s.Shutdown()

	assert.Equal(t, DefaultWorkers(), s.Size())
	assert.Greater(t, s.Size(), 0)
}

func TestDefaultWorkers_Positive(t *testing.T) {
	assert.Greater(t, DefaultWorkers(), 0)
}

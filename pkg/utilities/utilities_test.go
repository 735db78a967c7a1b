package utilities_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zkemail/paytox/pkg/utilities"
	"github.com/zkemail/paytox/pkg/utilities/timeutil"
)

type portConfigJson struct {
	Port int `json:"port"`
}

type portConfig struct {
	Port uint16
}

func (p portConfigJson) ConvertToDomain() portConfig {
	return portConfig{Port: uint16(p.Port)}
}

func TestReadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 8081}`), 0o600))

	cfg, err := utilities.ReadConfig[portConfigJson, portConfig](path)
	require.NoError(t, err)
	assert.Equal(t, uint16(8081), cfg.Port)
}

func TestReadConfigMissingFile(t *testing.T) {
	_, err := utilities.ReadConfig[portConfigJson, portConfig](filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestReadConfigInvalidJson(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port":`), 0o600))

	_, err := utilities.ReadConfig[portConfigJson, portConfig](path)
	assert.Error(t, err)
}

func TestConvertJsonArrayToDomain(t *testing.T) {
	out := utilities.ConvertJsonArrayToDomain[portConfigJson, portConfig]([]portConfigJson{{Port: 1}, {Port: 2}})
	assert.Equal(t, []portConfig{{Port: 1}, {Port: 2}}, out)

	empty := utilities.ConvertJsonArrayToDomain[portConfigJson, portConfig](nil)
	assert.Empty(t, empty)
}

func TestMapTernaryFirstNonEmpty(t *testing.T) {
	assert.Equal(t, []int{2, 4}, utilities.Map([]int{1, 2}, func(i int) int { return i * 2 }))
	assert.Equal(t, "a", utilities.Ternary(true, "a", "b"))
	assert.Equal(t, "b", utilities.Ternary(false, "a", "b"))
	assert.Equal(t, "x", utilities.FirstNonEmpty("", "x", "y"))
	assert.Equal(t, "", utilities.FirstNonEmpty())
}

func TestTimeUTC(t *testing.T) {
	base := timeutil.TimeUTC{T: 100}
	later := base.AddSeconds(30)
	assert.True(t, later.After(base))
	assert.False(t, base.After(later))
	assert.Equal(t, int64(130), later.Time().Unix())
}

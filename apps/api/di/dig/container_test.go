package dig_container

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/presence/apps/api/echo"
	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/core/attendance"
	"github.com/trezcool/presence/core/capture"
)

func TestNew(t *testing.T) {
	require.NoError(t, os.Setenv("ENV", "TEST"))
	defer os.Unsetenv("ENV")

	c := New()
	err := c.Invoke(func(
		conf *core.Config,
		server *echoapi.Server,
		captures *capture.Manager,
		repo attendance.Repository,
	) {
		defer server.Close()
		defer captures.Close()

		assert.True(t, conf.TestMode)
		recs, err := repo.QueryRecords(context.Background(), "CS21012")
		require.NoError(t, err)
		assert.Len(t, recs, 4)
	})
	require.NoError(t, err)
}

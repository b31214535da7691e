//go:build integration

package rod_test

import (
	"testing"

	"github.com/fwojciec/leadscout/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowserManager_Browser(t *testing.T) {
	t.Parallel()

	t.Run("relaunches once the page budget is spent", func(t *testing.T) {
		t.Parallel()

		manager, err := rod.NewBrowserManager(rod.WithMaxPages(2))
		require.NoError(t, err)
		defer manager.Close()

		first := manager.Browser()
		manager.IncrementPageCount()
		manager.IncrementPageCount()

		assert.NotSame(t, first, manager.Browser())
	})

	t.Run("keeps the browser under budget", func(t *testing.T) {
		t.Parallel()

		manager, err := rod.NewBrowserManager(rod.WithMaxPages(5))
		require.NoError(t, err)
		defer manager.Close()

		first := manager.Browser()
		manager.IncrementPageCount()

		assert.Same(t, first, manager.Browser())
	})

	t.Run("reports no process after close", func(t *testing.T) {
		t.Parallel()

		manager, err := rod.NewBrowserManager()
		require.NoError(t, err)
		require.NotZero(t, manager.LauncherPID())

		require.NoError(t, manager.Close())
		assert.Zero(t, manager.LauncherPID())
	})
}

package idx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	a := New()
	b := New()

	require.False(t, a.IsZero())
	require.NotEqual(t, a, b)

	// Monotonic entropy: IDs generated in sequence sort in order.
	require.Less(t, a.String(), b.String())
}

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("round trips a generated ID", func(t *testing.T) {
		id := New()
		parsed, err := Parse(id.String())
		require.NoError(t, err)
		require.Equal(t, id, parsed)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		for _, in := range []string{"", "  ", "not-a-ulid", "0000"} {
			_, err := Parse(in)
			require.ErrorIs(t, err, ErrInvalid)
		}
	})
}

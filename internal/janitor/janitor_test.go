package janitor

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wapuda/virex/internal/domain"
	"github.com/wapuda/virex/internal/pending"
	"github.com/wapuda/virex/internal/store"
)

func TestExpiryScanLatchesOnDelivery(t *testing.T) {
	st := store.New(t.TempDir(), nil, zerolog.Nop())
	j := New(st, pending.NewTable(nil), t.TempDir(), zerolog.Nop())
	require.NoError(t, st.SetPlan(1, domain.PlanVIP, 48*time.Hour))

	var warned int
	delivered := false
	j.NotifyExpiring = func(domain.UserRecord) bool {
		warned++
		return delivered
	}

	j.expiryScan()
	j.expiryScan()
	assert.Equal(t, 2, warned, "undelivered warnings are retried")

	delivered = true
	j.expiryScan()
	j.expiryScan()
	assert.Equal(t, 3, warned, "a delivered warning latches for the day")
}

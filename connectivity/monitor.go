package connectivity

import (
	"context"
	"database/sql"
	"time"
)

// ProbeFunc attempts to reach the database and returns nil when it is usable.
type ProbeFunc func(ctx context.Context) error

// Monitor drives the probe: once synchronously at startup (so the very first
// request already knows the correct mode), then on a fixed interval. The
// prober and the success hook are injected so tests can fake both.
type Monitor struct {
	state     *State
	probe     ProbeFunc
	onRecover func() error
}

func NewMonitor(state *State, probe ProbeFunc, onRecover func() error) *Monitor {
	return &Monitor{state: state, probe: probe, onRecover: onRecover}
}

// ProbeOnce runs a single probe and updates the state.
func (m *Monitor) ProbeOnce(ctx context.Context) {
	if err := m.probe(ctx); err != nil {
		m.state.SetDisconnected(err.Error())
		return
	}
	if m.onRecover != nil {
		if err := m.onRecover(); err != nil {
			m.state.SetDisconnected(err.Error())
			return
		}
	}
	m.state.SetConnected()
}

// DSNProbe opens and immediately releases a raw database/sql handle against
// the given DSN. Acquiring the connection has a short timeout; beyond that no
// deadline is enforced on requests.
func DSNProbe(dsn string) ProbeFunc {
	return func(ctx context.Context) error {
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return err
		}
		defer db.Close()

		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(probeCtx)
	}
}

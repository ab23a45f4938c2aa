package jumpgame

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MJE43/vision-guard-go/internal/engine"
	"github.com/MJE43/vision-guard-go/internal/schedule"
)

// constant always yields the same float.
type constant float64

func (c constant) Float64() float64 { return float64(c) }

// started returns a running game whose platforms all sit at x=10, away from
// the player, and replaces them with the given layout when one is passed.
func started(t *testing.T, platforms ...Platform) (*Game, *schedule.Manual) {
	t.Helper()
	sched := schedule.NewManual()
	g := New(constant(0), sched)
	_, err := g.Start()
	require.NoError(t, err)
	if platforms != nil {
		g.state.Platforms = platforms
	}
	return g, sched
}

func TestStartLayout(t *testing.T) {
	g := New(engine.NewStream("layout", "jump"), schedule.NewManual())
	assert.Equal(t, PhaseIdle, g.Snapshot().Phase)

	s, err := g.Start()
	require.NoError(t, err)

	assert.Equal(t, PhaseRunning, s.Phase)
	assert.Equal(t, Player{X: 50, Y: 80}, s.Player)
	assert.Zero(t, s.VelocityY)
	assert.Zero(t, s.Score)
	require.Len(t, s.Platforms, 8)
	for i, p := range s.Platforms {
		assert.Equal(t, float64(i*12+10), p.Y)
		assert.Equal(t, 15.0, p.Width)
		assert.GreaterOrEqual(t, p.X, 10.0)
		assert.Less(t, p.X, 90.0)
	}
}

func TestGravity(t *testing.T) {
	g, _ := started(t)

	s, err := g.Tick()
	require.NoError(t, err)
	assert.Equal(t, 0.5, s.VelocityY)
	assert.Equal(t, 80.5, s.Player.Y)

	s, err = g.Tick()
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.VelocityY)
	assert.Equal(t, 81.5, s.Player.Y)
	assert.Equal(t, 2, s.Ticks)
}

func TestLandingBounces(t *testing.T) {
	g, _ := started(t, Platform{X: 50, Y: 81, Width: 15})
	g.state.VelocityY = 0.5

	s, err := g.Tick()
	require.NoError(t, err)
	assert.Equal(t, JumpImpulse, s.VelocityY)
	assert.Equal(t, 10, s.Score)
	assert.Equal(t, 81.0, s.Player.Y)
}

func TestEveryOverlappingPlatformScores(t *testing.T) {
	g, _ := started(t,
		Platform{X: 48, Y: 81, Width: 15},
		Platform{X: 52, Y: 80, Width: 15},
	)
	g.state.VelocityY = 0.5

	s, err := g.Tick()
	require.NoError(t, err)
	assert.Equal(t, 20, s.Score)
	assert.Equal(t, JumpImpulse, s.VelocityY)
}

func TestNoBounceWhileAscending(t *testing.T) {
	g, _ := started(t, Platform{X: 50, Y: 77, Width: 15})
	g.state.VelocityY = -3

	s, err := g.Tick()
	require.NoError(t, err)
	assert.Equal(t, -2.5, s.VelocityY)
	assert.Zero(t, s.Score)
}

func TestNoBounceOutsideWidth(t *testing.T) {
	g, _ := started(t, Platform{X: 57.5, Y: 81, Width: 15})
	g.state.VelocityY = 0.5

	s, err := g.Tick()
	require.NoError(t, err)
	assert.Zero(t, s.Score)
}

func TestFallingOffEndsGame(t *testing.T) {
	g, sched := started(t, Platform{X: 10, Y: 20, Width: 15})
	g.state.Player.Y = 30
	g.state.VelocityY = 75

	s, err := g.Tick()
	require.NoError(t, err)
	assert.Equal(t, PhaseOver, s.Phase)
	assert.Equal(t, 100.0, s.Player.Y)
	assert.Equal(t, 0, sched.Active())
	// no scroll on the final tick
	assert.Equal(t, []Platform{{X: 10, Y: 20, Width: 15}}, s.Platforms)

	_, err = g.Tick()
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestScrollSpawnsAtTop(t *testing.T) {
	g, _ := started(t, Platform{X: 70, Y: 20, Width: 15})
	g.state.Player.Y = 30
	g.state.VelocityY = -5

	s, err := g.Tick()
	require.NoError(t, err)
	assert.Equal(t, 25.5, s.Player.Y)
	require.Len(t, s.Platforms, 2)
	assert.Equal(t, Platform{X: 10, Y: -10, Width: 15}, s.Platforms[0])
	assert.Equal(t, 22.0, s.Platforms[1].Y)
}

func TestScrollWithoutSpawn(t *testing.T) {
	g, _ := started(t, Platform{X: 70, Y: 5, Width: 15})
	g.state.Player.Y = 30
	g.state.VelocityY = -5

	s, err := g.Tick()
	require.NoError(t, err)
	require.Len(t, s.Platforms, 1)
	assert.Equal(t, 7.0, s.Platforms[0].Y)
}

func TestScrollRefillsEmptyField(t *testing.T) {
	g, _ := started(t)
	g.state.Platforms = nil
	g.state.Player.Y = 30
	g.state.VelocityY = -5

	s, err := g.Tick()
	require.NoError(t, err)
	require.Len(t, s.Platforms, 1)
	assert.Equal(t, SpawnY, s.Platforms[0].Y)
}

func TestScrollDropsAndCaps(t *testing.T) {
	var field []Platform
	for i := 0; i < 10; i++ {
		field = append(field, Platform{X: 70, Y: 11 + float64(i)*9, Width: 15})
	}
	g, _ := started(t, field...)
	g.state.Player.Y = 30
	g.state.VelocityY = -5

	s, err := g.Tick()
	require.NoError(t, err)
	require.Len(t, s.Platforms, MaxPlatforms)
	assert.Equal(t, SpawnY, s.Platforms[0].Y)
	assert.Equal(t, 13.0, s.Platforms[1].Y)
	// the oldest, furthest down, fell off the cap
	assert.Equal(t, 85.0, s.Platforms[9].Y)

	g.state.Platforms = []Platform{{X: 70, Y: 99, Width: 15}, {X: 70, Y: 5, Width: 15}}
	g.state.VelocityY = -5
	s, err = g.Tick()
	require.NoError(t, err)
	for _, p := range s.Platforms {
		assert.Less(t, p.Y, 100.0)
	}
}

func TestMove(t *testing.T) {
	g, _ := started(t)

	s, err := g.Move(Left)
	require.NoError(t, err)
	assert.Equal(t, 45.0, s.Player.X)

	for i := 0; i < 30; i++ {
		s, err = g.Move(Right)
		require.NoError(t, err)
	}
	assert.Equal(t, 100.0, s.Player.X)

	_, err = g.Move("up")
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestMoveIgnoredWhenNotRunning(t *testing.T) {
	g := New(constant(0), schedule.NewManual())

	s, err := g.Move(Left)
	require.NoError(t, err)
	assert.Equal(t, 50.0, s.Player.X)
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("right")
	require.NoError(t, err)
	assert.Equal(t, Right, d)

	_, err = ParseDirection("Right")
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestSchedulerDrivesLoop(t *testing.T) {
	g, sched := started(t)
	var changes int
	g.OnChange(func(State) { changes++ })

	sched.Advance(3 * TickPeriod)

	assert.Equal(t, 3, g.Snapshot().Ticks)
	assert.Equal(t, 3, changes)
}

func TestRestartResets(t *testing.T) {
	g, sched := started(t)
	sched.Advance(10 * TickPeriod)

	s, err := g.Start()
	require.NoError(t, err)
	assert.Zero(t, s.Ticks)
	assert.Equal(t, 80.0, s.Player.Y)
	assert.Equal(t, 1, sched.Active())
}

func TestInvariantsHoldOverLongRuns(t *testing.T) {
	for _, seed := range []string{"a", "b", "c", "d", "e"} {
		src := engine.NewStream(seed, "jump-invariants")
		g := New(src, schedule.NewManual())
		_, err := g.Start()
		require.NoError(t, err)

		for i := 0; i < 5000; i++ {
			if f := src.Float64(); f < 0.3 {
				_, err = g.Move(Left)
			} else if f < 0.6 {
				_, err = g.Move(Right)
			}
			require.NoError(t, err)

			s, err := g.Tick()
			if err != nil {
				require.ErrorIs(t, err, ErrNotRunning)
				break
			}
			require.LessOrEqual(t, len(s.Platforms), MaxPlatforms)
			require.LessOrEqual(t, s.Player.Y, 100.0)
			require.False(t, math.IsNaN(s.Player.Y) || math.IsInf(s.Player.Y, 0))
			require.GreaterOrEqual(t, s.Player.X, 0.0)
			require.LessOrEqual(t, s.Player.X, 100.0)
		}
	}
}

func TestDisposeStopsTicker(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := New(engine.NewStream(engine.NewSeed(), "jump"), schedule.NewTicker())
	_, err := g.Start()
	require.NoError(t, err)
	time.Sleep(2 * TickPeriod)
	g.Dispose()

	_, err = g.Start()
	assert.ErrorIs(t, err, ErrDisposed)
}

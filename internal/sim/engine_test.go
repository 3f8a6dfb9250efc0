package sim_test

import (
	"bytes"
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/sirbox/internal/dynamo"
	"github.com/san-kum/sirbox/internal/metrics"
	"github.com/san-kum/sirbox/internal/sim"
)

func newEngine(cfg sim.Config, rng dynamo.Source) *sim.Engine {
	eng, err := sim.New(cfg, rng)
	Expect(err).NotTo(HaveOccurred())
	return eng
}

func inBox(eng *sim.Engine) {
	cfg := eng.Config()
	for i, p := range eng.Particles() {
		Expect(p.Position.X).To(BeNumerically(">=", 0), "particle %d", i)
		Expect(p.Position.X).To(BeNumerically("<=", cfg.Width), "particle %d", i)
		Expect(p.Position.Y).To(BeNumerically(">=", 0), "particle %d", i)
		Expect(p.Position.Y).To(BeNumerically("<=", cfg.Height), "particle %d", i)
	}
}

var _ = Describe("Engine", func() {
	var cfg sim.Config

	BeforeEach(func() {
		cfg = sim.DefaultConfig()
	})

	Describe("construction", func() {
		DescribeTable("rejects invalid configuration",
			func(mutate func(*sim.Config)) {
				mutate(&cfg)
				_, err := sim.New(cfg, rand.New(rand.NewSource(1)))
				Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
			},
			Entry("zero width", func(c *sim.Config) { c.Width = 0 }),
			Entry("negative height", func(c *sim.Config) { c.Height = -1 }),
			Entry("zero tau", func(c *sim.Config) { c.Tau = 0 }),
			Entry("zero sub-steps", func(c *sim.Config) { c.SubSteps = 0 }),
			Entry("zero cadence", func(c *sim.Config) { c.MeasureEvery = 0 }),
			Entry("zero bins", func(c *sim.Config) { c.HistogramBins = 0 }),
			Entry("zero pick tolerance", func(c *sim.Config) { c.PickTolerance = 0 }),
			Entry("negative pick tolerance", func(c *sim.Config) { c.PickTolerance = -1e-3 }),
			Entry("threshold above timer max", func(c *sim.Config) { c.Epidemic.InfectiousThreshold = 2 }),
		)

		It("requires a random source", func() {
			_, err := sim.New(cfg, nil)
			Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
		})
	})

	Describe("Reinitialize", func() {
		It("rejects non-positive counts", func() {
			eng := newEngine(cfg, rand.New(rand.NewSource(1)))
			Expect(eng.Reinitialize(0)).To(MatchError(dynamo.ErrInvalidConfig))
			Expect(eng.Reinitialize(-4)).To(MatchError(dynamo.ErrInvalidConfig))
		})

		It("creates a healthy population inside the box", func() {
			eng := newEngine(cfg, rand.New(rand.NewSource(1)))
			Expect(eng.Reinitialize(300)).To(Succeed())

			Expect(eng.Len()).To(Equal(300))
			Expect(eng.Counts()).To(Equal(dynamo.Counts{Healthy: 300}))
			inBox(eng)
			for _, p := range eng.Particles() {
				Expect(math.Abs(p.Velocity.X)).To(BeNumerically("<=", cfg.MaxSpeed))
				Expect(math.Abs(p.Velocity.Y)).To(BeNumerically("<=", cfg.MaxSpeed))
			}
		})

		It("replaces the whole population", func() {
			eng := newEngine(cfg, rand.New(rand.NewSource(1)))
			Expect(eng.Reinitialize(10)).To(Succeed())
			eng.SeedInfection(10)
			before := eng.Snapshot()

			Expect(eng.Reinitialize(4)).To(Succeed())
			Expect(eng.Len()).To(Equal(4))
			Expect(eng.Counts().Infected).To(BeZero())
			Expect(before).To(HaveLen(10))
		})

		It("keeps the step counter, series and running measurement", func() {
			eng := newEngine(cfg, rand.New(rand.NewSource(1)))
			Expect(eng.Reinitialize(10)).To(Succeed())
			eng.SetRunningMeasurement(true)
			for i := 0; i < 2*cfg.MeasureEvery; i++ {
				eng.Step(0)
			}
			healthy, _ := eng.PopulationSeries()
			steps, elapsed := eng.Steps(), eng.Time()

			Expect(eng.Reinitialize(6)).To(Succeed())

			Expect(eng.Steps()).To(Equal(steps))
			Expect(eng.Time()).To(Equal(elapsed))
			after, _ := eng.PopulationSeries()
			Expect(after).To(Equal(healthy))
			Expect(eng.Measuring()).To(BeTrue())
		})
	})

	Describe("Step", func() {
		It("keeps every particle inside the box", func() {
			cfg.MaxSpeed = 200
			eng := newEngine(cfg, rand.New(rand.NewSource(5)))
			Expect(eng.Reinitialize(150)).To(Succeed())

			for i := 0; i < 300; i++ {
				if i%37 == 0 {
					eng.Lift()
				}
				eng.Step(0)
				inBox(eng)
			}
		})

		It("counts macro-steps and simulated time", func() {
			eng := newEngine(cfg, rand.New(rand.NewSource(5)))
			Expect(eng.Reinitialize(5)).To(Succeed())

			eng.Step(0)
			eng.Step(4)

			Expect(eng.Steps()).To(Equal(2))
			Expect(eng.Time()).To(BeNumerically("~", float64(cfg.SubSteps+4)*cfg.Tau, 1e-12))
		})

		It("transmits in the two particle example", func() {
			rng := &dynamo.ScriptedSource{Values: []float64{0.79}, Fallback: 1}
			eng := newEngine(cfg, rng)
			Expect(eng.SetParticles([]dynamo.Particle{
				{Position: dynamo.Vec2{X: 5, Y: 5}, Health: dynamo.Infected, Timer: cfg.Epidemic.TimerMax},
				{Position: dynamo.Vec2{X: 5.0001, Y: 5}},
			})).To(Succeed())

			stats := eng.Step(1)

			ps := eng.Particles()
			Expect(stats.Infections).To(Equal(1))
			Expect(rng.Draws).To(Equal(1))
			Expect(ps[1].Health).To(Equal(dynamo.Infected))
			Expect(ps[1].Timer).To(Equal(cfg.Epidemic.TimerMax))
		})

		It("recovers an isolated particle on the step its timer crosses zero", func() {
			cfg.Epidemic.TimerDecay = 0.25
			eng := newEngine(cfg, &dynamo.ScriptedSource{})
			Expect(eng.SetParticles([]dynamo.Particle{
				{Position: dynamo.Vec2{X: 1, Y: 1}, Health: dynamo.Infected, Timer: 1},
			})).To(Succeed())

			var timers []float64
			for i := 0; i < 4; i++ {
				eng.Step(0)
				timers = append(timers, eng.Particles()[0].Timer)
			}

			Expect(timers[:3]).To(Equal([]float64{0.75, 0.5, 0.25}))
			Expect(eng.Particles()[0].Health).To(Equal(dynamo.Healthy))
			Expect(eng.LastStep().Recovered).To(Equal(1))
		})

		It("samples the population on the measurement cadence", func() {
			cfg.MeasureEvery = 5
			eng := newEngine(cfg, rand.New(rand.NewSource(9)))
			Expect(eng.Reinitialize(20)).To(Succeed())

			for i := 0; i < 12; i++ {
				eng.Step(0)
			}

			healthy, infected := eng.PopulationSeries()
			Expect(healthy).To(HaveLen(2))
			Expect(infected).To(HaveLen(2))
			Expect(healthy[0].Index).To(Equal(1.0))
			Expect(healthy[1].Index).To(Equal(2.0))
			Expect(healthy[1].Count + infected[1].Count).To(Equal(20))
		})

		It("stops on a cancelled context", func() {
			eng := newEngine(cfg, rand.New(rand.NewSource(9)))
			Expect(eng.Reinitialize(3)).To(Succeed())
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			Expect(eng.Run(ctx, 10)).To(MatchError(context.Canceled))
			Expect(eng.Steps()).To(BeZero())
		})

		It("notifies observers and metrics", func() {
			eng := newEngine(cfg, rand.New(rand.NewSource(9)))
			Expect(eng.Reinitialize(3)).To(Succeed())
			calls := 0
			eng.AddObserver(sim.ObserverFunc(func(step int, ps []dynamo.Particle) { calls++ }))
			eng.AddMetric(metrics.NewKineticEnergy())

			Expect(eng.Run(context.Background(), 7)).To(Succeed())

			Expect(calls).To(Equal(7))
			Expect(eng.Metrics()).To(HaveKey("kinetic_energy"))
		})
	})

	Describe("perturbations", func() {
		var eng *sim.Engine

		BeforeEach(func() {
			eng = newEngine(cfg, rand.New(rand.NewSource(2)))
		})

		It("dampens velocities with a signed power law", func() {
			Expect(eng.SetParticles([]dynamo.Particle{{Velocity: dynamo.Vec2{X: -8, Y: 27}}})).To(Succeed())

			eng.Dampen()

			v := eng.Particles()[0].Velocity
			Expect(v.X).To(BeNumerically("~", -1.866, 1e-3))
			Expect(v.X).To(BeNumerically("~", -math.Pow(8, 0.3), 1e-12))
			Expect(v.Y).To(BeNumerically("~", math.Pow(27, 0.3), 1e-12))
			Expect(v.Y).To(BeNumerically("~", 2.688, 1e-3))
		})

		It("lifts every particle by a third of the height without reflecting", func() {
			Expect(eng.SetParticles([]dynamo.Particle{
				{Position: dynamo.Vec2{X: 1, Y: 2}},
				{Position: dynamo.Vec2{X: 1, Y: 9}},
			})).To(Succeed())

			eng.Lift()

			ps := eng.Particles()
			Expect(ps[0].Position.Y).To(BeNumerically("~", 2+cfg.Height/3, 1e-12))
			Expect(ps[1].Position.Y).To(BeNumerically(">", cfg.Height))
		})

		It("settles only particles above the line", func() {
			Expect(eng.SetParticles([]dynamo.Particle{
				{Position: dynamo.Vec2{X: 1, Y: 9}},
				{Position: dynamo.Vec2{X: 1, Y: 5}},
			})).To(Succeed())

			eng.Settle()

			ps := eng.Particles()
			Expect(ps[0].Position.Y).To(BeNumerically("~", math.Pow(9, 0.6), 1e-12))
			Expect(ps[1].Position.Y).To(Equal(5.0))
		})

		It("infects the particle at a point", func() {
			Expect(eng.SetParticles([]dynamo.Particle{
				{Position: dynamo.Vec2{X: 1, Y: 1}},
				{Position: dynamo.Vec2{X: 3, Y: 4}},
			})).To(Succeed())

			Expect(eng.Infect(dynamo.Vec2{X: 3, Y: 4}, 0)).To(BeTrue())
			Expect(eng.Infect(dynamo.Vec2{X: 3.1, Y: 4}, 0)).To(BeFalse())
			Expect(eng.InfectAt(dynamo.Vec2{X: 7, Y: 7}, 0)).To(MatchError(dynamo.ErrNoMatch))
			Expect(eng.Infect(dynamo.Vec2{X: 1.05, Y: 0.95}, 0.1)).To(BeTrue())

			Expect(eng.Counts().Infected).To(Equal(2))
			Expect(eng.Particles()[1].Timer).To(Equal(cfg.Epidemic.TimerMax))
		})
	})

	Describe("mean squared velocity", func() {
		It("fails before activation and with no elapsed steps", func() {
			eng := newEngine(cfg, rand.New(rand.NewSource(3)))
			Expect(eng.Reinitialize(10)).To(Succeed())

			_, err := eng.MeanSquaredVelocity()
			Expect(err).To(MatchError(dynamo.ErrPrecondition))

			eng.SetRunningMeasurement(true)
			_, err = eng.MeanSquaredVelocity()
			Expect(err).To(MatchError(dynamo.ErrPrecondition))
		})

		It("accumulates squared speed per elapsed macro-step", func() {
			eng := newEngine(cfg, rand.New(rand.NewSource(3)))
			Expect(eng.Reinitialize(25)).To(Succeed())
			eng.Step(0)

			sum := 0.0
			for _, p := range eng.Particles() {
				sum += p.Velocity.Norm2()
			}

			eng.SetRunningMeasurement(true)
			for i := 0; i < 8; i++ {
				eng.Step(0)
			}
			eng.SetRunningMeasurement(false)
			eng.Step(0)

			got, err := eng.MeanSquaredVelocity()
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNumerically("~", 8*sum/(8*cfg.Tau), 1e-6*got))
		})
	})

	Describe("queries", func() {
		It("returns detached snapshots", func() {
			eng := newEngine(cfg, rand.New(rand.NewSource(4)))
			Expect(eng.Reinitialize(5)).To(Succeed())

			snap := eng.Snapshot()
			snap[0].Position.X = -100
			ps := eng.Particles()
			ps[1].Health = dynamo.Infected

			Expect(eng.Snapshot()[0].Position.X).NotTo(Equal(-100.0))
			Expect(eng.Counts().Infected).To(BeZero())
		})

		It("bins every particle in the speed histogram", func() {
			eng := newEngine(cfg, rand.New(rand.NewSource(4)))
			Expect(eng.Reinitialize(123)).To(Succeed())
			eng.Dampen()

			h := eng.SpeedHistogram()
			Expect(h.Counts).To(HaveLen(cfg.HistogramBins))
			Expect(h.Total()).To(Equal(123))
			Expect(h.MaxHeight).To(BeNumerically(">", 0))
		})

		It("exports a particle table", func() {
			eng := newEngine(cfg, rand.New(rand.NewSource(4)))
			Expect(eng.Reinitialize(6)).To(Succeed())
			eng.SeedInfection(2)

			var buf bytes.Buffer
			Expect(eng.ExportSnapshot(&buf)).To(Succeed())

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			Expect(lines).To(HaveLen(7))
			Expect(lines[0]).To(Equal("x,y,vx,vy,state,timer"))
			Expect(lines[1]).To(HaveSuffix(",infected,1.000000"))

			ps, err := sim.ReadParticles(&buf)
			Expect(err).NotTo(HaveOccurred())
			Expect(dynamo.Count(ps)).To(Equal(dynamo.Counts{Healthy: 4, Infected: 2}))
		})
	})

	Describe("deterministic replay", func() {
		script := func(seed int64) *sim.Engine {
			eng := newEngine(sim.DefaultConfig(), rand.New(rand.NewSource(seed)))
			Expect(eng.Reinitialize(80)).To(Succeed())
			eng.SeedInfection(3)
			for i := 0; i < 200; i++ {
				switch i {
				case 40:
					eng.Lift()
				case 90:
					eng.Dampen()
				case 120:
					eng.Settle()
				}
				eng.Step(0)
			}
			return eng
		}

		It("reproduces trajectories and health for the same seed", func() {
			a, b := script(42), script(42)

			Expect(a.Particles()).To(Equal(b.Particles()))
			ah, ai := a.PopulationSeries()
			bh, bi := b.PopulationSeries()
			Expect(ah).To(Equal(bh))
			Expect(ai).To(Equal(bi))
		})

		It("diverges for a different seed", func() {
			Expect(script(1).Particles()).NotTo(Equal(script(2).Particles()))
		})
	})
})

var _ = Describe("Guarded", func() {
	It("serializes concurrent steps and perturbations", func() {
		eng, err := sim.New(sim.DefaultConfig(), rand.New(rand.NewSource(8)))
		Expect(err).NotTo(HaveOccurred())
		Expect(eng.Reinitialize(50)).To(Succeed())
		g := sim.NewGuarded(eng)

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer GinkgoRecover()
				defer wg.Done()
				for i := 0; i < 50; i++ {
					switch w {
					case 0:
						g.Lift()
					case 1:
						g.Dampen()
					default:
						g.Step(0)
					}
					_ = g.Snapshot()
				}
			}(w)
		}
		wg.Wait()

		g.Step(0)
		g.Do(func(e *sim.Engine) {
			Expect(e.Steps()).To(Equal(101))
			inBox(e)
		})
	})
})

var _ = Describe("Ensemble", func() {
	It("runs seeded engines independently and reproducibly", func() {
		ens := sim.NewEnsemble(sim.DefaultConfig(), 40, 2, 3, 100)

		first, err := ens.Run(context.Background(), 50)
		Expect(err).NotTo(HaveOccurred())
		second, err := ens.Run(context.Background(), 50)
		Expect(err).NotTo(HaveOccurred())

		Expect(first).To(HaveLen(3))
		for i := range first {
			Expect(first[i].Seed).To(Equal(int64(100 + i)))
			Expect(first[i].Final.Total()).To(Equal(40))
			Expect(first[i].Infected).To(Equal(second[i].Infected))
		}
	})
})

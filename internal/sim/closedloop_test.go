package sim_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/loopsim/internal/control"
	"github.com/san-kum/loopsim/internal/dynamo"
	"github.com/san-kum/loopsim/internal/plant"
	"github.com/san-kum/loopsim/internal/sim"
)

func run(p sim.Params) *sim.Trajectory {
	GinkgoHelper()
	s, err := sim.New(p)
	Expect(err).NotTo(HaveOccurred())
	tr, err := s.Run()
	Expect(err).NotTo(HaveOccurred())
	Expect(tr.Complete).To(BeTrue())
	return tr
}

var _ = Describe("Run", func() {
	Describe("trajectory shape", func() {
		It("has the requested samples from start to end in increasing order", func() {
			p := tankParams()
			p.TStart, p.TEnd, p.Samples = 20, 140, 7

			tr := run(p)

			Expect(tr.Len()).To(Equal(7))
			Expect(tr.States).To(HaveLen(7))
			Expect(tr.Outputs).To(HaveLen(7))
			Expect(tr.Times[0]).To(Equal(20.0))
			Expect(tr.Times[6]).To(Equal(140.0))
			for i := 1; i < tr.Len(); i++ {
				Expect(tr.Times[i]).To(BeNumerically(">", tr.Times[i-1]))
			}
			Expect(tr.Segments).To(Equal(2))
		})

		It("starts from the configured initial state", func() {
			p := tankParams()
			p.TEnd, p.Samples = 10, 11
			p.InitialLoops[1] = control.LoopState{Integral: 3, Filter: -1}

			tr := run(p)

			Expect(tr.States[0]).To(Equal(dynamo.State{0, 0.7595, 0, 450, 0, 0, 3, -1}))
			Expect(tr.Outputs[0][0]).To(BeNumerically("~", 1.519, 1e-12))
			Expect(tr.Outputs[0][1]).To(BeNumerically("~", 45, 1e-12))
		})
	})

	Describe("determinism", func() {
		It("reproduces a run bit for bit", func() {
			p := tankParams()
			p.TEnd, p.Samples = 150, 301

			a := run(p)
			b := run(p)

			Expect(a.Stats).To(Equal(b.Stats))
			for i := range a.States {
				for j := range a.States[i] {
					Expect(math.Float64bits(a.States[i][j])).To(Equal(math.Float64bits(b.States[i][j])))
				}
			}
		})
	})

	Describe("zero gains", func() {
		It("never actuates and leaves a zero plant at rest", func() {
			p := tankParams()
			p.Loops = control.Bank{{Tau: 1e-3}, {Tau: 1e-3}}
			p.InitialPlant = []float64{0, 0, 0, 0}
			p.Samples = 601

			s, err := sim.New(p)
			Expect(err).NotTo(HaveOccurred())
			tr, err := s.Run()
			Expect(err).NotTo(HaveOccurred())

			for i, st := range tr.States {
				u, _ := s.System().Actuation(st, tr.Times[i])
				Expect(u).To(BeZero())
				Expect(st[:plant.StateDim]).To(Equal(dynamo.State{0, 0, 0, 0}))
				Expect(tr.Outputs[i]).To(Equal([2]float64{0, 0}))
			}
		})
	})

	Describe("tracking", func() {
		It("brings the level to its new setpoint with the level loop alone", func() {
			p := tankParams()
			p.Loops[1] = control.PID{Tau: 1e-3}

			tr := run(p)

			Expect(last(tr.Output(0))).To(BeNumerically("~", 1.6, 0.05))
		})

		It("brings the temperature to its new setpoint with the temperature loop alone", func() {
			p := tankParams()
			p.Loops[0] = control.PID{Tau: 1e-3}
			p.Solver.RelTol, p.Solver.AbsTol = 1e-6, 1e-9

			tr := run(p)

			Expect(last(tr.Output(1))).To(BeNumerically("~", 48.0, 0.5))
		})

		It("cannot hold both setpoints when both loops share the actuator", func() {
			tr := run(tankParams())

			// One actuator, two integrators: the outputs settle where the
			// integrated errors balance, far from either setpoint.
			Expect(last(tr.Output(0))).To(BeNumerically(">", 100))
			Expect(last(tr.Output(1))).To(BeNumerically("<", 40))
			for _, st := range tr.States {
				Expect(st.IsValid()).To(BeTrue())
			}
		})
	})

	Describe("setpoint switching", func() {
		// Loop 1 alone, starting in equilibrium at its "before" setpoint.
		equilibrium := func(switchTime float64) sim.Params {
			p := tankParams()
			p.Loops[1] = control.PID{Tau: 1e-3}
			p.References[0].SwitchTime = switchTime
			p.References[1].SwitchTime = 1e6
			p.Samples = 601
			p.Solver.RelTol, p.Solver.AbsTol = 1e-6, 1e-9

			model, err := plant.New(p.A, p.B, p.C)
			Expect(err).NotTo(HaveOccurred())
			g, err := model.DCGain(0)
			Expect(err).NotTo(HaveOccurred())
			u := p.References[0].Before / g
			xs, err := model.SteadyState(u)
			Expect(err).NotTo(HaveOccurred())

			p.InitialPlant = xs[:]
			p.InitialLoops[0].Integral = u / p.Loops[0].Ki
			return p
		}

		It("shifts the transient with the switch time", func() {
			base := run(equilibrium(100)).Output(0)
			early := run(equilibrium(50)).Output(0)

			Expect(base[99]).To(BeNumerically("~", 1.519, 1e-4))
			Expect(early[49]).To(BeNumerically("~", 1.519, 1e-4))
			Expect(base[300]).To(BeNumerically(">", 1.55))

			for k := 0; k <= 450; k++ {
				Expect(early[50+k]).To(BeNumerically("~", base[100+k], 1e-3), "k=%d", k)
			}
		})

		It("shows no response before the switch", func() {
			p := tankParams()
			p.TEnd, p.Samples = 150, 1501
			switched := run(p)

			p.References[0].After = p.References[0].Before
			held := run(p)

			for i, tm := range switched.Times {
				if tm >= 100 {
					break
				}
				Expect(switched.Outputs[i]).To(Equal(held.Outputs[i]), "t=%v", tm)
			}
			Expect(math.Abs(last(switched.Output(0)) - last(held.Output(0)))).To(BeNumerically(">", 1e-6))
		})
	})

	Describe("failures", func() {
		It("reports an exhausted step budget as an integration failure with a partial trajectory", func() {
			p := tankParams()
			p.Solver.MaxSteps = 100

			s, err := sim.New(p)
			Expect(err).NotTo(HaveOccurred())
			tr, err := s.Run()

			Expect(errors.Is(err, dynamo.ErrIntegrationFailure)).To(BeTrue())
			Expect(errors.Is(err, dynamo.ErrDivergence)).To(BeFalse())
			Expect(tr).NotTo(BeNil())
			Expect(tr.Complete).To(BeFalse())
			Expect(tr.Len()).To(BeNumerically("<", p.Samples))
			Expect(tr.Outputs).To(HaveLen(tr.Len()))
		})

		It("reports non-finite growth as divergence", func() {
			p := tankParams()
			p.A = [][]float64{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
			p.Loops = control.Bank{{Tau: 1}, {Tau: 1}}
			p.InitialPlant = []float64{1, 1, 1, 1}
			p.TEnd, p.Samples = 1000, 11

			s, err := sim.New(p)
			Expect(err).NotTo(HaveOccurred())
			tr, err := s.Run()

			Expect(errors.Is(err, dynamo.ErrDivergence)).To(BeTrue())
			Expect(errors.Is(err, dynamo.ErrIntegrationFailure)).To(BeFalse())
			Expect(tr.Complete).To(BeFalse())
			Expect(tr.Len()).To(BeNumerically("<", 11))
			for _, st := range tr.States {
				Expect(st.IsValid()).To(BeTrue())
			}

			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Time).To(BeNumerically(">", 500))
		})
	})
})

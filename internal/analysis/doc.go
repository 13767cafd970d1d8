// Package analysis characterizes a finished closed-loop run.
//
//   - [StepInfo]: rise time, overshoot, settling time and final error of
//     one output after its setpoint step
//   - [OutputPortrait]: the trajectory in the (y1, y2) output plane
//   - [PhasePortraitToASCII]: text rendering of a portrait
//
// Typical use after a run:
//
//	info, err := analysis.StepInfo(tr.Times, tr.Output(0), 100, 1.519, 1.6)
//	if err == nil && info.Settled {
//	    fmt.Println(info.SettlingTime)
//	}
package analysis

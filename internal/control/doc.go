// Package control provides the continuous-time PID law used by both
// feedback loops.
//
// A loop carries two state variables, the integral accumulator and the
// filtered derivative of the measurement:
//
//	di/dt = e
//	dd/dt = (-d - dy/dt) / Tau
//	u     = Kp·e + Ki·i + Kd·d
//
// The derivative acts on the measurement, so a setpoint step produces no
// derivative kick. dy/dt must be the analytic output derivative, not a
// finite difference of samples.
//
// # Usage
//
//	bank := control.Bank{
//	    {Kp: 2.5982, Ki: 0.0332, Kd: 29.0047, Tau: 1e-3},
//	    {Kp: 13.7632, Ki: 0.2754, Kd: 153.4397, Tau: 1e-3},
//	}
//	u, _ := bank.Output(errs, loops)
//
// The integral term is not clamped (no anti-windup) and the summed effort
// is unbounded.
package control

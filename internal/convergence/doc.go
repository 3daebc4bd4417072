// Package convergence drives a learning module through repeated sweeps over a
// fixed set of inputs and decides when the system has settled.
//
// A Controller presents every input once per sweep, in the same order each
// time, and records the resulting index set. Per-input bookkeeping (similarity
// to the previous sweep, the exact-match streak, the full history since the
// last instability) is diagnostic only. The only signal that moves the
// controller between states is the Oracle's verdict after each sweep:
//
//	Running --stable--> StableAccumulating --stable x WindowLength--> Converged
//	   ^                       |
//	   +-------instable--------+
//
// Any non-terminal state becomes Exhausted when MaxSweeps sweeps have run.
//
// Usage:
//
//	cfg := convergence.DefaultConfig(inputs)
//	cfg.Sink = outputFile
//	c, err := convergence.New(cfg, learner, oracle)
//	if err != nil {
//	    return err
//	}
//	res, err := c.Run(ctx)
//	if err != nil {
//	    return err
//	}
//	if res.Converged() {
//	    fmt.Println(res.Window.Start, res.Window.End)
//	}
package convergence

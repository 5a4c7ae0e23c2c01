package bench

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hupe1980/hembs"
)

// Flips returns one coin flip per rule: true reinserts the rule, false
// deletes it. The same seed yields the same sequence.
func Flips(seed uint64, n int) []bool {
	rng := rand.New(rand.NewPCG(seed, seed^0x2545f4914f6cdd1d))
	flips := make([]bool, n)
	for i := range flips {
		flips[i] = rng.IntN(2) == 0
	}
	return flips
}

// churn visits every rule once. A reinsert of a live rule is a delete
// followed by an insert, so it never needs a second slot.
func (h *Harness) churn(ctx context.Context, rep *Report) error {
	flips := Flips(h.cfg.Seed, len(h.cfg.Rules))

	var busy time.Duration
	for i, reinsert := range flips {
		if err := h.ctrl.WaitUpdate(ctx); err != nil {
			return err
		}

		start := time.Now()
		err := h.update(i, reinsert)
		busy += time.Since(start)

		switch {
		case err == nil:
		case errors.Is(err, hembs.ErrCapacityExceeded), errors.Is(err, hembs.ErrMemoryLimitExceeded):
			rep.UpdateErrors++
			h.cfg.Logger.WarnContext(ctx, "update rejected", "rule", i, "error", err)
		default:
			return fmt.Errorf("bench: update rule %d: %w", i, err)
		}

		if reinsert {
			rep.Reinserts++
		} else {
			rep.Deletes++
		}
	}
	rep.Update = busy
	rep.Updates = len(flips)
	rep.MemoryAfterUpdate = h.MemoryFootprintBytes()

	h.cfg.Logger.InfoContext(ctx, "churn done",
		"reinserts", rep.Reinserts,
		"deletes", rep.Deletes,
		"duration", rep.Update,
	)
	return nil
}

func (h *Harness) update(i int, reinsert bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.cfg.Rules[i]
	if h.live[i] {
		if err := h.c.Delete(r); err != nil {
			return err
		}
		h.live[i] = false
	}
	if !reinsert {
		return nil
	}
	if _, err := h.c.Insert(r); err != nil {
		return err
	}
	h.live[i] = true
	return nil
}

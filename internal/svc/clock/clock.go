// Package clock keeps the kernel's wall-clock mirror current.
package clock

import (
	"rosh/internal/kernel"
	"rosh/internal/svc"
)

type Clock struct {
	kernel.Base
}

func New() *Clock {
	return &Clock{Base: kernel.NewBase(svc.ClockProcess)}
}

func (c *Clock) Tick(ctx *kernel.Ctx) {
	ctx.SetTime(ctx.Now())
}

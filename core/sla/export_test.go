package sla

import "time"

func SetNow(c *Checker, now func() time.Time) { c.now = now }

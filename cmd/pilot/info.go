package main

import (
	"fmt"
	"sync"
	"time"
)

// Info holds UI-only facts that do not belong to the flight state.
type Info struct {
	info sync.Map
}

func (d *Info) getString(key string) string {
	if v, ok := d.info.Load(key); ok {
		return fmt.Sprintf("%v", v)
	}

	return ""
}

func (d *Info) getBool(key string) bool {
	if v, ok := d.info.Load(key); ok {
		if vv, ok2 := v.(bool); ok2 {
			return vv
		}
	}

	return false
}

func (d *Info) getTime(key string) time.Time {
	if v, ok := d.info.Load(key); ok {
		if vv, ok2 := v.(time.Time); ok2 {
			return vv
		}
	}

	return time.Time{}
}

func (d *Info) put(key string, v any) {
	d.info.Store(key, v)
}

func (d *Info) remove(key string) {
	d.info.Delete(key)
}

package client

import "log"

// spawn runs fn on its own goroutine, capturing errors and panics so a
// detached task can never surface a failure to its caller. Fire-and-forget
// work such as publishing goes through here.
func spawn(label string, fn func() error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("%s: panic: %v", label, r)
			}
		}()
		if err := fn(); err != nil {
			log.Printf("%s: %v", label, err)
		}
	}()
}

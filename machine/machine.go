// Package machine is the physical surface of the device: a button that
// starts provisioning and a status LED.
package machine

type Machine interface {
	Start() error
	Stop() error
	// ButtonPresses delivers one value per press. Presses are dropped
	// while the previous one was not received yet.
	ButtonPresses() <-chan struct{}
	ToggleLed(on bool)
}

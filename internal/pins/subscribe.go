package pins

import "github.com/sweeney/shuttle-console/internal/event"

func (m *Manager) digitalKey(op string, kind event.Kind, addr int) (event.Key, error) {
	if t, _ := digitalRoute(addr); t == none {
		return event.Key{}, outOfRange(op, addr)
	}
	return event.K(kind, addr), nil
}

func (m *Manager) subscribeDigital(kind event.Kind, addr int, l event.Listener) error {
	key, err := m.digitalKey("pins.subscribe", kind, addr)
	if err != nil {
		return err
	}
	return m.bus.Subscribe(key, l)
}

func (m *Manager) unsubscribeDigital(kind event.Kind, addr int, l event.Listener) error {
	key, err := m.digitalKey("pins.unsubscribe", kind, addr)
	if err != nil {
		return err
	}
	return m.bus.Unsubscribe(key, l)
}

// SubscribeDigitalRising registers l for DigitalRising@addr.
func (m *Manager) SubscribeDigitalRising(addr int, l event.Listener) error {
	return m.subscribeDigital(event.DigitalRising, addr, l)
}

// SubscribeDigitalFalling registers l for DigitalFalling@addr.
func (m *Manager) SubscribeDigitalFalling(addr int, l event.Listener) error {
	return m.subscribeDigital(event.DigitalFalling, addr, l)
}

// SubscribeDigitalChange registers l for DigitalChange@addr.
func (m *Manager) SubscribeDigitalChange(addr int, l event.Listener) error {
	return m.subscribeDigital(event.DigitalChange, addr, l)
}

func (m *Manager) UnsubscribeDigitalRising(addr int, l event.Listener) error {
	return m.unsubscribeDigital(event.DigitalRising, addr, l)
}

func (m *Manager) UnsubscribeDigitalFalling(addr int, l event.Listener) error {
	return m.unsubscribeDigital(event.DigitalFalling, addr, l)
}

func (m *Manager) UnsubscribeDigitalChange(addr int, l event.Listener) error {
	return m.unsubscribeDigital(event.DigitalChange, addr, l)
}

// SubscribeAnalogChange registers l for AnalogChange@addr.
func (m *Manager) SubscribeAnalogChange(addr int, l event.Listener) error {
	if t, _ := analogRoute(addr); t == none {
		return outOfRange("pins.subscribe", addr)
	}
	return m.bus.Subscribe(event.K(event.AnalogChange, addr), l)
}

func (m *Manager) UnsubscribeAnalogChange(addr int, l event.Listener) error {
	if t, _ := analogRoute(addr); t == none {
		return outOfRange("pins.unsubscribe", addr)
	}
	return m.bus.Unsubscribe(event.K(event.AnalogChange, addr), l)
}

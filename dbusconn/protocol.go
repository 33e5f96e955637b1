package dbusconn

import (
	"sort"

	"gitlab.ubiant.me/go-shared/ble-sensors/item"
)

// Publisher publishes item trees as bus services. It implements the
// registry publisher and observes the trees it publishes. All its methods
// are called from the goroutine owning the trees.
type Publisher struct {
	dc       *Dbus
	services map[*item.Item]*service
}

// NewPublisher returns a publisher using the bus parameters of dc
func NewPublisher(dc *Dbus) *Publisher {
	return &Publisher{dc: dc, services: make(map[*item.Item]*service)}
}

// Connect publishes root under name
func (p *Publisher) Connect(name string, root *item.Item) error {
	if _, ok := p.services[root]; ok {
		return nil
	}
	s, err := p.dc.newService(name, root)
	if err != nil {
		return err
	}
	p.services[root] = s
	root.SetObserver(p)
	return nil
}

// Disconnect removes the service of root
func (p *Publisher) Disconnect(root *item.Item) {
	s, ok := p.services[root]
	if !ok {
		return
	}
	delete(p.services, root)
	root.SetObserver(nil)
	s.close()
}

// ItemsChanged implements item.Observer
func (p *Publisher) ItemsChanged(root *item.Item, ch item.Changes) {
	if s, ok := p.services[root]; ok {
		s.update(ch)
	}
}

// Services returns the published names, sorted
func (p *Publisher) Services() []string {
	names := make([]string, 0, len(p.services))
	for _, s := range p.services {
		names = append(names, s.name)
	}
	sort.Strings(names)
	return names
}

// Close removes every service
func (p *Publisher) Close() {
	for root := range p.services {
		p.Disconnect(root)
	}
}

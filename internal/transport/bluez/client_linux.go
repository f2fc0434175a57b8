//go:build linux

package bluez

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"

	dbus "github.com/godbus/dbus/v5"
)

const (
	bluezService        = "org.bluez"
	profileIface        = "org.bluez.Profile1"
	profileManagerIface = "org.bluez.ProfileManager1"
	deviceIface         = "org.bluez.Device1"
	adapterIface        = "org.bluez.Adapter1"
	objManagerIface     = "org.freedesktop.DBus.ObjectManager"
	propsIface          = "org.freedesktop.DBus.Properties"

	profilePathPrefix = "/org/mgarridoch/breakfast_alarm/profile/p"
)

var (
	errClosed = errors.New("bluez: manager closed")
	//nolint:gochecknoglobals // Unique profile object path counter.
	pathCounter atomic.Uint64
)

// Dial connects the SPP profile of target on adapter and returns the RFCOMM
// stream. Closing the stream also unregisters the profile and releases the
// system bus connection.
func Dial(ctx context.Context, adapter, target string) (io.ReadWriteCloser, error) {
	path, err := DevicePath(adapter, target)
	if err != nil {
		return nil, err
	}

	m := &manager{}

	fd, err := m.connect(ctx, dbus.ObjectPath(path))
	if err != nil {
		_ = m.Close()

		return nil, err
	}

	// A non-blocking descriptor lets os.File use the runtime poller, which
	// makes Close interrupt a blocked Read and enables write deadlines.
	if err = syscall.SetNonblock(fd, true); err != nil {
		_ = syscall.Close(fd)
		_ = m.Close()

		return nil, fmt.Errorf("bluez: set non-blocking: %w", err)
	}

	return &conn{
		File: os.NewFile(uintptr(fd), "rfcomm:"+path),
		mgr:  m,
	}, nil
}

// Scan discovers SPP devices on adapter until ctx is done.
func Scan(ctx context.Context, adapter string) ([]Device, error) {
	m := &manager{}
	defer m.Close()

	return m.scan(ctx, adapter)
}

// conn is the RFCOMM socket plus the manager owning its profile.
type conn struct {
	*os.File

	mgr  *manager
	once sync.Once
}

func (c *conn) Close() error {
	var err error

	c.once.Do(func() {
		err = errors.Join(c.File.Close(), c.mgr.Close())
	})

	return err
}

// manager owns the system bus connection and the exported client profile.
// It serves exactly one connect.
type manager struct {
	mu      sync.Mutex
	closed  bool
	bus     *dbus.Conn
	cleanup []func()
}

func (m *manager) ensureBusLocked() error {
	if m.closed {
		return errClosed
	}

	if m.bus != nil {
		return nil
	}

	c, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("bluez: connect system bus: %w", err)
	}

	m.bus = c
	m.cleanup = append(m.cleanup, func() { _ = c.Close() })

	return nil
}

func (m *manager) connect(ctx context.Context, devPath dbus.ObjectPath) (int, error) {
	m.mu.Lock()

	if err := m.ensureBusLocked(); err != nil {
		m.mu.Unlock()

		return 0, err
	}

	bus := m.bus
	prof := &profile{ch: make(chan int, 1)}
	profPath := dbus.ObjectPath(profilePathPrefix + strconv.FormatUint(pathCounter.Add(1), 10))

	if err := bus.Export(prof, profPath, profileIface); err != nil {
		m.mu.Unlock()

		return 0, fmt.Errorf("bluez: export client profile: %w", err)
	}

	pm := bus.Object(bluezService, dbus.ObjectPath("/org/bluez"))
	opts := map[string]dbus.Variant{"Role": dbus.MakeVariant("client")}

	if call := pm.Call(profileManagerIface+".RegisterProfile", 0, profPath, SPPUUID, opts); call.Err != nil {
		_ = bus.Export(nil, profPath, profileIface)
		m.mu.Unlock()

		return 0, fmt.Errorf("bluez: register client profile: %w", call.Err)
	}

	m.cleanup = append(m.cleanup, func() {
		_ = pm.Call(profileManagerIface+".UnregisterProfile", 0, profPath).Err
		_ = bus.Export(nil, profPath, profileIface)
	})
	m.mu.Unlock()

	dev := bus.Object(bluezService, devPath)
	if err := pairIfNeeded(ctx, dev); err != nil {
		return 0, err
	}

	if call := dev.CallWithContext(ctx, deviceIface+".ConnectProfile", 0, SPPUUID); call.Err != nil {
		return 0, fmt.Errorf("bluez: connect profile on %s: %w", devPath, call.Err)
	}

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("bluez: connect canceled: %w", ctx.Err())
	case fd := <-prof.ch:
		return fd, nil
	}
}

// pairIfNeeded pairs an unpaired device. Pairing prompts are handled by an
// agent registered outside this process.
func pairIfNeeded(ctx context.Context, dev dbus.BusObject) error {
	var paired dbus.Variant

	call := dev.CallWithContext(ctx, propsIface+".Get", 0, deviceIface, "Paired")
	if call.Err != nil || call.Store(&paired) != nil {
		return nil
	}

	if ok, isBool := paired.Value().(bool); !isBool || ok {
		return nil
	}

	if err := dev.CallWithContext(ctx, deviceIface+".Pair", 0).Err; err != nil {
		return fmt.Errorf("bluez: pair: %w", err)
	}

	return nil
}

func (m *manager) scan(ctx context.Context, adapter string) ([]Device, error) {
	m.mu.Lock()
	if err := m.ensureBusLocked(); err != nil {
		m.mu.Unlock()

		return nil, err
	}

	bus := m.bus
	m.mu.Unlock()

	if adapter == "" {
		adapter = DefaultAdapter
	}

	adapterObj := bus.Object(bluezService, dbus.ObjectPath(bluezRoot+adapter))
	_ = adapterObj.Call(adapterIface+".StartDiscovery", 0).Err

	defer func() { _ = adapterObj.Call(adapterIface+".StopDiscovery", 0).Err }()

	match := []dbus.MatchOption{
		dbus.WithMatchInterface(objManagerIface),
		dbus.WithMatchMember("InterfacesAdded"),
	}

	if err := bus.AddMatchSignal(match...); err != nil {
		return nil, fmt.Errorf("bluez: watch new devices: %w", err)
	}

	defer func() { _ = bus.RemoveMatchSignal(match...) }()

	sigCh := make(chan *dbus.Signal, 16)
	bus.Signal(sigCh)

	defer bus.RemoveSignal(sigCh)

	devices, err := managedSPPDevices(bus)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			out := make([]Device, 0, len(devices))
			for _, d := range devices {
				out = append(out, d)
			}

			return out, nil
		case sig := <-sigCh:
			if sig == nil || len(sig.Body) < 2 {
				continue
			}

			path, _ := sig.Body[0].(dbus.ObjectPath)
			ifaces, _ := sig.Body[1].(map[string]map[string]dbus.Variant)

			if dev, ok := deviceFromIfaces(path, ifaces); ok {
				devices[dev.Path] = dev
			}
		}
	}
}

// Close unregisters the profile and closes the bus. It is idempotent.
func (m *manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()

		return nil
	}

	m.closed = true
	cleanup := m.cleanup
	m.cleanup = nil
	m.mu.Unlock()

	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}

	return nil
}

func managedSPPDevices(bus *dbus.Conn) (map[string]Device, error) {
	var objs map[dbus.ObjectPath]map[string]map[string]dbus.Variant

	call := bus.Object(bluezService, "/").Call(objManagerIface+".GetManagedObjects", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("bluez: list managed objects: %w", call.Err)
	}

	if err := call.Store(&objs); err != nil {
		return nil, fmt.Errorf("bluez: decode managed objects: %w", err)
	}

	out := make(map[string]Device, len(objs))

	for path, ifaces := range objs {
		if dev, ok := deviceFromIfaces(path, ifaces); ok {
			out[dev.Path] = dev
		}
	}

	return out, nil
}

func deviceFromIfaces(path dbus.ObjectPath, ifaces map[string]map[string]dbus.Variant) (Device, bool) {
	props, ok := ifaces[deviceIface]
	if !ok {
		return Device{}, false
	}

	uuids, _ := props["UUIDs"].Value().([]string)
	if !containsUUID(uuids, SPPUUID) {
		return Device{}, false
	}

	dev := Device{Path: string(path)}
	dev.MAC, _ = props["Address"].Value().(string)
	dev.Name, _ = props["Name"].Value().(string)
	dev.Alias, _ = props["Alias"].Value().(string)

	if dev.MAC == "" {
		dev.MAC = MACFromPath(dev.Path)
	}

	return dev, true
}

// profile implements org.bluez.Profile1 for the client role.
type profile struct {
	mu        sync.Mutex
	ch        chan int
	delivered bool
}

// Release is called by BlueZ when the profile is unregistered.
func (p *profile) Release() *dbus.Error { return nil }

// Cancel is called when a pending request is canceled.
func (p *profile) Cancel() *dbus.Error { return nil }

// RequestDisconnection is ignored; the stream owner closes the socket.
func (p *profile) RequestDisconnection(dbus.ObjectPath) *dbus.Error { return nil }

// NewConnection hands the first socket to the waiting connect and rejects
// any later one.
func (p *profile) NewConnection(_ dbus.ObjectPath, fd dbus.UnixFD, _ map[string]dbus.Variant) *dbus.Error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.delivered {
		select {
		case p.ch <- int(fd):
			p.delivered = true

			return nil
		default:
		}
	}

	_ = syscall.Close(int(fd))

	return &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []any{"connection already delivered"}}
}

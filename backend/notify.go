package backend

import (
	"errors"
	"log"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rezon/mediasession/backend/artwork"
	"github.com/rezon/mediasession/backend/controls"
	"github.com/rezon/mediasession/backend/presentation"
)

const (
	notificationsDest  = "org.freedesktop.Notifications"
	notificationsPath  = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsIface = "org.freedesktop.Notifications"

	signalActionInvoked      = notificationsIface + ".ActionInvoked"
	signalNotificationClosed = notificationsIface + ".NotificationClosed"

	// NotificationClosed reasons
	closedExpired   uint32 = 1
	closedDismissed uint32 = 2
	closedByCall    uint32 = 3
)

// the subset of *dbus.Object used by DesktopNotifier
type dbusCaller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DesktopNotifier shows the session notification through the freedesktop
// notification service and routes button presses and dismissal back as
// actions.
type DesktopNotifier struct {
	AppName string
	// Icon name or path shown when there is no artwork.
	AppIcon string
	// -1 lets the server decide, 0 never expires.
	ExpireTimeoutMs int32

	// Function to look up a local file path for decoded artwork.
	ArtPathLookup func(*artwork.Artwork) (string, error)

	router  *controls.Router
	conn    *dbus.Conn
	obj     dbusCaller
	signals chan *dbus.Signal

	mu sync.Mutex
	id uint32 // 0 when nothing is posted
}

// NewDesktopNotifier connects to the session bus. It fails when no bus or
// notification service is reachable.
func NewDesktopNotifier(appName string, router *controls.Router) (*DesktopNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(notificationsPath),
		dbus.WithMatchInterface(notificationsIface),
	); err != nil {
		conn.Close()
		return nil, err
	}

	d := newDesktopNotifier(appName, conn.Object(notificationsDest, notificationsPath), router)
	d.conn = conn
	d.signals = make(chan *dbus.Signal, 16)
	conn.Signal(d.signals)
	go func() {
		// channel is closed when the connection is
		for sig := range d.signals {
			d.handleSignal(sig)
		}
	}()
	return d, nil
}

func newDesktopNotifier(appName string, obj dbusCaller, router *controls.Router) *DesktopNotifier {
	return &DesktopNotifier{
		AppName:         appName,
		ExpireTimeoutMs: 0,
		obj:             obj,
		router:          router,
	}
}

func (d *DesktopNotifier) Post(n presentation.Notification) error {
	actions := make([]string, 0, 2*presentation.NumSlots)
	for _, a := range n.Actions {
		actions = append(actions, a.Key, a.Label)
	}

	icon := d.AppIcon
	hints := map[string]dbus.Variant{
		"urgency":      dbus.MakeVariant(byte(0)),
		"resident":     dbus.MakeVariant(n.Ongoing),
		"action-icons": dbus.MakeVariant(true),
	}
	if n.Category != "" {
		hints["category"] = dbus.MakeVariant(n.Category)
	}
	if n.LargeIcon != nil && d.ArtPathLookup != nil {
		if path, err := d.ArtPathLookup(n.LargeIcon); err == nil {
			hints["image-path"] = dbus.MakeVariant(path)
		} else {
			log.Printf("failed to store notification artwork: %v", err)
		}
	}
	if n.Accent != "" {
		hints["x-accent-color"] = dbus.MakeVariant(n.Accent)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	var id uint32
	err := d.obj.Call(notificationsIface+".Notify", 0,
		d.AppName, d.id, icon, n.Title, n.Subtitle, actions, hints, d.ExpireTimeoutMs,
	).Store(&id)
	if err != nil {
		return err
	}
	d.id = id
	return nil
}

func (d *DesktopNotifier) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.id == 0 {
		return nil
	}
	id := d.id
	d.id = 0
	return d.obj.Call(notificationsIface+".CloseNotification", 0, id).Err
}

// Close releases the bus connection. The notification is left as is.
func (d *DesktopNotifier) Close() error {
	if d.conn == nil {
		return errors.New("not connected")
	}
	return d.conn.Close()
}

func (d *DesktopNotifier) handleSignal(sig *dbus.Signal) {
	if sig == nil || len(sig.Body) < 2 {
		return
	}
	id, ok := sig.Body[0].(uint32)
	if !ok {
		return
	}

	d.mu.Lock()
	current := id != 0 && id == d.id
	if current && sig.Name == signalNotificationClosed {
		d.id = 0
	}
	d.mu.Unlock()
	if !current {
		return // signal for another application's notification
	}

	switch sig.Name {
	case signalActionInvoked:
		if key, ok := sig.Body[1].(string); ok {
			d.router.Notification(key)
		}
	case signalNotificationClosed:
		if reason, _ := sig.Body[1].(uint32); reason == closedDismissed {
			d.router.Notification(presentation.KeyDismiss)
		}
	}
}

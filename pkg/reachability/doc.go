// Package reachability reports whether a network target is reachable through
// the host's current interfaces and routes, and notifies observers when that
// changes.
//
// A Monitor is created for one of four targets: a host name, an IP address,
// the default route (ForInternetConnection) or the local WiFi link
// (ForLocalWiFi). Its status can be queried at any time. After StartNotifier
// succeeds, every change runs the registered notification funcs on an event
// loop and posts ChangedNotification to a notify.Center:
//
//	m, err := reachability.ForInternetConnection()
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//
//	m.AddNotificationFunc(func(m *reachability.Monitor) {
//		log.Infof("internet is now %s", m.CurrentStatus())
//	})
//	if !m.StartNotifier() {
//		return errors.New("cannot watch reachability")
//	}
//
// Reachability only describes the local path. It never sends packets to the
// target, so a reachable target may still refuse connections.
package reachability

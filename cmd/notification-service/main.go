// Servicio con los avisos en tiempo real por websocket.
package main

import "github.com/davicafu/pujalab/internal/app"

func main() {
	app.Run("notification-service", app.MountNotification)
}

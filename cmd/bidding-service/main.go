// Servicio con las pujas y el cierre de subastas.
package main

import "github.com/davicafu/pujalab/internal/app"

func main() {
	app.Run("bidding-service", app.MountBidding)
}

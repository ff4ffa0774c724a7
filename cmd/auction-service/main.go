// Servicio con el catálogo de subastas.
package main

import "github.com/davicafu/pujalab/internal/app"

func main() {
	app.Run("auction-service", app.MountAuction)
}

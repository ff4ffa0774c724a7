// Servicio con la proyección de búsqueda.
package main

import "github.com/davicafu/pujalab/internal/app"

func main() {
	app.Run("search-service", app.MountSearch)
}

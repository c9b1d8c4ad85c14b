package cache

import (
	"fmt"
	"sort"
	"strings"

	"inforojo/internal/domain"
)

const (
	KeyCatalogSync    = "catalog:sync"
	KeyCatalogVersion = "catalog:version"
)

func KeyRutasForParadero(paraderoID string) string {
	return fmt.Sprintf("rutas:paradero:%s", paraderoID)
}

func KeyFiltrarRutas(origen, destino string) string {
	return fmt.Sprintf("rutas:filtrar:%s:%s", origen, destino)
}

// KeyMarkers is independent of the order capas are given in.
func KeyMarkers(capas []domain.Capa) string {
	names := make([]string, len(capas))
	for i, c := range capas {
		names[i] = string(c)
	}
	sort.Strings(names)
	return "markers:" + strings.Join(names, ",")
}

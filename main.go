package main

import (
	"fmt"

	_ "github.com/flightmap/skycache/cache"
	_ "github.com/flightmap/skycache/config"
	_ "github.com/flightmap/skycache/logger"
)

func main() {
	fmt.Println("skycache")
}

// The devserver runs the in-memory backend stand-in with a couple of
// seeded devices, so the monitor and the mobile app have something to
// talk to during development.
package main

import (
	"log"
	"net/http"

	"github.com/rs/cors"

	"farmlink/internal/config"
	"farmlink/internal/devserver"
)

func main() {
	cfg := config.Load()

	srv := devserver.New()
	for _, seed := range []struct {
		name, location string
	}{
		{"Greenhouse North", "greenhouse-1"},
		{"Field Pump", "field-2"},
	} {
		device := srv.RegisterDevice(seed.name, seed.location)
		log.Printf("Seeded device %q id=%s token=%s", device.Name, device.ID, device.Token)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "x-auth-token"},
		AllowCredentials: false,
	})
	handler := c.Handler(srv.Handler())

	log.Printf("Dev backend listening on %s", cfg.DevServerAddr)
	if err := http.ListenAndServe(cfg.DevServerAddr, handler); err != nil {
		log.Fatal("Error starting server:", err)
	}
}

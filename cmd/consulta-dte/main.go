// cmd/consulta-dte/main.go: Consulta manual del estado de un envío en el SII.
// Uso: go run cmd/consulta-dte/main.go <trackId>
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dorian-cesar/backend-banos/internal/config"
	"github.com/dorian-cesar/backend-banos/internal/sii"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "uso: consulta-dte <trackId>")
		os.Exit(2)
	}
	trackID := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	gw := sii.NewClient(sii.ClientConfig{
		BaseURL:   cfg.SimpleAPIURL,
		APIKey:    cfg.SimpleAPIKey,
		CertPath:  cfg.CertPath,
		CertRut:   cfg.CertRut,
		CertPass:  cfg.CertPass,
		EmisorRut: cfg.EmisorRutCompleto(),
		Ambiente:  cfg.Ambiente,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	estado, err := gw.ConsultarEstado(ctx, trackID)
	if err != nil {
		log.Fatalf("consulta fallida: %v", err)
	}
	if estado == "" {
		fmt.Printf("trackId %s: sin estado disponible todavia\n", trackID)
		return
	}
	fmt.Printf("trackId %s: estado %s\n", trackID, estado)
}

// Command seed loads a demo catalogue of ten medications into the configured
// storage. Ibuprofeno (15/01/2024) is expired on purpose, the other lots expire in
// 2027 or later, and several share a manufacturer.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pharmastock/stock-system/internal/core/domain"
	"github.com/pharmastock/stock-system/internal/infrastructure/storage"
	"github.com/pharmastock/stock-system/internal/pkg/config"
	"github.com/pharmastock/stock-system/pkg/logger"
)

var catalogue = []domain.MedicationFields{
	{Name: "Dipirona Monoidratada 500mg", Batch: "A1020", Expiry: "10/12/2028", Manufacturer: "Medley", Quantity: 200},
	{Name: "Paracetamol 750mg", Batch: "B3040", Expiry: "01/05/2029", Manufacturer: "EMS", Quantity: 150},
	{Name: "Amoxicilina 500mg", Batch: "C5060", Expiry: "20/11/2027", Manufacturer: "Neo Química", Quantity: 45},
	{Name: "Ibuprofeno 600mg", Batch: "D7080", Expiry: "15/01/2024", Manufacturer: "Teuto", Quantity: 12},
	{Name: "Dorflex Comprimidos", Batch: "E9010", Expiry: "30/08/2028", Manufacturer: "Sanofi", Quantity: 500},
	{Name: "Omeprazol 20mg", Batch: "F1112", Expiry: "12/12/2027", Manufacturer: "Eurofarma", Quantity: 80},
	{Name: "Losartana Potássica 50mg", Batch: "G1314", Expiry: "25/03/2028", Manufacturer: "Sandoz", Quantity: 100},
	{Name: "Vitamina C 1g Efervescente", Batch: "H1516", Expiry: "05/02/2028", Manufacturer: "Cimed", Quantity: 30},
	{Name: "Azitromicina 500mg", Batch: "I1718", Expiry: "18/09/2029", Manufacturer: "Pfizer", Quantity: 60},
	{Name: "Clonazepam 0.5mg", Batch: "J1920", Expiry: "22/07/2028", Manufacturer: "Medley", Quantity: 90},
}

func main() {
	force := flag.Bool("force", false, "insert even when medications already exist")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		boot := logger.Init(logger.Options{})
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: true, Service: "pharmastock-seed"})

	stores, err := storage.Open(ctx, cfg.Storage, cfg.Mongo, logger.Component("storage"), false)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to open storage")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = stores.Close(closeCtx)
	}()

	existing, err := stores.Medications.FindAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read medications")
	}
	if len(existing) > 0 && !*force {
		log.Info().Int("existing", len(existing)).Msg("medications already present, use -force to append")
		return
	}

	inserted := 0
	for _, f := range catalogue {
		// the catalogue includes expired stock, so futurity is not enforced
		m, err := domain.ImportMedication(f)
		if err != nil {
			log.Error().Err(err).Str("name", f.Name).Msg("invalid catalogue entry")
			continue
		}
		stored, err := stores.Medications.Add(ctx, m)
		if err != nil {
			log.Error().Err(err).Str("name", f.Name).Msg("failed to insert medication")
			continue
		}
		inserted++
		log.Info().Int64("id", stored.ID()).Str("name", stored.Name()).Msg("medication inserted")
	}

	log.Info().Int("inserted", inserted).Msg("seed complete")
}

package main

import (
	"context"
	"flag"

	"github.com/sirupsen/logrus"

	deviceflags "github.com/evo-company/deviceflags-go"
	"github.com/evo-company/deviceflags-go/shellstore"
)

func main() {
	var serial string
	flag.StringVar(&serial, "serial", "", "adb serial of the device under test")
	flag.Parse()

	logger := logrus.New()
	ctx := context.Background()

	flags := deviceflags.New(
		shellstore.New(shellstore.WithSerial(serial), shellstore.WithLogger(logger)),
		deviceflags.WithLogger(logger),
	)

	// Take the snapshot before touching anything.
	restore, err := flags.Toggle(ctx, true)
	if err != nil {
		logger.Fatalf("Could not enable Safety Center: %v", err)
	}
	defer func() {
		if err := restore(ctx); err != nil {
			logger.Printf("Could not restore flags: %v", err)
		}
	}()

	enabled, err := flags.Enabled(ctx)
	if err != nil {
		logger.Fatalf("Could not read flag: %v", err)
	}
	logger.Printf("SAFETY_CENTER_ENABLED: %v", enabled)
}

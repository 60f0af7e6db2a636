// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// gpio-dma-read samples a single GPIO pin every 5 microseconds using the
// DMA engine, paced by the PWM peripheral, and prints every level change
// it observes with its timestamp.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"github.com/jsalces/gpio-dma-sampler/sampler"
)

func mainImpl() error {
	channel := flag.Int("channel", sampler.DefaultChannel, "DMA channel to use")
	verbose := flag.Bool("v", false, "enable verbose logs")
	period := flag.Duration("period", sampler.DefaultPollInterval, "ring poll interval")
	flag.Parse()

	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}
	log.SetFlags(log.Lmicroseconds)

	if *channel < 0 || *channel > 6 {
		return errors.New("channel must be one of the stride-capable channels, 0 to 6")
	}

	s, err := sampler.New(sampler.Config{Channel: *channel, Sink: os.Stderr})
	if err != nil {
		return err
	}
	sampler.InstallSignalTeardown(s)
	defer s.Close()

	log.Printf("gpio-dma-read: sampling on channel %d", *channel)
	s.Start()
	return s.Run(context.Background(), *period)
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "gpio-dma-read: %s.\n", err)
		os.Exit(1)
	}
}

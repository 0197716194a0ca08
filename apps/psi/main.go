//
// main.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/go-logr/stdr"
	"github.com/markkurossi/mpsi/dataset"
	"github.com/markkurossi/mpsi/env"
	"github.com/markkurossi/mpsi/executor"
	"github.com/markkurossi/mpsi/p2p"
	"github.com/markkurossi/mpsi/retcode"
	"github.com/markkurossi/mpsi/task"
	"gopkg.in/yaml.v3"

	_ "github.com/lib/pq"
)

func main() {
	log.SetFlags(0)

	taskFile := flag.String("task", "", "PSI task descriptor file")
	datasetsFile := flag.String("datasets", "", "Dataset definitions file")
	listen := flag.String("listen", "", "Listen address (default: party address)")
	verbose := flag.Int("v", 0, "Log verbosity level")
	timing := flag.Bool("timing", false, "Print timing report")
	flag.Parse()

	if len(*taskFile) == 0 || len(*datasetsFile) == 0 {
		fmt.Fprintf(os.Stderr, "usage: psi -task FILE -datasets FILE\n")
		os.Exit(int(retcode.ConfigFailure))
	}

	stdr.SetVerbosity(*verbose)
	config := &env.Config{
		Logger: stdr.New(log.New(os.Stderr, "", log.LstdFlags)),
	}

	code, err := run(config, *taskFile, *datasetsFile, *listen, *timing)
	if err != nil {
		log.Printf("psi: %v", err)
	}
	os.Exit(int(code))
}

func run(config *env.Config, taskFile, datasetsFile, listen string,
	timing bool) (retcode.Code, error) {

	t, err := task.Load(taskFile)
	if err != nil {
		return retcode.CodeOf(err), err
	}
	self, err := t.Self()
	if err != nil {
		return retcode.CodeOf(err), err
	}
	svc, err := loadDatasets(datasetsFile)
	if err != nil {
		return retcode.CodeOf(err), err
	}
	if len(listen) == 0 {
		listen = self.Address
	}
	nw, err := p2p.NewNetwork(listen, config.GetLogger())
	if err != nil {
		err = retcode.Wrap(retcode.ErrNetwork, err)
		return retcode.CodeOf(err), err
	}
	defer nw.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := executor.NewPSITask(config, t, nw, svc, &dataset.CSVSink{})
	code, err := p.Execute(ctx)
	if timing {
		p.Timing.Print(os.Stdout, p.Stats)
	}
	return code, err
}

func loadDatasets(file string) (*dataset.Service, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, retcode.Wrap(retcode.ErrConfig, err)
	}
	var specs map[string]dataset.Spec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, retcode.Wrap(retcode.ErrConfig,
			fmt.Errorf("%s: %w", file, err))
	}
	svc := dataset.NewService()
	for id, spec := range specs {
		if err := svc.Open(id, spec); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

/*
Copyright © 2025 jesse galley <jesse@jessegalley.net>
*/
package main

import (
	"log"
	"os"
	"runtime/pprof"

	"github.com/jessegalley/fileserver/cmd"
)

func main() {
	// FILESERVER_CPUPROFILE=./prof.pprof records a cpu profile of the run
	cpuProfile := os.Getenv("FILESERVER_CPUPROFILE")
	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal(err)
		}
		defer pprof.StopCPUProfile()
	}
	cmd.Execute()
}

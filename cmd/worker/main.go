package main

import (
	"log"
	"os"
)

const usage = `usage:
  worker migrate up|down|version
  worker generate [-name project] [-out file.csv] [-offline] <docFile>
  worker export [-out file.csv] <projectID>
  worker sweep`

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	var err error
	switch os.Args[1] {
	case "migrate":
		err = RunMigrate(os.Args[2:])
	case "generate":
		err = RunGenerate(os.Args[2:])
	case "export":
		err = RunExport(os.Args[2:])
	case "sweep":
		err = RunSweep(os.Args[2:])
	default:
		log.Fatalf("unknown command: %s\n%s", os.Args[1], usage)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

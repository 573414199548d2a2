// Command goldgen builds a gold-standard sense-distributions file from
// per-lemma sense-annotation CSVs. The output feeds senselearn's
// evaluate mode.
//
// Flags:
//
//	--annotations-dir  directory of per-lemma annotation CSVs (required)
//	--save-path        where to write the distributions file (required)
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/awbennett/LexSemTm/internal/app"
	"github.com/awbennett/LexSemTm/internal/config"
	"github.com/awbennett/LexSemTm/internal/evaluate"
)

func main() {
	annotationsDirFlag := flag.String("annotations-dir", "", "directory of per-lemma annotation CSVs")
	savePathFlag := flag.String("save-path", "", "where to write the distributions file")
	flag.Parse()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg.Log)

	if *annotationsDirFlag == "" || *savePathFlag == "" {
		logger.Error("--annotations-dir and --save-path are required")
		os.Exit(1)
	}

	dists, err := evaluate.BuildGoldDists(*annotationsDirFlag)
	if err != nil {
		logger.Error("build gold distributions", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := evaluate.WriteGoldDists(*savePathFlag, dists); err != nil {
		logger.Error("write gold distributions", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("wrote gold distributions",
		slog.Int("lemmas", len(dists)),
		slog.String("path", *savePathFlag))
}

package main

import (
	"flag"
	"os"

	"cloud.google.com/go/bigquery"
	"github.com/dfslab/dfsbench/pkg/bench/model"
	"github.com/m-lab/go/cloud/bqx"
	"github.com/m-lab/go/rtx"
)

var (
	trialSchema   string
	summarySchema string
)

func init() {
	flag.StringVar(&trialSchema, "trial", "/var/spool/datatypes/dfsbench_trial.json", "filename to write the trial result schema")
	flag.StringVar(&summarySchema, "summary", "/var/spool/datatypes/dfsbench_summary.json", "filename to write the summary row schema")
}

// writeSchema infers the BigQuery schema of row and writes it to path.
func writeSchema(row interface{}, path, name string) {
	sch, err := bigquery.InferSchema(row)
	rtx.Must(err, "failed to generate %s schema", name)
	sch = bqx.RemoveRequired(sch)
	b, err := sch.ToJSONFields()
	rtx.Must(err, "failed to marshal %s schema", name)
	err = os.WriteFile(path, b, 0o644)
	rtx.Must(err, "failed to write %s schema", name)
}

func main() {
	flag.Parse()
	// Generate and save schemas for autoloading.
	writeSchema(model.TrialResult{}, trialSchema, "trial")
	writeSchema(model.StatGroup{}, summarySchema, "summary")
}
